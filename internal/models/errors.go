package models

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks a collaborator (embedding model, vector store, table
// engine) that was not initialized. Indexing reports it to the caller;
// retrieval degrades to empty results instead.
var ErrUnavailable = errors.New("collaborator unavailable")

// ConfigError is a caller bug: invalid chunking or component parameters.
// Never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// ValidationError rejects input (content too short, wrong media type).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ProcessingError is a renderer or OCR failure on otherwise valid input. The
// underlying cause is preserved; the caller may retry the whole document.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
