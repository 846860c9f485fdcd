package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mywind/docsearch/internal/models"
)

type SplitterConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Splitter cuts document text into fixed-size overlapping windows. The window
// advances by ChunkSize - ChunkOverlap characters, so the overlap must stay
// strictly below the chunk size or the window never moves.
type Splitter struct {
	config SplitterConfig
}

func NewSplitter(config SplitterConfig) (*Splitter, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 500
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 50
	}

	if config.ChunkSize < 0 {
		return nil, &models.ConfigError{Reason: fmt.Sprintf("chunk size must be positive, got %d", config.ChunkSize)}
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, &models.ConfigError{
			Reason: fmt.Sprintf("chunk overlap %d must be non-negative and less than chunk size %d",
				config.ChunkOverlap, config.ChunkSize),
		}
	}

	return &Splitter{config: config}, nil
}

// Split returns the ordered chunk contents for text. Text no longer than the
// chunk size yields a single chunk equal to the whole text; the final chunk of
// longer text may be shorter than the chunk size. Characters are counted as
// runes so multi-byte text never splits mid-character.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) <= s.config.ChunkSize {
		return []string{text}
	}

	step := s.config.ChunkSize - s.config.ChunkOverlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.config.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks
}

// ChunkSize reports the configured window size.
func (s *Splitter) ChunkSize() int { return s.config.ChunkSize }

// ChunkOverlap reports the configured overlap.
func (s *Splitter) ChunkOverlap() int { return s.config.ChunkOverlap }

// Fingerprint derives the stable identifier base for a document from its
// content: a truncated sha256 digest. Identical content always maps to the
// same fingerprint, so re-indexing an unchanged document overwrites its own
// chunks instead of duplicating them.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// ChunkID builds the store identifier for one chunk of a document.
func ChunkID(fingerprint string, ordinal int) string {
	return fmt.Sprintf("%s_%d", fingerprint, ordinal)
}
