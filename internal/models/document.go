package models

import "time"

// Document is a single logical input: one image, one PDF, or one fetched
// announcement page. It lives only for the duration of an extraction or
// indexing call.
type Document struct {
	Source   string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// Recognition is the output of one OCR call over one image.
// Confidence is a percentage in [0, 100].
type Recognition struct {
	Text       string
	Confidence float64
	Elapse     time.Duration
}

// TableRecognition is the output of the optional table-structure engine.
type TableRecognition struct {
	Markdown string
	HTML     string
	Elapse   time.Duration
}

// ExtractionResult aggregates OCR output over a whole document. For PDFs the
// text is page-delimited and Pages reports how many pages were processed,
// which may be fewer than the requested maximum.
type ExtractionResult struct {
	Text       string
	Confidence float64
	Pages      int
	Elapse     time.Duration
}

// IndexedChunk is one chunk ready for the vector store: content, embedding
// and the merged metadata, keyed by a deterministic identifier.
type IndexedChunk struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]interface{}
}

// StoreHit is a raw nearest-neighbor result from a vector store backend.
// Distance follows the backend's metric; smaller is closer.
type StoreHit struct {
	Content  string
	Distance float64
	Metadata map[string]interface{}
}

// IndexResult reports the outcome of indexing one document. Collaborator
// failures surface here as Success=false, never as a panic or a raw error.
type IndexResult struct {
	Success       bool   `json:"success"`
	ChunksIndexed int    `json:"chunks_indexed,omitempty"`
	TotalChars    int    `json:"total_chars,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SearchHit is one retrieval result. Score is 1 - distance, increasing toward
// 1.0 for closer matches; it is not bounded below and is not a probability.
type SearchHit struct {
	Content  string                 `json:"content"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// RagStats describes the state of the retrieval subsystem.
type RagStats struct {
	TotalDocuments     int    `json:"total_documents"`
	StorageLocation    string `json:"storage_location"`
	StoreAvailable     bool   `json:"store_available"`
	EmbeddingAvailable bool   `json:"embedding_available"`
}
