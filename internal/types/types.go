package types

import (
	"context"

	"github.com/mywind/docsearch/internal/models"
)

// OCREngine recognizes text in one encoded image.
type OCREngine interface {
	Name() string
	Recognize(ctx context.Context, image []byte) (models.Recognition, error)
}

// TableEngine is the optional table-structure recognizer. Deployments without
// one leave it nil and the service reports the capability as absent.
type TableEngine interface {
	RecognizeTable(ctx context.Context, image []byte) (models.TableRecognition, error)
}

// PageRenderer opens a PDF and exposes its pages for one-at-a-time rendering.
type PageRenderer interface {
	Open(data []byte) (RenderedDocument, error)
}

// RenderedDocument is an open PDF. RenderPage returns one page as an encoded
// image; pages are zero-indexed. Close releases the underlying document.
type RenderedDocument interface {
	PageCount() int
	RenderPage(page int) ([]byte, error)
	Close() error
}

// Embedder maps a batch of texts to fixed-length vectors, one per input.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists indexed chunks and answers nearest-neighbor queries.
// Filter is an equality match over metadata fields. Implementations must
// support concurrent readers and writers and upsert by chunk ID.
type VectorStore interface {
	Add(ctx context.Context, chunks []models.IndexedChunk) error
	Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]models.StoreHit, error)
	Count(ctx context.Context) (int, error)
	Location() string
	Close() error
}
