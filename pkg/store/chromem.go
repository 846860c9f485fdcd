package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/mywind/docsearch/internal/models"
)

// ChromemStore persists chunks in an embedded chromem-go database: pure Go,
// no external service, gob files under a persist directory. chromem reports
// cosine similarity; the adapter converts it to a distance so the retrieval
// layer sees one metric across backends.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	path       string
	logger     *zap.Logger
}

func NewChromemStore(config Config, logger *zap.Logger) (*ChromemStore, error) {
	if config.Path == "" {
		config.Path = "./vector_db"
	}
	if config.Collection == "" {
		config.Collection = "mywind_documents"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(config.Path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem database: %w", err)
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, rejectEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", config.Collection, err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.String("collection", config.Collection),
		zap.Int("documents", collection.Count()),
	)

	return &ChromemStore{
		db:         db,
		collection: collection,
		path:       config.Path,
		logger:     logger,
	}, nil
}

// rejectEmbeddingFunc guards against accidental in-store embedding: all
// vectors are computed by the caller and passed in precomputed.
func rejectEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("store expects precomputed embeddings")
}

func (s *ChromemStore) Add(ctx context.Context, chunks []models.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Content,
			Embedding: chunk.Embedding,
			Metadata:  metadataToStrings(chunk.Metadata),
		}
	}

	// Concurrency of 1: embeddings are precomputed, there is no work to fan out.
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	s.logger.Debug("chunks stored", zap.Int("count", len(chunks)))
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]models.StoreHit, error) {
	// chromem rejects nResults above the collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	var where map[string]string
	if len(filter) > 0 {
		where = filter
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	hits := make([]models.StoreHit, len(results))
	for i, r := range results {
		hits[i] = models.StoreHit{
			Content:  r.Content,
			Distance: 1 - float64(r.Similarity),
			Metadata: metadataFromStrings(r.Metadata),
		}
	}
	return hits, nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

func (s *ChromemStore) Location() string {
	return s.path
}

// Close is a no-op: chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}
