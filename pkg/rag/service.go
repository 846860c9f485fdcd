// Package rag orchestrates chunking, embedding and vector storage: indexing
// documents for later retrieval and answering semantic queries against the
// same store.
package rag

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mywind/docsearch/internal/models"
	"github.com/mywind/docsearch/internal/types"
	"github.com/mywind/docsearch/pkg/processor"
)

type ServiceConfig struct {
	ChunkSize        int
	ChunkOverlap     int
	MinContentLength int
	DefaultTopK      int
}

// Service holds no request-scoped state; concurrent Index and Search calls do
// not interfere. The embedder and store may be nil in degraded deployments:
// indexing then reports failure, search returns empty results.
type Service struct {
	splitter *processor.Splitter
	embedder types.Embedder
	store    types.VectorStore
	logger   *zap.Logger
	config   ServiceConfig
}

func NewService(config ServiceConfig, embedder types.Embedder, store types.VectorStore, logger *zap.Logger) (*Service, error) {
	if config.MinContentLength == 0 {
		config.MinContentLength = 10
	}
	if config.DefaultTopK == 0 {
		config.DefaultTopK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	splitter, err := processor.NewSplitter(processor.SplitterConfig{
		ChunkSize:    config.ChunkSize,
		ChunkOverlap: config.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		logger:   logger,
		config:   config,
	}, nil
}

// Available reports whether both retrieval collaborators are configured.
func (s *Service) Available() bool {
	return s.embedder != nil && s.store != nil
}

type IndexRequest struct {
	Content  string                 `json:"content"`
	Source   string                 `json:"source"`
	DocType  string                 `json:"doc_type"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Index chunks, embeds and stores one document. All chunks are embedded in a
// single batch call and written in a single batch call. Chunk identifiers are
// derived from the document content, so re-indexing unchanged content upserts
// the same ids instead of duplicating them. Failures are reported in the
// result, never raised.
func (s *Service) Index(ctx context.Context, req IndexRequest) models.IndexResult {
	if s.store == nil {
		return failure("vector store not initialized")
	}
	if s.embedder == nil {
		return failure("embedding model not initialized")
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Content)) < s.config.MinContentLength {
		return failure("content too short")
	}

	source := req.Source
	if source == "" {
		source = "unknown"
	}
	docType := req.DocType
	if docType == "" {
		docType = "news"
	}

	chunks := s.splitter.Split(req.Content)

	embeddings, err := s.embedder.CreateEmbedding(ctx, chunks)
	if err != nil {
		s.logger.Warn("embedding failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return failure("embedding failed: " + err.Error())
	}
	if len(embeddings) != len(chunks) {
		return failure("embedding model returned wrong batch size")
	}

	fingerprint := processor.Fingerprint(req.Content)
	indexedAt := time.Now().Format(time.RFC3339)

	indexed := make([]models.IndexedChunk, len(chunks))
	for i, chunk := range chunks {
		metadata := map[string]interface{}{
			"source":   source,
			"doc_type": docType,
		}
		for k, v := range req.Metadata {
			metadata[k] = v
		}
		// Ordinal and timestamp are set last: caller metadata cannot shadow them.
		metadata["chunk_index"] = i
		metadata["indexed_at"] = indexedAt

		indexed[i] = models.IndexedChunk{
			ID:        processor.ChunkID(fingerprint, i),
			Content:   chunk,
			Embedding: embeddings[i],
			Metadata:  metadata,
		}
	}

	if err := s.store.Add(ctx, indexed); err != nil {
		s.logger.Warn("store write failed", zap.Int("chunks", len(indexed)), zap.Error(err))
		return failure("store write failed: " + err.Error())
	}

	s.logger.Info("document indexed",
		zap.String("source", source),
		zap.String("doc_type", docType),
		zap.Int("chunks", len(chunks)),
	)

	return models.IndexResult{
		Success:       true,
		ChunksIndexed: len(chunks),
		TotalChars:    utf8.RuneCountInString(req.Content),
	}
}

type SearchRequest struct {
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
	FilterSource string `json:"filter_source,omitempty"`
	FilterType   string `json:"filter_type,omitempty"`
}

// Search answers a semantic query. Retrieval favors availability over error
// surfacing: an empty query, a missing collaborator or a failing one all
// yield an empty result, since absent search results are a safe default for a
// supplementary signal. Hits arrive nearest first with score = 1 - distance.
func (s *Service) Search(ctx context.Context, req SearchRequest) []models.SearchHit {
	if !s.Available() {
		return nil
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.config.DefaultTopK
	}

	embeddings, err := s.embedder.CreateEmbedding(ctx, []string{req.Query})
	if err != nil || len(embeddings) == 0 {
		s.logger.Warn("query embedding failed", zap.Error(err))
		return nil
	}

	filter := make(map[string]string)
	if req.FilterSource != "" {
		filter["source"] = req.FilterSource
	}
	if req.FilterType != "" {
		filter["doc_type"] = req.FilterType
	}

	hits, err := s.store.Query(ctx, embeddings[0], topK, filter)
	if err != nil {
		s.logger.Warn("store query failed", zap.Error(err))
		return nil
	}

	results := make([]models.SearchHit, len(hits))
	for i, hit := range hits {
		results[i] = models.SearchHit{
			Content:  hit.Content,
			Score:    1 - hit.Distance,
			Metadata: hit.Metadata,
		}
	}
	return results
}

// Stats reports the store size and collaborator availability.
func (s *Service) Stats(ctx context.Context) models.RagStats {
	stats := models.RagStats{
		StoreAvailable:     s.store != nil,
		EmbeddingAvailable: s.embedder != nil,
	}
	if s.store == nil {
		return stats
	}

	stats.StorageLocation = s.store.Location()
	count, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Warn("store count failed", zap.Error(err))
		return stats
	}
	stats.TotalDocuments = count
	return stats
}

func failure(reason string) models.IndexResult {
	return models.IndexResult{Success: false, Error: reason}
}
