package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/mywind/docsearch/internal/models"
)

// PGStore persists chunks in PostgreSQL with the pgvector extension. Source
// and document type live in dedicated columns so equality filters hit plain
// indexes; the full metadata map rides along as JSONB for round-tripping.
type PGStore struct {
	config Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPGStore(config Config, logger *zap.Logger) (*PGStore, error) {
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PGStore{
		config: config,
		pool:   pool,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

func (s *PGStore) initialize() error {
	ctx := context.Background()

	_, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT,
			doc_type TEXT,
			chunk_index INTEGER,
			embedding vector(%d),
			metadata JSONB
		)`, s.config.TableName, s.config.VectorDim)

	_, err = s.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		s.config.TableName, s.config.TableName)

	_, err = s.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (s *PGStore) Add(ctx context.Context, chunks []models.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, source, doc_type, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			source = EXCLUDED.source,
			doc_type = EXCLUDED.doc_type,
			chunk_index = EXCLUDED.chunk_index,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		s.config.TableName)

	for _, chunk := range chunks {
		source, _ := chunk.Metadata["source"].(string)
		docType, _ := chunk.Metadata["doc_type"].(string)
		chunkIndex, _ := chunk.Metadata["chunk_index"].(int)

		_, err = tx.Exec(ctx, stmt,
			chunk.ID,
			sanitizeUTF8(chunk.Content),
			source,
			docType,
			chunkIndex,
			pgvector.NewVector(chunk.Embedding),
			chunk.Metadata,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("chunks stored", zap.Int("count", len(chunks)))
	return nil
}

func (s *PGStore) Query(ctx context.Context, embedding []float32, topK int, filter map[string]string) ([]models.StoreHit, error) {
	args := []interface{}{pgvector.NewVector(embedding)}
	var conditions []string

	for key, value := range filter {
		args = append(args, value)
		switch key {
		case "source", "doc_type":
			conditions = append(conditions, fmt.Sprintf("%s = $%d", key, len(args)))
		default:
			conditions = append(conditions, fmt.Sprintf("metadata->>'%s' = $%d", key, len(args)))
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, topK)
	query := fmt.Sprintf(`
		SELECT content, metadata, embedding <=> $1 AS distance
		FROM %s
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d`,
		s.config.TableName, where, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.StoreHit
	for rows.Next() {
		var hit models.StoreHit
		if err := rows.Scan(&hit.Content, &hit.Metadata, &hit.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *PGStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.config.TableName)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func (s *PGStore) Location() string {
	return fmt.Sprintf("pgvector:%s", s.config.TableName)
}

func (s *PGStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
