// Package store provides the vector store backends: an embedded chromem-go
// database for single-node deployments and a pgvector-backed PostgreSQL store
// for shared ones. Both upsert by chunk ID and answer nearest-neighbor
// queries with equality filters over metadata.
package store

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mywind/docsearch/internal/types"
)

type Config struct {
	Backend    string // chromem | pgvector
	Path       string // chromem persist directory
	Collection string // chromem collection name
	ConnString string // pgvector connection string
	TableName  string // pgvector table
	VectorDim  int
}

// NewWithConfig builds the backend named by config.Backend.
func NewWithConfig(config Config, logger *zap.Logger) (types.VectorStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch config.Backend {
	case "", "chromem":
		return NewChromemStore(config, logger)
	case "pgvector":
		return NewPGStore(config, logger)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", config.Backend)
	}
}

// metadataToStrings flattens metadata for backends that only hold string
// values. Non-string values are formatted with %v.
func metadataToStrings(metadata map[string]interface{}) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func metadataFromStrings(metadata map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
