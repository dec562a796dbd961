package vector

import (
	"context"
	"fmt"
	"strings"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
)

// 向量库后端
const (
	BackendQdrant   = "qdrant"
	BackendPgVector = "pgvector"
)

// NewVectorStore 按配置创建向量库，不连接后端
// 索引由 App.Start 建立，后端不可用时检索降级为无上下文
func NewVectorStore(cfg *config.VectorConfig, embCfg *config.EmbeddingConfig) (domainRAG.VectorStore, func(), error) {
	ctx := context.Background()

	var (
		store domainRAG.VectorStore
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendQdrant:
		store, err = NewQdrantStore(QdrantOptions{
			Host:        cfg.QdrantHost,
			Port:        cfg.QdrantPort,
			APIKey:      cfg.QdrantAPIKey,
			Collection:  cfg.Collection,
			Dimension:   embCfg.Dimension,
			GlobalIndex: cfg.GlobalIndex,
			ScopedIndex: cfg.ScopedIndex,
		})
	case BackendPgVector:
		if cfg.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("POSTGRES_DSN is required for the pgvector backend")
		}
		store, err = NewPgVectorStore(ctx, PgVectorOptions{
			DSN:         cfg.PostgresDSN,
			Table:       cfg.PostgresTable,
			Dimension:   embCfg.Dimension,
			MaxConns:    cfg.PostgresMaxCon,
			GlobalIndex: cfg.GlobalIndex,
			ScopedIndex: cfg.ScopedIndex,
		})
	default:
		return nil, nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		store.Close()
	}
	return store, cleanup, nil
}
