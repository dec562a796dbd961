package embedding

import (
	"context"
	"fmt"
	"strings"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
)

// Provider 名称
const (
	ProviderHTTP = "http"
	ProviderEino = "eino"
)

var (
	_ domainRAG.Embedder = (*Client)(nil)
	_ domainRAG.Embedder = (*EinoClient)(nil)
)

// NewEmbedder 按配置选择 Embedding 实现
func NewEmbedder(cfg *config.EmbeddingConfig) (domainRAG.Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedding config is required")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderHTTP:
		return NewClient(cfg.URL, cfg.APIKey, cfg.Model, cfg.Dimension, cfg.Timeout), nil
	case ProviderEino:
		return NewOpenAIEinoClient(context.Background(), cfg.URL, cfg.APIKey, cfg.Model, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
