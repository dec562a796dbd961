package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openaiEmbed "github.com/cloudwego/eino-ext/components/embedding/openai"
	einoEmbedding "github.com/cloudwego/eino/components/embedding"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// EinoClient 基于 eino Embedder 的客户端
type EinoClient struct {
	embedder  einoEmbedding.Embedder
	dimension int
	logger    *slog.Logger
}

// NewEinoClient 包装任意 eino Embedder
func NewEinoClient(embedder einoEmbedding.Embedder, dimension int) *EinoClient {
	return &EinoClient{
		embedder:  embedder,
		dimension: dimension,
		logger:    log.NewModuleLogger("embedding", "eino_client"),
	}
}

// NewOpenAIEinoClient 使用 eino-ext 的 OpenAI 兼容 Embedder
func NewOpenAIEinoClient(ctx context.Context, baseURL, apiKey, model string, dimension int) (*EinoClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}

	embedder, err := openaiEmbed.NewEmbedder(ctx, &openaiEmbed.EmbeddingConfig{
		APIKey:  apiKey,
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Model:   model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}

	return NewEinoClient(embedder, dimension), nil
}

// Embed 向量化单段文本
func (c *EinoClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty: %w", domainRAG.ErrValidation)
	}

	vectors, err := c.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		c.logger.Error("Eino embedding failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domainRAG.ErrEmbeddingProvider, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", domainRAG.ErrEmbeddingProvider)
	}

	// eino 返回 float64，向量库使用 float32
	vector := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		vector[i] = float32(v)
	}

	if c.dimension > 0 && len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: unexpected vector dimension %d, want %d",
			domainRAG.ErrEmbeddingProvider, len(vector), c.dimension)
	}

	return vector, nil
}

// Dimension 配置的向量维度
func (c *EinoClient) Dimension() int {
	return c.dimension
}
