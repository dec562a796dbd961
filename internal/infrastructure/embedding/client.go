package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

const defaultMaxRetries = 3

// Client OpenAI 兼容的 Embedding API 客户端
// 一次调用对应一段文本、一个向量
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient 创建 Embedding 客户端
func NewClient(baseURL, apiKey, model string, dimension int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		// 规范化 baseURL：移除末尾斜杠
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
		maxRetries: defaultMaxRetries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.NewModuleLogger("embedding", "client"),
	}
}

// buildEmbeddingURL 构建 Embedding API URL
// 支持多种输入格式，智能拼接 /v1/embeddings 路径
func buildEmbeddingURL(baseURL string) string {
	switch {
	case strings.HasSuffix(baseURL, "/embeddings"):
		return baseURL
	case strings.HasSuffix(baseURL, "/v1"):
		return baseURL + "/embeddings"
	case strings.HasSuffix(baseURL, "/v1/"):
		return baseURL + "embeddings"
	default:
		return fmt.Sprintf("%s/v1/embeddings", baseURL)
	}
}

// embeddingRequest Embedding 请求
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse Embedding 响应
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed 向量化单段文本
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty: %w", domainRAG.ErrValidation)
	}

	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := buildEmbeddingURL(c.baseURL)
	c.logger.Debug("Sending embedding request",
		"url", url,
		"model", c.model,
		"api_key", log.MaskSecret(c.apiKey),
		"text_length", len(text),
	)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			// 递增延迟
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domainRAG.ErrEmbeddingProvider, ctx.Err())
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		vector, retryable, err := c.doRequest(ctx, url, body)
		if err == nil {
			return vector, nil
		}
		lastErr = err
		if !retryable {
			break
		}

		c.logger.Warn("Embedding request failed, retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"error", err,
		)
	}

	c.logger.Error("Embedding request failed", "error", lastErr)
	return nil, fmt.Errorf("%w: %v", domainRAG.ErrEmbeddingProvider, lastErr)
}

// doRequest 发送一次请求，返回是否可重试
func (c *Client) doRequest(ctx context.Context, url string, body []byte) ([]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, false, fmt.Errorf("invalid embedding response: no data")
	}

	vector := parsed.Data[0].Embedding
	if c.dimension > 0 && len(vector) != c.dimension {
		return nil, false, fmt.Errorf("unexpected vector dimension %d, want %d", len(vector), c.dimension)
	}

	return vector, false, nil
}

// Dimension 配置的向量维度
func (c *Client) Dimension() int {
	return c.dimension
}

// TestConnection 测试连接
func (c *Client) TestConnection(ctx context.Context) error {
	c.logger.Info("Testing embedding API connection",
		"base_url", c.baseURL,
		"model", c.model,
	)

	vector, err := c.Embed(ctx, "test")
	if err != nil {
		c.logger.Error("Embedding API connection test failed", "error", err)
		return err
	}

	c.logger.Info("Embedding API connection test successful",
		"vector_dimension", len(vector),
	)
	return nil
}
