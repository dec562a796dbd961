package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/log"
	"github.com/ragchat/backend/internal/infrastructure/tools"
)

// ContextSeparator 拼接检索片段时的分隔符
const ContextSeparator = "\n\n---\n\n"

var _ tools.DocumentSearcher = (*RetrievalService)(nil)

// RetrievalService 查询向量化 + 相似度检索 + 上下文拼接
type RetrievalService struct {
	embedder         domainRAG.Embedder
	store            domainRAG.VectorStore
	similarityFloor  float32
	multiplier       int
	maxResults       int
	maxContextChunks int
	logger           *slog.Logger
}

// NewRetrievalService 创建检索服务
func NewRetrievalService(embedder domainRAG.Embedder, store domainRAG.VectorStore, cfg *config.RetrievalConfig) *RetrievalService {
	s := &RetrievalService{
		embedder:         embedder,
		store:            store,
		similarityFloor:  cfg.SimilarityFloor,
		multiplier:       cfg.CandidateMultiplier,
		maxResults:       cfg.MaxResults,
		maxContextChunks: cfg.MaxContextChunks,
		logger:           log.NewModuleLogger("rag", "retrieval"),
	}
	if s.multiplier <= 0 {
		s.multiplier = 10
	}
	if s.maxResults <= 0 {
		s.maxResults = 5
	}
	if s.maxContextChunks <= 0 {
		s.maxContextChunks = 5
	}
	return s
}

// Search 检索相关片段，按分数降序
// fileIDs 非空时只在这些文件内检索；embedding 失败直接返回错误
func (s *RetrievalService) Search(ctx context.Context, query string, fileIDs []string, maxResults int) ([]*domainRAG.ScoredPassage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty: %w", domainRAG.ErrValidation)
	}
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// 过采样，减少阈值过滤造成的漏召回
	hits, err := s.store.Search(ctx, vector, domainRAG.SearchOptions{
		FileIDs:  fileIDs,
		Limit:    maxResults * s.multiplier,
		MinScore: s.similarityFloor,
	})
	if err != nil {
		return nil, err
	}

	passages := make([]*domainRAG.ScoredPassage, 0, len(hits))
	for _, hit := range hits {
		// 阈值是严格大于
		if hit.Score <= s.similarityFloor {
			continue
		}
		passages = append(passages, hit)
	}
	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Score > passages[j].Score
	})
	if len(passages) > maxResults {
		passages = passages[:maxResults]
	}

	log.FromContext(ctx, s.logger).Debug("Retrieval completed",
		"scoped_files", len(fileIDs),
		"candidates_count", len(hits),
		"results_count", len(passages),
	)
	return passages, nil
}

// BuildContext 检索并拼接为上下文字符串
// 任何失败或无结果都返回空串，调用方按“无上下文”处理
func (s *RetrievalService) BuildContext(ctx context.Context, query string, fileIDs []string) string {
	logger := log.FromContext(ctx, s.logger)

	passages, err := s.Search(ctx, query, fileIDs, s.maxContextChunks)
	if err != nil {
		logger.Warn("Document search failed, continuing without context", "error", err)
		return ""
	}

	chunks := make([]string, 0, len(passages))
	for _, p := range passages {
		if strings.TrimSpace(p.Content) == "" {
			continue
		}
		chunks = append(chunks, p.Content)
		if len(chunks) == s.maxContextChunks {
			break
		}
	}
	if len(chunks) == 0 {
		logger.Debug("No relevant documents found")
		return ""
	}

	contextText := strings.Join(chunks, ContextSeparator)
	logger.Info("Using document context",
		"chunks_count", len(chunks),
		"context_length", len(contextText),
	)
	return contextText
}
