package tools

import (
	"context"
	"strings"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
)

// DocumentSearchToolName 文档检索工具名称
const DocumentSearchToolName = "search_documents"

const documentSearchDescription = "Search the user's uploaded documents for passages relevant to a query. Use it when the answer likely lives in the uploaded files."

const defaultDocumentHits = 5

// DocumentSearcher 文档检索能力，由检索服务实现
type DocumentSearcher interface {
	Search(ctx context.Context, query string, fileIDs []string, limit int) ([]*domainRAG.ScoredPassage, error)
}

// DocumentSearchParams 文档检索参数
type DocumentSearchParams struct {
	Query      string `json:"query" jsonschema:"description=What to look for in the uploaded documents"`
	MaxResults int    `json:"maxResults,omitempty" jsonschema:"description=Maximum number of passages to return. Default is 5."`
}

// DocumentHit 单条检索片段
type DocumentHit struct {
	FileName   string  `json:"fileName"`
	ChunkIndex int     `json:"chunkIndex"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

// DocumentSearchResult 文档检索结果
type DocumentSearchResult struct {
	Success   bool          `json:"success"`
	Query     string        `json:"query"`
	Results   []DocumentHit `json:"results"`
	Timestamp string        `json:"timestamp"`
}

// documentSearch 绑定了本轮对话的文件范围
type documentSearch struct {
	searcher DocumentSearcher
	fileIDs  []string
}

func (d *documentSearch) search(ctx context.Context, params DocumentSearchParams) (any, error) {
	if strings.TrimSpace(params.Query) == "" {
		return failure("query is required"), nil
	}
	limit := params.MaxResults
	if limit <= 0 {
		limit = defaultDocumentHits
	}

	passages, err := d.searcher.Search(ctx, params.Query, d.fileIDs, limit)
	if err != nil {
		return failure("Document search failed"), nil
	}

	result := DocumentSearchResult{
		Success:   true,
		Query:     params.Query,
		Results:   make([]DocumentHit, 0, len(passages)),
		Timestamp: now(),
	}
	for _, p := range passages {
		result.Results = append(result.Results, DocumentHit{
			FileName:   p.Metadata.FileName,
			ChunkIndex: p.Metadata.ChunkIndex,
			Content:    p.Content,
			Score:      p.Score,
		})
	}
	return result, nil
}
