package handler

import (
	"context"

	appRAG "github.com/ragchat/backend/internal/application/rag"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
)

// DocumentService 文档入库与管理
type DocumentService interface {
	Submit(ctx context.Context, req appRAG.IngestRequest) (*appRAG.SubmitResult, error)
	GetStatus(ctx context.Context, fileID string) (*domainRAG.DocumentStatusView, error)
	ListDocuments(ctx context.Context, ownerID string) ([]*domainRAG.DocumentFile, error)
	Delete(ctx context.Context, fileID string) error
}

// SearchService 文档检索
type SearchService interface {
	Search(ctx context.Context, query string, fileIDs []string, maxResults int) ([]*domainRAG.ScoredPassage, error)
	BuildContext(ctx context.Context, query string, fileIDs []string) string
}

// ChatService 对话轮次与记忆
type ChatService interface {
	StreamTurn(ctx context.Context, req appRAG.TurnRequest, onToken appRAG.TokenFunc, sink domainRAG.StatusSink) (*appRAG.TurnResult, error)
	Memory(ctx context.Context, conversationID string) (domainRAG.MemoryResult, error)
}

var (
	_ DocumentService = (*appRAG.Ingestor)(nil)
	_ SearchService   = (*appRAG.RetrievalService)(nil)
	_ ChatService     = (*appRAG.ChatService)(nil)
)
