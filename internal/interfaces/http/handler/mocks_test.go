package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	appRAG "github.com/ragchat/backend/internal/application/rag"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDocumentService DocumentService 的 mock
type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Submit(ctx context.Context, req appRAG.IngestRequest) (*appRAG.SubmitResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appRAG.SubmitResult), args.Error(1)
}

func (m *MockDocumentService) GetStatus(ctx context.Context, fileID string) (*domainRAG.DocumentStatusView, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainRAG.DocumentStatusView), args.Error(1)
}

func (m *MockDocumentService) ListDocuments(ctx context.Context, ownerID string) ([]*domainRAG.DocumentFile, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domainRAG.DocumentFile), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, fileID string) error {
	return m.Called(ctx, fileID).Error(0)
}

// MockSearchService SearchService 的 mock
type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, query string, fileIDs []string, maxResults int) ([]*domainRAG.ScoredPassage, error) {
	args := m.Called(ctx, query, fileIDs, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domainRAG.ScoredPassage), args.Error(1)
}

func (m *MockSearchService) BuildContext(ctx context.Context, query string, fileIDs []string) string {
	return m.Called(ctx, query, fileIDs).String(0)
}

// fakeChatService 按脚本输出 token 与工具状态
type fakeChatService struct {
	tokens   []string
	statuses []domainRAG.ToolStatus
	err      error
	memory   domainRAG.MemoryResult
	requests []appRAG.TurnRequest
}

func (f *fakeChatService) StreamTurn(ctx context.Context, req appRAG.TurnRequest, onToken appRAG.TokenFunc, sink domainRAG.StatusSink) (*appRAG.TurnResult, error) {
	f.requests = append(f.requests, req)
	for _, s := range f.statuses {
		sink(s)
	}
	var text string
	for _, token := range f.tokens {
		text += token
		onToken(token)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &appRAG.TurnResult{ConversationID: req.ConversationID, Response: text}, nil
}

func (f *fakeChatService) Memory(ctx context.Context, conversationID string) (domainRAG.MemoryResult, error) {
	if f.err != nil {
		return domainRAG.MemoryResult{}, f.err
	}
	return f.memory, nil
}

// fakeProgress 记录被升级的文件 ID
type fakeProgress struct {
	served []string
}

func (p *fakeProgress) ServeFile(w http.ResponseWriter, r *http.Request, fileID string) {
	p.served = append(p.served, fileID)
	w.WriteHeader(http.StatusSwitchingProtocols)
}
