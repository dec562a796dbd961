package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// 服务器标识
const (
	serverName    = "ragchat"
	serverVersion = "0.1.0"
)

// PassageSearcher 文档检索
type PassageSearcher interface {
	Search(ctx context.Context, query string, fileIDs []string, maxResults int) ([]*domainRAG.ScoredPassage, error)
}

// StatusReader 文档状态查询
type StatusReader interface {
	GetStatus(ctx context.Context, fileID string) (*domainRAG.DocumentStatusView, error)
}

// MemoryReader 会话记忆查询
type MemoryReader interface {
	Memory(ctx context.Context, conversationID string) (domainRAG.MemoryResult, error)
}

// MCPServer MCP 服务器，通过 SSE 暴露检索与记忆工具
type MCPServer struct {
	server    *mcp.Server
	handler   http.Handler
	searcher  PassageSearcher
	documents StatusReader
	memory    MemoryReader
	logger    *slog.Logger
}

// NewServer 创建 MCP 服务器
func NewServer(searcher PassageSearcher, documents StatusReader, memory MemoryReader) *MCPServer {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		nil,
	)

	s := &MCPServer{
		server:    server,
		searcher:  searcher,
		documents: documents,
		memory:    memory,
		logger:    log.NewModuleLogger("mcp", "server"),
	}

	mcp.AddTool(server, &mcp.Tool{
		Name: "search_documents",
		Description: `Search the user's uploaded documents for passages relevant to a query.

Parameters:
- query (string, required): Natural language description of the information needed
- file_ids (array of strings, optional): Restrict the search to these document IDs
- limit (int, optional): Maximum number of passages to return (1-20, default: 5)

Returns: Passages ordered by similarity score, each with its document ID, file name and chunk index.`,
	}, s.searchDocumentsTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_document_status",
		Description: "Get the ingestion status of an uploaded document. Parameters: file_id (string, required). Returns: status (pending/processing/completed/failed), chunk count and error message if ingestion failed.",
	}, s.getDocumentStatusTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_conversation_memory",
		Description: "Get the memory of a conversation: the running summary of older turns and the recent messages sent to the model verbatim. Parameters: conversation_id (string, required).",
	}, s.getConversationMemoryTool)

	s.handler = mcp.NewSSEHandler(
		func(r *http.Request) *mcp.Server {
			return server
		},
		nil,
	)
	return s
}

// GetHandler 获取 HTTP Handler（挂载到 HTTP 服务器）
func (s *MCPServer) GetHandler() http.Handler {
	return s.handler
}
