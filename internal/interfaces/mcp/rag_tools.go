package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// 检索结果数量限制，避免上下文过载
const (
	defaultSearchLimit = 5
	maxSearchLimit     = 20
)

// SearchDocumentsInput 文档检索工具输入
type SearchDocumentsInput struct {
	Query   string   `json:"query" jsonschema:"Search query describing the information needed (required)"`
	FileIDs []string `json:"file_ids,omitempty" jsonschema:"Document IDs to restrict the search to"`
	Limit   int      `json:"limit,omitempty" jsonschema:"Maximum number of passages, defaults to 5, max 20"`
}

// SearchDocumentsOutput 文档检索工具输出
type SearchDocumentsOutput struct {
	Passages   []*PassageResult `json:"passages" jsonschema:"Relevant passages ordered by score"`
	TotalCount int              `json:"total_count" jsonschema:"Number of passages returned"`
}

// PassageResult 单个命中片段
type PassageResult struct {
	FileID     string  `json:"file_id" jsonschema:"Document ID"`
	FileName   string  `json:"file_name,omitempty" jsonschema:"Original file name"`
	ChunkIndex int     `json:"chunk_index" jsonschema:"Position of the chunk within the document"`
	Content    string  `json:"content" jsonschema:"Passage text"`
	Score      float32 `json:"score" jsonschema:"Cosine similarity score"`
}

// DocumentStatusInput 文档状态工具输入
type DocumentStatusInput struct {
	FileID string `json:"file_id" jsonschema:"Document ID (required)"`
}

// DocumentStatusOutput 文档状态工具输出
type DocumentStatusOutput struct {
	FileID       string `json:"file_id" jsonschema:"Document ID"`
	Status       string `json:"status" jsonschema:"pending/processing/completed/failed"`
	ChunkCount   int    `json:"chunk_count" jsonschema:"Number of stored chunks"`
	ErrorMessage string `json:"error_message,omitempty" jsonschema:"Failure reason when status is failed"`
}

// ConversationMemoryInput 会话记忆工具输入
type ConversationMemoryInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"Conversation ID (required)"`
}

// ConversationMemoryOutput 会话记忆工具输出
type ConversationMemoryOutput struct {
	Summary  string          `json:"summary" jsonschema:"Summary of older messages, empty when none"`
	Messages []MemoryMessage `json:"messages" jsonschema:"Recent messages sent to the model verbatim"`
}

// MemoryMessage 记忆中的消息
type MemoryMessage struct {
	Sender  string `json:"sender" jsonschema:"user or ai"`
	Content string `json:"content" jsonschema:"Message text"`
}

// searchDocumentsTool 文档检索工具实现
func (s *MCPServer) searchDocumentsTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchDocumentsInput,
) (*mcp.CallToolResult, SearchDocumentsOutput, error) {
	output := SearchDocumentsOutput{
		Passages: []*PassageResult{},
	}

	if strings.TrimSpace(input.Query) == "" {
		return nil, output, fmt.Errorf("query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	passages, err := s.searcher.Search(ctx, input.Query, input.FileIDs, limit)
	if err != nil {
		log.FromContext(ctx, s.logger).Warn("MCP document search failed", "error", err)
		return nil, output, fmt.Errorf("search failed: %w", err)
	}

	for _, p := range passages {
		output.Passages = append(output.Passages, &PassageResult{
			FileID:     p.FileID,
			FileName:   p.Metadata.FileName,
			ChunkIndex: p.Metadata.ChunkIndex,
			Content:    p.Content,
			Score:      p.Score,
		})
	}
	output.TotalCount = len(output.Passages)
	return nil, output, nil
}

// getDocumentStatusTool 文档状态工具实现
func (s *MCPServer) getDocumentStatusTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input DocumentStatusInput,
) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	if input.FileID == "" {
		return nil, DocumentStatusOutput{}, fmt.Errorf("file_id is required")
	}

	status, err := s.documents.GetStatus(ctx, input.FileID)
	if err != nil {
		return nil, DocumentStatusOutput{}, fmt.Errorf("failed to get document status: %w", err)
	}

	return nil, DocumentStatusOutput{
		FileID:       status.FileID,
		Status:       string(status.Status),
		ChunkCount:   status.ChunkCount,
		ErrorMessage: status.ErrorMessage,
	}, nil
}

// getConversationMemoryTool 会话记忆工具实现
func (s *MCPServer) getConversationMemoryTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ConversationMemoryInput,
) (*mcp.CallToolResult, ConversationMemoryOutput, error) {
	output := ConversationMemoryOutput{Messages: []MemoryMessage{}}
	if input.ConversationID == "" {
		return nil, output, fmt.Errorf("conversation_id is required")
	}

	memory, err := s.memory.Memory(log.WithConversationID(ctx, input.ConversationID), input.ConversationID)
	if err != nil {
		return nil, output, fmt.Errorf("failed to load conversation memory: %w", err)
	}

	output.Summary = memory.Summary
	for _, m := range memory.MessagesToSend {
		output.Messages = append(output.Messages, MemoryMessage{
			Sender:  string(m.Sender),
			Content: m.Content,
		})
	}
	return nil, output, nil
}
