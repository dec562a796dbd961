package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appRAG "github.com/ragchat/backend/internal/application/rag"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/log"
	"github.com/ragchat/backend/internal/interfaces/http/response"
)

// ChatHandler 对话处理器
type ChatHandler struct {
	chat   ChatService
	logger *slog.Logger
}

// NewChatHandler 创建对话处理器
func NewChatHandler(chat ChatService) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: log.NewModuleLogger("http", "chat_handler"),
	}
}

// ChatStreamRequest 流式对话请求
type ChatStreamRequest struct {
	Message         string   `json:"message" binding:"required"`
	ConversationID  string   `json:"conversationId,omitempty"`
	UserID          string   `json:"userId,omitempty"`
	Model           string   `json:"model,omitempty"`
	SelectedFileIDs []string `json:"selectedFileIds,omitempty"`
	Instructions    string   `json:"instructions,omitempty"`
}

// MessageView 记忆中的单条消息
type MessageView struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MemoryView 会话记忆
type MemoryView struct {
	ConversationID string        `json:"conversationId"`
	Summary        string        `json:"summary"`
	MessagesToSend []MessageView `json:"messagesToSend"`
}

// Stream 流式对话
// @Summary 流式对话
// @Description 以 Server-Sent Events 返回 {content, conversationId} 片段与工具状态，以 [DONE] 或 [ERROR] 结束
// @Tags 对话
// @Accept json
// @Produce text/event-stream
// @Param request body ChatStreamRequest true "对话请求"
// @Success 200 {object} StreamChunk
// @Failure 400 {object} response.ErrorResponse
// @Router /chat/stream [post]
func (h *ChatHandler) Stream(c *gin.Context) {
	var req ChatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "message is required")
		return
	}

	// 首个片段就需要携带会话 ID
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}
	ctx := log.WithConversationID(c.Request.Context(), conversationID)
	if req.UserID != "" {
		ctx = log.WithOwnerID(ctx, req.UserID)
	}
	logger := log.FromContext(ctx, h.logger)

	stream, err := newSSEWriter(c.Writer)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, err.Error())
		return
	}

	onToken := func(token string) {
		if err := stream.WriteJSON(StreamChunk{Content: token, ConversationID: conversationID}); err != nil {
			logger.Debug("Failed to write stream chunk", "error", err)
		}
	}
	sink := func(status domainRAG.ToolStatus) {
		if err := stream.WriteJSON(ToolStatusEvent{
			Type:    "tool_status",
			Tool:    status.Tool,
			Status:  string(status.Status),
			Details: status.Details,
		}); err != nil {
			logger.Debug("Failed to write tool status", "error", err)
		}
	}

	_, err = h.chat.StreamTurn(ctx, appRAG.TurnRequest{
		ConversationID:  conversationID,
		OwnerID:         req.UserID,
		Message:         req.Message,
		ModelName:       req.Model,
		SelectedFileIDs: req.SelectedFileIDs,
		Instructions:    req.Instructions,
	}, onToken, sink)

	switch {
	case err == nil:
		_ = stream.Done()
	case errors.Is(err, domainRAG.ErrStreamCancelled) || ctx.Err() != nil:
		logger.Info("Stream cancelled by client")
	default:
		logger.Error("Chat stream failed", "error", err)
		_ = stream.Fail()
	}
}

// Memory 获取会话记忆
// @Summary 获取会话记忆
// @Description 返回摘要与需要发送给模型的近期消息，必要时触发摘要
// @Tags 对话
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} response.Response{data=MemoryView}
// @Failure 404 {object} response.ErrorResponse
// @Router /conversations/{id}/memory [get]
func (h *ChatHandler) Memory(c *gin.Context) {
	conversationID := c.Param("id")
	ctx := log.WithConversationID(c.Request.Context(), conversationID)

	memory, err := h.chat.Memory(ctx, conversationID)
	if err != nil {
		response.FromError(c, "failed to load conversation memory", err)
		return
	}

	view := MemoryView{
		ConversationID: conversationID,
		Summary:        memory.Summary,
		MessagesToSend: make([]MessageView, 0, len(memory.MessagesToSend)),
	}
	for _, m := range memory.MessagesToSend {
		view.MessagesToSend = append(view.MessagesToSend, MessageView{
			Sender:    string(m.Sender),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	response.Success(c, view)
}
