package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// TurnRequest 一轮对话请求
type TurnRequest struct {
	// ConversationID 为空时创建新会话
	ConversationID  string
	OwnerID         string
	Message         string
	ModelName       string
	SelectedFileIDs []string
	Instructions    string
}

// TurnResult 一轮对话结果
type TurnResult struct {
	ConversationID string `json:"conversationId"`
	Response       string `json:"response"`
}

// ChatService 单轮对话流程：分析 -> 检索 -> 记忆 -> 流式回复
type ChatService struct {
	conversations domainRAG.ConversationRepository
	messages      domainRAG.MessageRepository
	locker        domainRAG.TurnLocker
	analyzer      *QueryAnalyzer
	retrieval     *RetrievalService
	memory        *MemoryManager
	orchestrator  *Orchestrator
	intelligent   bool
	logger        *slog.Logger
}

// NewChatService 创建对话服务
func NewChatService(
	conversations domainRAG.ConversationRepository,
	messages domainRAG.MessageRepository,
	locker domainRAG.TurnLocker,
	analyzer *QueryAnalyzer,
	retrieval *RetrievalService,
	memory *MemoryManager,
	orchestrator *Orchestrator,
	cfg *config.RetrievalConfig,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		locker:        locker,
		analyzer:      analyzer,
		retrieval:     retrieval,
		memory:        memory,
		orchestrator:  orchestrator,
		intelligent:   cfg.IntelligentSearch,
		logger:        log.NewModuleLogger("rag", "chat"),
	}
}

// StreamTurn 处理一轮对话，同一会话的并发轮次串行执行
func (s *ChatService) StreamTurn(ctx context.Context, req TurnRequest, onToken TokenFunc, sink domainRAG.StatusSink) (*TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("message cannot be empty: %w", domainRAG.ErrValidation)
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	ctx = log.WithConversationID(ctx, req.ConversationID)
	if req.OwnerID != "" {
		ctx = log.WithOwnerID(ctx, req.OwnerID)
	}
	logger := log.FromContext(ctx, s.logger)

	release, err := s.locker.Acquire(ctx, req.ConversationID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domainRAG.ErrStreamCancelled
		}
		return nil, fmt.Errorf("failed to acquire conversation lock: %w", err)
	}
	defer release()

	if err := s.ensureConversation(ctx, req); err != nil {
		return nil, err
	}

	userMsg := &domainRAG.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		Sender:         domainRAG.SenderUser,
		Content:        req.Message,
		CreatedAt:      time.Now(),
	}
	if err := s.messages.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	retrieved := s.retrieveContext(ctx, req)
	memory := s.memory.GetMemory(ctx, req.ConversationID)

	logger.Debug("Turn prepared",
		"context_length", len(retrieved),
		"messages_to_send", len(memory.MessagesToSend),
		"selected_files", len(req.SelectedFileIDs),
	)

	response, err := s.orchestrator.Stream(ctx, StreamRequest{
		ModelName:        req.ModelName,
		ConversationID:   req.ConversationID,
		RetrievedContext: retrieved,
		SelectedFileIDs:  req.SelectedFileIDs,
		Memory:           memory,
		Instructions:     req.Instructions,
	}, onToken, sink)
	return &TurnResult{ConversationID: req.ConversationID, Response: response}, err
}

// Memory 计算会话当前的记忆
func (s *ChatService) Memory(ctx context.Context, conversationID string) (domainRAG.MemoryResult, error) {
	release, err := s.locker.Acquire(ctx, conversationID)
	if err != nil {
		return domainRAG.MemoryResult{}, fmt.Errorf("failed to acquire conversation lock: %w", err)
	}
	defer release()

	if _, err := s.conversations.GetConversation(ctx, conversationID); err != nil {
		return domainRAG.MemoryResult{}, err
	}
	return s.memory.GetMemory(ctx, conversationID), nil
}

// ensureConversation 会话不存在时以首条消息为标题创建
func (s *ChatService) ensureConversation(ctx context.Context, req TurnRequest) error {
	_, err := s.conversations.GetConversation(ctx, req.ConversationID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domainRAG.ErrNotFound) {
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	conv := domainRAG.NewConversation(req.ConversationID, req.OwnerID, req.Message)
	if err := s.conversations.CreateConversation(ctx, conv); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	log.FromContext(ctx, s.logger).Info("Conversation created", "title", conv.Title)
	return nil
}

// retrieveContext 按分析结果检索文档上下文，失败时返回空
func (s *ChatService) retrieveContext(ctx context.Context, req TurnRequest) string {
	query := req.Message
	if s.intelligent {
		analysis := s.analyzer.Analyze(ctx, req.Message)
		if !analysis.NeedsSearch {
			log.FromContext(ctx, s.logger).Debug("Search skipped",
				"reason", analysis.Reason,
				"confidence", analysis.Confidence,
			)
			return ""
		}
		query = analysis.SearchQuery(req.Message)
	}
	return s.retrieval.BuildContext(ctx, query, req.SelectedFileIDs)
}
