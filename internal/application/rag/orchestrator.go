package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/llm"
	"github.com/ragchat/backend/internal/infrastructure/log"
	"github.com/ragchat/backend/internal/infrastructure/tools"
)

// TokenFunc 接收流式输出的文本片段
type TokenFunc func(token string)

// StreamRequest 一次流式回复的输入
type StreamRequest struct {
	ModelName        string
	ConversationID   string
	RetrievedContext string
	SelectedFileIDs  []string
	Memory           domainRAG.MemoryResult
	Instructions     string
}

// Orchestrator 组装提示词，流式调用模型并执行工具
type Orchestrator struct {
	models        *llm.ModelRegistry
	toolset       *tools.Toolset
	searcher      tools.DocumentSearcher
	messages      domainRAG.MessageRepository
	conversations domainRAG.ConversationRepository
	maxSteps      int
	logger        *slog.Logger
}

// NewOrchestrator 创建流式编排器
func NewOrchestrator(
	models *llm.ModelRegistry,
	toolset *tools.Toolset,
	retrieval *RetrievalService,
	messages domainRAG.MessageRepository,
	conversations domainRAG.ConversationRepository,
	cfg *config.ChatConfig,
) *Orchestrator {
	o := &Orchestrator{
		models:        models,
		toolset:       toolset,
		messages:      messages,
		conversations: conversations,
		maxSteps:      cfg.MaxToolSteps,
		logger:        log.NewModuleLogger("rag", "orchestrator"),
	}
	if retrieval != nil {
		o.searcher = retrieval
	}
	if o.maxSteps <= 0 {
		o.maxSteps = 10
	}
	return o
}

// Stream 流式生成回复，返回完整文本
// ctx 取消时停止读取，已生成的部分仍会保存，返回 ErrStreamCancelled
func (o *Orchestrator) Stream(ctx context.Context, req StreamRequest, onToken TokenFunc, sink domainRAG.StatusSink) (string, error) {
	ctx = log.WithConversationID(ctx, req.ConversationID)
	logger := log.FromContext(ctx, o.logger)

	chatModel, modelName, err := o.models.Resolve(req.ModelName)
	if err != nil {
		return "", err
	}

	toolList, err := o.toolset.Build(o.searcher, req.SelectedFileIDs)
	if err != nil {
		return "", err
	}
	runner, infos, err := newToolRunner(ctx, toolList, sink, logger)
	if err != nil {
		return "", err
	}

	var boundModel model.BaseChatModel = chatModel
	if len(infos) > 0 {
		withTools, err := chatModel.WithTools(infos)
		if err != nil {
			return "", fmt.Errorf("failed to bind tools: %w", err)
		}
		boundModel = withTools
	}

	systemPrompt := BuildSystemPrompt(SystemPromptInput{
		Capabilities:     tools.FormatCapabilities(o.toolset.Describe(o.searcher != nil)),
		Summary:          req.Memory.Summary,
		ConversationID:   req.ConversationID,
		Instructions:     req.Instructions,
		RetrievedContext: req.RetrievedContext,
		SelectedFiles:    len(req.SelectedFileIDs),
	})
	input := buildModelInput(systemPrompt, req.Memory.MessagesToSend)

	logger.Info("Streaming response",
		"model", modelName,
		"history_count", len(req.Memory.MessagesToSend),
		"has_summary", req.Memory.Summary != "",
		"has_context", req.RetrievedContext != "",
		"tools_count", len(infos),
	)

	var response strings.Builder
	emit := func(token string) {
		response.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}

	for step := 0; step < o.maxSteps; step++ {
		msg, err := o.streamStep(ctx, boundModel, input, emit)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, domainRAG.ErrStreamCancelled) {
				return o.cancelled(ctx, req.ConversationID, response.String())
			}
			logger.Error("Model stream failed", "step", step, "error", err)
			return response.String(), err
		}

		if len(msg.ToolCalls) == 0 {
			break
		}

		input = append(input, msg)
		for _, call := range msg.ToolCalls {
			if ctx.Err() != nil {
				return o.cancelled(ctx, req.ConversationID, response.String())
			}
			input = append(input, runner.run(ctx, call))
		}

		if step == o.maxSteps-1 {
			logger.Warn("Tool step limit reached", "max_steps", o.maxSteps)
		}
	}

	text := response.String()
	if err := o.persist(ctx, req.ConversationID, text); err != nil {
		logger.Error("Failed to save assistant message", "error", err)
	}
	logger.Debug("Response completed", "response_length", len(text))
	return text, nil
}

// streamStep 读取一轮模型输出，每个分片前检查取消
func (o *Orchestrator) streamStep(ctx context.Context, chatModel model.BaseChatModel, input []*schema.Message, emit TokenFunc) (*schema.Message, error) {
	reader, err := chatModel.Stream(ctx, input)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var chunks []*schema.Message
	for {
		if ctx.Err() != nil {
			return nil, domainRAG.ErrStreamCancelled
		}

		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil, domainRAG.ErrStreamCancelled
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			emit(chunk.Content)
		}
	}

	if len(chunks) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	msg, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to merge stream chunks: %w", err)
	}
	return msg, nil
}

// cancelled 保存已生成的部分回复
func (o *Orchestrator) cancelled(ctx context.Context, conversationID, partial string) (string, error) {
	logger := log.FromContext(ctx, o.logger)
	logger.Info("Stream cancelled by client", "partial_length", len(partial))

	if err := o.persist(context.WithoutCancel(ctx), conversationID, partial); err != nil {
		logger.Error("Failed to save partial response", "error", err)
	}
	return partial, domainRAG.ErrStreamCancelled
}

// persist 写入 ai 消息，空白内容不保存
func (o *Orchestrator) persist(ctx context.Context, conversationID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	msg := &domainRAG.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         domainRAG.SenderAI,
		Content:        text,
		CreatedAt:      time.Now(),
	}
	if err := o.messages.AppendMessage(ctx, msg); err != nil {
		return err
	}
	return o.conversations.TouchConversation(ctx, conversationID)
}

// buildModelInput 系统提示词 + 历史消息
func buildModelInput(systemPrompt string, history []*domainRAG.ChatMessage) []*schema.Message {
	input := make([]*schema.Message, 0, len(history)+1)
	input = append(input, schema.SystemMessage(systemPrompt))
	for _, msg := range history {
		if msg.Sender == domainRAG.SenderAI {
			input = append(input, schema.AssistantMessage(msg.Content, nil))
		} else {
			input = append(input, schema.UserMessage(msg.Content))
		}
	}
	return input
}
