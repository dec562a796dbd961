package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/llm"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// MemoryManager 混合记忆：旧消息滚动摘要，最近消息原样保留
type MemoryManager struct {
	conversations domainRAG.ConversationRepository
	messages      domainRAG.MessageRepository
	tokenizers    domainRAG.TokenizerProvider
	models        *llm.ModelRegistry
	cfg           config.MemoryConfig
	logger        *slog.Logger
}

// NewMemoryManager 创建记忆管理器
func NewMemoryManager(
	conversations domainRAG.ConversationRepository,
	messages domainRAG.MessageRepository,
	tokenizers domainRAG.TokenizerProvider,
	models *llm.ModelRegistry,
	cfg *config.MemoryConfig,
) *MemoryManager {
	c := *cfg
	if c.InitialSummaryTrigger <= 0 {
		c.InitialSummaryTrigger = 2000
	}
	if c.SummaryUpdateTrigger <= 0 {
		c.SummaryUpdateTrigger = 1000
	}
	if c.FallbackCharsPerToken <= 0 {
		c.FallbackCharsPerToken = 4
	}
	return &MemoryManager{
		conversations: conversations,
		messages:      messages,
		tokenizers:    tokenizers,
		models:        models,
		cfg:           c,
		logger:        log.NewModuleLogger("rag", "memory"),
	}
}

// GetMemory 返回摘要和需要发送给模型的消息
// 任何错误降级为空摘要加最后一条消息
func (m *MemoryManager) GetMemory(ctx context.Context, conversationID string) domainRAG.MemoryResult {
	ctx = log.WithConversationID(ctx, conversationID)
	logger := log.FromContext(ctx, m.logger)

	result, messages, err := m.resolve(ctx, conversationID)
	if err == nil {
		return result
	}

	logger.Warn("Memory pipeline failed, falling back to last message", "error", err)
	fallback := domainRAG.MemoryResult{MessagesToSend: []*domainRAG.ChatMessage{}}
	if len(messages) == 0 {
		// 会话或消息读取失败时 resolve 没有消息可用，单独再读一次
		messages, err = m.messages.ListMessages(ctx, conversationID)
		if err != nil {
			logger.Error("Failed to load last message for fallback", "error", err)
			return fallback
		}
	}
	if len(messages) > 0 {
		fallback.MessagesToSend = messages[len(messages)-1:]
	}
	return fallback
}

// resolve 执行状态机，出错时同时返回已读取的消息供降级使用
func (m *MemoryManager) resolve(ctx context.Context, conversationID string) (domainRAG.MemoryResult, []*domainRAG.ChatMessage, error) {
	conv, err := m.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return domainRAG.MemoryResult{}, nil, err
	}

	messages, err := m.messages.ListMessages(ctx, conversationID)
	if err != nil {
		return domainRAG.MemoryResult{}, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	if len(messages) == 0 {
		return domainRAG.MemoryResult{Summary: conv.Memory.Summary, MessagesToSend: []*domainRAG.ChatMessage{}}, messages, nil
	}

	counter := &tokenCounter{
		provider:      m.tokenizers,
		model:         m.cfg.TokenizerModel,
		overhead:      m.cfg.TokenOverheadPerMessage,
		charsPerToken: m.cfg.FallbackCharsPerToken,
		logger:        m.logger,
	}
	defer counter.release()

	var result domainRAG.MemoryResult
	if conv.Memory.SummaryVersion == 0 {
		result, err = m.withoutSummary(ctx, conv, messages, counter)
	} else {
		result, err = m.withSummary(ctx, conv, messages, counter)
	}
	return result, messages, err
}

// withoutSummary 尚无摘要：历史超过首次阈值时生成摘要
func (m *MemoryManager) withoutSummary(ctx context.Context, conv *domainRAG.Conversation, messages []*domainRAG.ChatMessage, counter *tokenCounter) (domainRAG.MemoryResult, error) {
	last := messages[len(messages)-1]
	analyzed := messages[:len(messages)-1]
	tokens := counter.countMessages(analyzed)

	// 只有一条消息时 analyzed 为空，总是走全量发送
	if len(analyzed) == 0 || tokens < m.cfg.InitialSummaryTrigger {
		state := conv.Memory
		state.LastTokenCount = tokens
		if err := m.conversations.UpdateMemory(ctx, conv.ID, state); err != nil {
			return domainRAG.MemoryResult{}, fmt.Errorf("failed to save token count: %w", err)
		}
		return domainRAG.MemoryResult{Summary: "", MessagesToSend: messages}, nil
	}

	log.FromContext(ctx, m.logger).Info("Generating initial summary",
		"analyzed_messages", len(analyzed),
		"tokens", tokens,
	)

	summary, err := m.summarize(ctx, initialSummaryPrompt(formatTranscript(analyzed)))
	if err != nil {
		return domainRAG.MemoryResult{}, err
	}

	state := domainRAG.MemoryState{
		Summary:                    summary,
		SummaryVersion:             1,
		LastSummarizedMessageIndex: len(analyzed) - 1,
		LastTokenCount:             0,
	}
	if err := m.conversations.UpdateMemory(ctx, conv.ID, state); err != nil {
		return domainRAG.MemoryResult{}, fmt.Errorf("failed to save summary: %w", err)
	}
	return domainRAG.MemoryResult{Summary: summary, MessagesToSend: []*domainRAG.ChatMessage{last}}, nil
}

// withSummary 已有摘要：游标之后的消息超过更新阈值时合并摘要
func (m *MemoryManager) withSummary(ctx context.Context, conv *domainRAG.Conversation, messages []*domainRAG.ChatMessage, counter *tokenCounter) (domainRAG.MemoryResult, error) {
	last := messages[len(messages)-1]

	from := conv.Memory.LastSummarizedMessageIndex + 1
	if from < 0 {
		from = 0
	}
	if from > len(messages)-1 {
		from = len(messages) - 1
	}
	analyzed := messages[from : len(messages)-1]
	tokens := counter.countMessages(analyzed)

	if len(analyzed) == 0 || tokens < m.cfg.SummaryUpdateTrigger {
		state := conv.Memory
		state.LastTokenCount = tokens
		if err := m.conversations.UpdateMemory(ctx, conv.ID, state); err != nil {
			return domainRAG.MemoryResult{}, fmt.Errorf("failed to save token count: %w", err)
		}
		return domainRAG.MemoryResult{Summary: conv.Memory.Summary, MessagesToSend: messages[from:]}, nil
	}

	log.FromContext(ctx, m.logger).Info("Updating summary",
		"summary_version", conv.Memory.SummaryVersion,
		"analyzed_messages", len(analyzed),
		"tokens", tokens,
	)

	summary, err := m.summarize(ctx, updateSummaryPrompt(formatTranscript(analyzed), conv.Memory.Summary))
	if err != nil {
		return domainRAG.MemoryResult{}, err
	}

	state := domainRAG.MemoryState{
		Summary:                    summary,
		SummaryVersion:             conv.Memory.SummaryVersion + 1,
		LastSummarizedMessageIndex: from + len(analyzed) - 1,
		LastTokenCount:             0,
	}
	if err := m.conversations.UpdateMemory(ctx, conv.ID, state); err != nil {
		return domainRAG.MemoryResult{}, fmt.Errorf("failed to save summary: %w", err)
	}
	return domainRAG.MemoryResult{Summary: summary, MessagesToSend: []*domainRAG.ChatMessage{last}}, nil
}

// summarize 调用工具模型生成摘要
func (m *MemoryManager) summarize(ctx context.Context, prompt string) (string, error) {
	chatModel, err := m.models.Utility()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainRAG.ErrSummarization, err)
	}

	opts := []model.Option{model.WithTemperature(m.cfg.SummaryTemperature)}
	if m.cfg.SummaryMaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(m.cfg.SummaryMaxTokens))
	}

	resp, err := chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainRAG.ErrSummarization, err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", domainRAG.ErrSummarization)
	}
	return summary, nil
}

// tokenCounter 首次计数时才获取分词器，一次调用内共享
type tokenCounter struct {
	provider      domainRAG.TokenizerProvider
	model         string
	overhead      int
	charsPerToken int
	logger        *slog.Logger

	lease    domainRAG.Tokenizer
	acquired bool
}

func (c *tokenCounter) countMessages(messages []*domainRAG.ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += c.count(msg.Content) + c.overhead
	}
	return total
}

func (c *tokenCounter) count(text string) int {
	if tok := c.tokenizer(); tok != nil {
		n, err := tok.Count(text)
		if err == nil {
			return n
		}
		c.logger.Debug("Tokenizer failed, using character estimate", "error", err)
	}
	chars := utf8.RuneCountInString(text)
	return (chars + c.charsPerToken - 1) / c.charsPerToken
}

func (c *tokenCounter) tokenizer() domainRAG.Tokenizer {
	if c.acquired {
		return c.lease
	}
	c.acquired = true
	if c.provider == nil {
		return nil
	}
	lease, err := c.provider.Acquire(c.model)
	if err != nil {
		c.logger.Warn("Tokenizer unavailable, using character estimate",
			"model", c.model,
			"error", err,
		)
		return nil
	}
	c.lease = lease
	return lease
}

func (c *tokenCounter) release() {
	if c.lease != nil {
		c.lease.Release()
		c.lease = nil
	}
}
