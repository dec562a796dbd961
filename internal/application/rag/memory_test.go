package rag

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordTokenizers 按空白分词计数，并统计未释放的租约
type wordTokenizers struct {
	active     atomic.Int64
	acquireErr error
	countErr   error
}

func (p *wordTokenizers) Acquire(model string) (domainRAG.Tokenizer, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.active.Add(1)
	return &wordLease{provider: p}, nil
}

type wordLease struct {
	provider *wordTokenizers
	released atomic.Bool
}

func (l *wordLease) Count(text string) (int, error) {
	if l.provider.countErr != nil {
		return 0, l.provider.countErr
	}
	return len(strings.Fields(text)), nil
}

func (l *wordLease) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.provider.active.Add(-1)
	}
}

type memoryFixture struct {
	stores     *testStores
	tokenizers *wordTokenizers
	model      *scriptedModel
	manager    *MemoryManager
	convID     string
}

func newMemoryFixture(t *testing.T) *memoryFixture {
	t.Helper()

	stores := setupStores(t)
	f := &memoryFixture{
		stores:     stores,
		tokenizers: &wordTokenizers{},
		model:      &scriptedModel{},
		convID:     "conv-1",
	}
	f.manager = NewMemoryManager(stores.conversations, stores.messages, f.tokenizers, newTestRegistry(f.model), &config.MemoryConfig{
		InitialSummaryTrigger:   50,
		SummaryUpdateTrigger:    100,
		TokenOverheadPerMessage: 10,
		FallbackCharsPerToken:   4,
		SummaryTemperature:      0.1,
		SummaryMaxTokens:        800,
		TokenizerModel:          "gpt-4o",
	})

	conv := domainRAG.NewConversation(f.convID, "owner-1", "first")
	require.NoError(t, stores.conversations.CreateConversation(context.Background(), conv))
	return f
}

// add 追加一条 10 个单词的消息，加上开销计 20 个 token
func (f *memoryFixture) add(t *testing.T, sender domainRAG.Sender, label string) *domainRAG.ChatMessage {
	t.Helper()
	words := make([]string, 10)
	for i := range words {
		words[i] = fmt.Sprintf("%s-%d", label, i)
	}
	msg := &domainRAG.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: f.convID,
		Sender:         sender,
		Content:        strings.Join(words, " "),
		CreatedAt:      time.Now(),
	}
	require.NoError(t, f.stores.messages.AppendMessage(context.Background(), msg))
	return msg
}

func (f *memoryFixture) state(t *testing.T) domainRAG.MemoryState {
	t.Helper()
	conv, err := f.stores.conversations.GetConversation(context.Background(), f.convID)
	require.NoError(t, err)
	return conv.Memory
}

func contents(messages []*domainRAG.ChatMessage) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.Content)
	}
	return out
}

func TestMemoryManager_SingleMessageSendsAll(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	msg := &domainRAG.ChatMessage{ID: "m1", ConversationID: f.convID, Sender: domainRAG.SenderUser, Content: "hello", CreatedAt: time.Now()}
	require.NoError(t, f.stores.messages.AppendMessage(ctx, msg))

	result := f.manager.GetMemory(ctx, f.convID)
	assert.Equal(t, "", result.Summary)
	assert.Equal(t, []string{"hello"}, contents(result.MessagesToSend))
	assert.Equal(t, 0, f.model.generateCalls())
	assert.Equal(t, int64(0), f.tokenizers.active.Load())
}

func TestMemoryManager_BelowInitialTriggerSendsHistory(t *testing.T) {
	f := newMemoryFixture(t)
	f.add(t, domainRAG.SenderUser, "u1")
	f.add(t, domainRAG.SenderAI, "a1")

	result := f.manager.GetMemory(context.Background(), f.convID)
	assert.Empty(t, result.Summary)
	assert.Len(t, result.MessagesToSend, 2)

	state := f.state(t)
	assert.Equal(t, 0, state.SummaryVersion)
	assert.Equal(t, 20, state.LastTokenCount)
	assert.Equal(t, 0, f.model.generateCalls())
}

func TestMemoryManager_SummaryLifecycle(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	f.model.generate = []string{"Summary one", "Summary two"}

	// 4 条历史消息共 80 token，超过首次阈值 50
	f.add(t, domainRAG.SenderUser, "u1")
	f.add(t, domainRAG.SenderAI, "a1")
	f.add(t, domainRAG.SenderUser, "u2")
	f.add(t, domainRAG.SenderAI, "a2")
	u3 := f.add(t, domainRAG.SenderUser, "u3")

	result := f.manager.GetMemory(ctx, f.convID)
	assert.Equal(t, "Summary one", result.Summary)
	assert.Equal(t, []string{u3.Content}, contents(result.MessagesToSend))

	state := f.state(t)
	assert.Equal(t, 1, state.SummaryVersion)
	assert.Equal(t, 3, state.LastSummarizedMessageIndex)
	assert.Equal(t, 0, state.LastTokenCount)
	require.Len(t, f.model.prompts, 1)
	assert.Contains(t, f.model.prompts[0], "## CONVERSATION TO SUMMARIZE:")
	assert.Contains(t, f.model.prompts[0], "user: u1-0")
	assert.Contains(t, f.model.prompts[0], "ai: a2-0")
	assert.NotContains(t, f.model.prompts[0], "u3-0")

	// 游标之后的未摘要部分低于更新阈值，原样发送
	a3 := f.add(t, domainRAG.SenderAI, "a3")
	u4 := f.add(t, domainRAG.SenderUser, "u4")

	result = f.manager.GetMemory(ctx, f.convID)
	assert.Equal(t, "Summary one", result.Summary)
	assert.Equal(t, []string{u3.Content, a3.Content, u4.Content}, contents(result.MessagesToSend))

	state = f.state(t)
	assert.Equal(t, 1, state.SummaryVersion)
	assert.Equal(t, 3, state.LastSummarizedMessageIndex)
	assert.Equal(t, 40, state.LastTokenCount)

	// 累积到 6 条共 120 token，触发合并更新
	f.add(t, domainRAG.SenderAI, "a4")
	f.add(t, domainRAG.SenderUser, "u5")
	f.add(t, domainRAG.SenderAI, "a5")
	u6 := f.add(t, domainRAG.SenderUser, "u6")

	result = f.manager.GetMemory(ctx, f.convID)
	assert.Equal(t, "Summary two", result.Summary)
	assert.Equal(t, []string{u6.Content}, contents(result.MessagesToSend))

	next := f.state(t)
	assert.Equal(t, state.SummaryVersion+1, next.SummaryVersion)
	assert.Greater(t, next.LastSummarizedMessageIndex, state.LastSummarizedMessageIndex)
	assert.Equal(t, 9, next.LastSummarizedMessageIndex)
	assert.Equal(t, 0, next.LastTokenCount)

	require.Len(t, f.model.prompts, 2)
	assert.Contains(t, f.model.prompts[1], "### PREVIOUS SUMMARY:\nSummary one")
	assert.Contains(t, f.model.prompts[1], "user: u3-0")
	assert.NotContains(t, f.model.prompts[1], "u6-0")

	assert.Equal(t, int64(0), f.tokenizers.active.Load())
}

func TestMemoryManager_SummarizationFailureDegrades(t *testing.T) {
	f := newMemoryFixture(t)
	f.model.err = assert.AnError

	for i := 0; i < 4; i++ {
		f.add(t, domainRAG.SenderUser, fmt.Sprintf("m%d", i))
	}
	last := f.add(t, domainRAG.SenderUser, "last")

	result := f.manager.GetMemory(context.Background(), f.convID)
	assert.Empty(t, result.Summary)
	assert.Equal(t, []string{last.Content}, contents(result.MessagesToSend))

	state := f.state(t)
	assert.Equal(t, 0, state.SummaryVersion)
	assert.Equal(t, int64(0), f.tokenizers.active.Load())

	_, _, err := f.manager.resolve(context.Background(), f.convID)
	assert.ErrorIs(t, err, domainRAG.ErrSummarization)
}

func TestMemoryManager_TokenizerFallback(t *testing.T) {
	f := newMemoryFixture(t)
	f.tokenizers.acquireErr = assert.AnError

	f.add(t, domainRAG.SenderUser, "u1")
	f.add(t, domainRAG.SenderUser, "u2")

	f.manager.GetMemory(context.Background(), f.convID)

	// "u1-0 ... u1-9" 共 49 个字符，按 4 字符/token 估算为 13，加 10 的开销
	assert.Equal(t, 23, f.state(t).LastTokenCount)
}

func TestMemoryManager_MissingConversation(t *testing.T) {
	f := newMemoryFixture(t)

	result := f.manager.GetMemory(context.Background(), "missing")
	assert.Empty(t, result.Summary)
	assert.Empty(t, result.MessagesToSend)
	assert.NotNil(t, result.MessagesToSend)
}

// failingConversations 会话读取失败，消息仓库仍可用
type failingConversations struct {
	domainRAG.ConversationRepository
}

func (failingConversations) GetConversation(ctx context.Context, id string) (*domainRAG.Conversation, error) {
	return nil, fmt.Errorf("db read failed")
}

func TestMemoryManager_ConversationReadFailureSendsLastMessage(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	msg := &domainRAG.ChatMessage{ID: "m1", ConversationID: f.convID, Sender: domainRAG.SenderUser, Content: "hello", CreatedAt: time.Now()}
	require.NoError(t, f.stores.messages.AppendMessage(ctx, msg))

	manager := NewMemoryManager(failingConversations{f.stores.conversations}, f.stores.messages, f.tokenizers, newTestRegistry(f.model), &config.MemoryConfig{})

	result := manager.GetMemory(ctx, f.convID)
	assert.Empty(t, result.Summary)
	assert.Equal(t, []string{"hello"}, contents(result.MessagesToSend))
	assert.Equal(t, 0, f.model.generateCalls())
}
