package rag

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/llm"
	"github.com/ragchat/backend/internal/infrastructure/storage"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmbedder 模拟 Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) Dimension() int {
	return 3
}

// MockVectorStore 模拟 VectorStore
type MockVectorStore struct {
	mock.Mock
}

func (m *MockVectorStore) EnsureIndexes(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockVectorStore) UpsertEmbedding(ctx context.Context, emb *domainRAG.DocumentEmbedding) error {
	return m.Called(ctx, emb).Error(0)
}

func (m *MockVectorStore) Search(ctx context.Context, vector []float32, opts domainRAG.SearchOptions) ([]*domainRAG.ScoredPassage, error) {
	args := m.Called(ctx, vector, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domainRAG.ScoredPassage), args.Error(1)
}

func (m *MockVectorStore) DeleteByFile(ctx context.Context, fileID string) error {
	return m.Called(ctx, fileID).Error(0)
}

func (m *MockVectorStore) Close() error {
	return nil
}

// scriptedModel 按顺序返回预设回复的对话模型
type scriptedModel struct {
	mu        sync.Mutex
	generate  []string
	streams   [][]*schema.Message
	err       error
	prompts   []string
	inputs    [][]*schema.Message
	toolInfos []*schema.ToolInfo
	// structured 非空时 Generate 以工具调用形式返回，参数依次取用
	structured []string
	options    []*model.Options
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, input[len(input)-1].Content)
	m.options = append(m.options, model.GetCommonOptions(&model.Options{}, opts...))
	if m.err != nil {
		return nil, m.err
	}
	if len(m.structured) > 0 && len(m.toolInfos) > 0 {
		args := m.structured[0]
		m.structured = m.structured[1:]
		return schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call-1",
			Function: schema.FunctionCall{Name: m.toolInfos[0].Name, Arguments: args},
		}}), nil
	}
	if len(m.generate) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	out := m.generate[0]
	m.generate = m.generate[1:]
	return schema.AssistantMessage(out, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs = append(m.inputs, append([]*schema.Message(nil), input...))
	if m.err != nil {
		return nil, m.err
	}
	if len(m.streams) == 0 {
		return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage("", nil)}), nil
	}
	chunks := m.streams[0]
	m.streams = m.streams[1:]
	return schema.StreamReaderFromArray(chunks), nil
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	m.toolInfos = tools
	m.mu.Unlock()
	return m, nil
}

func (m *scriptedModel) generateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// newTestRegistry 只包含一个模型的注册表
func newTestRegistry(m model.ToolCallingChatModel) *llm.ModelRegistry {
	return llm.NewRegistryWithModels(llm.ModelOpenAI, llm.ModelOpenAI, map[string]model.ToolCallingChatModel{
		llm.ModelOpenAI: m,
	})
}

// textChunks 将文本拆成固定长度的流式分片
func textChunks(text string, size int) []*schema.Message {
	var chunks []*schema.Message
	runes := []rune(text)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, schema.AssistantMessage(string(runes[start:end]), nil))
	}
	return chunks
}

// testStores 基于临时 SQLite 的仓库
type testStores struct {
	docs          domainRAG.DocumentRepository
	conversations domainRAG.ConversationRepository
	messages      domainRAG.MessageRepository
}

func setupStores(t *testing.T) *testStores {
	t.Helper()

	db, err := storage.ProvideDB(&config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	convRepo := storage.NewConversationRepository(db)
	return &testStores{
		docs:          storage.NewDocumentRepository(db),
		conversations: storage.ProvideConversationRepository(convRepo),
		messages:      storage.ProvideMessageRepository(convRepo),
	}
}
