package rag

import "context"

// DocumentRepository 文档记录仓库
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc *DocumentFile) error
	GetDocument(ctx context.Context, id string) (*DocumentFile, error)
	// SaveStatus 写入状态、chunk 数和错误信息
	SaveStatus(ctx context.Context, doc *DocumentFile) error
	ListDocumentsByOwner(ctx context.Context, ownerID string) ([]*DocumentFile, error)
	DeleteDocument(ctx context.Context, id string) error
}

// ConversationRepository 会话仓库
type ConversationRepository interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	// UpdateMemory 仅供 Memory Manager 调用
	UpdateMemory(ctx context.Context, id string, memory MemoryState) error
	TouchConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error
}

// MessageRepository 消息仓库，按创建顺序返回
type MessageRepository interface {
	AppendMessage(ctx context.Context, msg *ChatMessage) error
	ListMessages(ctx context.Context, conversationID string) ([]*ChatMessage, error)
}

// SearchOptions 向量检索参数
type SearchOptions struct {
	// FileIDs 非空时走按文件过滤的索引
	FileIDs []string
	Limit   int
	// MinScore 服务端预过滤阈值，0 表示不过滤
	MinScore float32
}

// VectorStore 向量存储适配器
type VectorStore interface {
	// EnsureIndexes 创建全局索引和按 file_id 过滤的索引
	EnsureIndexes(ctx context.Context) error
	UpsertEmbedding(ctx context.Context, emb *DocumentEmbedding) error
	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]*ScoredPassage, error)
	DeleteByFile(ctx context.Context, fileID string) error
	Close() error
}

// Embedder Embedding 客户端：一次调用返回一个向量
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// TextExtractor 将原始文件转换为纯文本
type TextExtractor interface {
	Extract(ctx context.Context, filePath, mimeType string) (string, error)
	Supports(mimeType string) bool
}

// Tokenizer 按次获取的分词器，用完必须 Release
type Tokenizer interface {
	Count(text string) (int, error)
	Release()
}

// TokenizerProvider 分词器来源
type TokenizerProvider interface {
	Acquire(model string) (Tokenizer, error)
}

// TurnLocker 串行化同一会话上的并发轮次
type TurnLocker interface {
	// Acquire 阻塞直到拿到锁或 ctx 结束，返回的 release 必须调用
	Acquire(ctx context.Context, conversationID string) (release func(), err error)
}
