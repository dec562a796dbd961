package rag

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Sender 消息发送方
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// 会话标题
const (
	DefaultConversationTitle = "New Chat"
	maxTitleLength           = 50
)

// MemoryState 会话记忆状态，只允许 Memory Manager 修改
type MemoryState struct {
	Summary string
	// SummaryVersion 0 表示尚未生成摘要，单调递增
	SummaryVersion int
	// LastSummarizedMessageIndex 摘要游标，单调不减
	LastSummarizedMessageIndex int
	// LastTokenCount 最近一次未摘要部分的 token 数缓存
	LastTokenCount int
}

// Conversation 聊天会话
type Conversation struct {
	ID        string
	Title     string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
	Memory    MemoryState
}

// NewConversation 创建会话，标题取首条消息
func NewConversation(id, ownerID, firstMessage string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        id,
		Title:     TitleFromMessage(firstMessage),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TitleFromMessage 截取前 50 个字符作为标题
func TitleFromMessage(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return DefaultConversationTitle
	}
	if utf8.RuneCountInString(message) <= maxTitleLength {
		return message
	}
	runes := []rune(message)
	return string(runes[:maxTitleLength])
}

// ChatMessage 单条消息，创建后不可变
type ChatMessage struct {
	ID             string
	ConversationID string
	Sender         Sender
	Content        string
	CreatedAt      time.Time
}

// MemoryResult Memory Manager 输出
type MemoryResult struct {
	Summary        string         `json:"summary"`
	MessagesToSend []*ChatMessage `json:"messagesToSend"`
}
