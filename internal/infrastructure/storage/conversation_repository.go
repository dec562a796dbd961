package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
)

var (
	_ domainRAG.ConversationRepository = (*ConversationRepositoryImpl)(nil)
	_ domainRAG.MessageRepository      = (*ConversationRepositoryImpl)(nil)
)

// ConversationRepositoryImpl 会话与消息仓库实现
type ConversationRepositoryImpl struct {
	db *sql.DB
}

// NewConversationRepository 创建会话仓库实例
func NewConversationRepository(db *sql.DB) *ConversationRepositoryImpl {
	return &ConversationRepositoryImpl{db: db}
}

// ProvideConversationRepository 以接口形式提供会话仓库
func ProvideConversationRepository(repo *ConversationRepositoryImpl) domainRAG.ConversationRepository {
	return repo
}

// ProvideMessageRepository 以接口形式提供消息仓库
func ProvideMessageRepository(repo *ConversationRepositoryImpl) domainRAG.MessageRepository {
	return repo
}

// CreateConversation 创建会话
func (r *ConversationRepositoryImpl) CreateConversation(ctx context.Context, conv *domainRAG.Conversation) error {
	query := `INSERT INTO conversations (
			id, title, owner_id, created_at, updated_at,
			summary, summary_version, last_summarized_message_index, last_token_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		conv.ID,
		conv.Title,
		conv.OwnerID,
		conv.CreatedAt.UnixMilli(),
		conv.UpdatedAt.UnixMilli(),
		conv.Memory.Summary,
		conv.Memory.SummaryVersion,
		conv.Memory.LastSummarizedMessageIndex,
		conv.Memory.LastTokenCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation %s: %w", conv.ID, err)
	}
	return nil
}

// GetConversation 获取会话，不存在时返回 ErrNotFound
func (r *ConversationRepositoryImpl) GetConversation(ctx context.Context, id string) (*domainRAG.Conversation, error) {
	query := `SELECT id, title, owner_id, created_at, updated_at,
			summary, summary_version, last_summarized_message_index, last_token_count
		FROM conversations WHERE id = ?`

	var (
		conv      domainRAG.Conversation
		createdAt int64
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID,
		&conv.Title,
		&conv.OwnerID,
		&createdAt,
		&updatedAt,
		&conv.Memory.Summary,
		&conv.Memory.SummaryVersion,
		&conv.Memory.LastSummarizedMessageIndex,
		&conv.Memory.LastTokenCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, domainRAG.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation %s: %w", id, err)
	}

	conv.CreatedAt = time.UnixMilli(createdAt)
	conv.UpdatedAt = time.UnixMilli(updatedAt)
	return &conv, nil
}

// UpdateMemory 写入记忆状态
// 版本和游标只进不退：比库中已有状态旧的写入被忽略
func (r *ConversationRepositoryImpl) UpdateMemory(ctx context.Context, id string, memory domainRAG.MemoryState) error {
	query := `UPDATE conversations
		SET summary = ?, summary_version = ?, last_summarized_message_index = ?,
			last_token_count = ?, updated_at = ?
		WHERE id = ?
			AND (summary_version < ?
				OR (summary_version = ? AND last_summarized_message_index <= ?))`

	result, err := r.db.ExecContext(ctx, query,
		memory.Summary,
		memory.SummaryVersion,
		memory.LastSummarizedMessageIndex,
		memory.LastTokenCount,
		time.Now().UnixMilli(),
		id,
		memory.SummaryVersion,
		memory.SummaryVersion,
		memory.LastSummarizedMessageIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to update memory of conversation %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("conversation %s: %w", id, domainRAG.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to query conversation %s: %w", id, err)
	}
	// 并发轮次已写入更新的摘要
	return nil
}

// TouchConversation 更新会话的 updated_at
func (r *ConversationRepositoryImpl) TouchConversation(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), id,
	)
	return err
}

// DeleteConversation 删除会话，消息级联删除
func (r *ConversationRepositoryImpl) DeleteConversation(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s: %w", id, domainRAG.ErrNotFound)
	}
	return nil
}

// AppendMessage 追加消息
func (r *ConversationRepositoryImpl) AppendMessage(ctx context.Context, msg *domainRAG.ChatMessage) error {
	query := `INSERT INTO chat_messages (id, conversation_id, sender, content, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		string(msg.Sender),
		msg.Content,
		msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message into conversation %s: %w", msg.ConversationID, err)
	}
	return nil
}

// ListMessages 按创建顺序返回会话消息
func (r *ConversationRepositoryImpl) ListMessages(ctx context.Context, conversationID string) ([]*domainRAG.ChatMessage, error) {
	query := `SELECT id, conversation_id, sender, content, created_at
		FROM chat_messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, seq ASC`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var results []*domainRAG.ChatMessage
	for rows.Next() {
		var (
			msg       domainRAG.ChatMessage
			sender    string
			createdAt int64
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &sender, &msg.Content, &createdAt); err != nil {
			return nil, err
		}
		msg.Sender = domainRAG.Sender(sender)
		msg.CreatedAt = time.UnixMilli(createdAt)
		results = append(results, &msg)
	}

	return results, rows.Err()
}
