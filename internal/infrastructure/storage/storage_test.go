package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB 创建临时测试数据库
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := ProvideDB(&config.DatabaseConfig{Path: dbPath})
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetDBPath(t *testing.T) {
	path, err := GetDBPath(&config.DatabaseConfig{Path: "/tmp/custom.db"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", path)

	path, err = GetDBPath(nil)
	require.NoError(t, err)
	assert.Equal(t, "ragchat.db", filepath.Base(path))
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, InitSchema(db))
}

func TestDocumentRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t))

	doc := domainRAG.NewDocumentFile("file-1", "notes.txt", 40, "text/plain", "owner-1")
	require.NoError(t, repo.CreateDocument(ctx, doc))

	found, err := repo.GetDocument(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", found.Name)
	assert.Equal(t, int64(40), found.Size)
	assert.Equal(t, domainRAG.DocumentStatusPending, found.Status)
	assert.Empty(t, found.ErrorMessage)

	doc.MarkFailed("extraction failed")
	require.NoError(t, repo.SaveStatus(ctx, doc))

	found, err = repo.GetDocument(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, domainRAG.DocumentStatusFailed, found.Status)
	assert.Equal(t, "extraction failed", found.ErrorMessage)

	doc.MarkCompleted(4)
	require.NoError(t, repo.SaveStatus(ctx, doc))

	found, err = repo.GetDocument(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, domainRAG.DocumentStatusCompleted, found.Status)
	assert.Equal(t, 4, found.ChunkCount)
	assert.Empty(t, found.ErrorMessage)

	require.NoError(t, repo.DeleteDocument(ctx, "file-1"))
	_, err = repo.GetDocument(ctx, "file-1")
	assert.ErrorIs(t, err, domainRAG.ErrNotFound)
}

func TestDocumentRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t))

	_, err := repo.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domainRAG.ErrNotFound)

	err = repo.SaveStatus(ctx, domainRAG.NewDocumentFile("missing", "x", 1, "text/plain", "o"))
	assert.ErrorIs(t, err, domainRAG.ErrNotFound)

	assert.ErrorIs(t, repo.DeleteDocument(ctx, "missing"), domainRAG.ErrNotFound)
}

func TestDocumentRepository_ListByOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(setupTestDB(t))

	older := domainRAG.NewDocumentFile("file-a", "a.txt", 1, "text/plain", "owner-1")
	older.UploadedAt = time.Now().Add(-time.Hour)
	newer := domainRAG.NewDocumentFile("file-b", "b.txt", 1, "text/plain", "owner-1")
	other := domainRAG.NewDocumentFile("file-c", "c.txt", 1, "text/plain", "owner-2")

	for _, d := range []*domainRAG.DocumentFile{older, newer, other} {
		require.NoError(t, repo.CreateDocument(ctx, d))
	}

	docs, err := repo.ListDocumentsByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "file-b", docs[0].ID)
	assert.Equal(t, "file-a", docs[1].ID)
}

func TestConversationRepository_Memory(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))

	conv := domainRAG.NewConversation("conv-1", "owner-1", "hello")
	require.NoError(t, repo.CreateConversation(ctx, conv))

	found, err := repo.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", found.Title)
	assert.Equal(t, domainRAG.MemoryState{}, found.Memory)

	memory := domainRAG.MemoryState{
		Summary:                    "user asked about invoices",
		SummaryVersion:             2,
		LastSummarizedMessageIndex: 7,
		LastTokenCount:             0,
	}
	require.NoError(t, repo.UpdateMemory(ctx, "conv-1", memory))

	found, err = repo.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, memory, found.Memory)

	assert.ErrorIs(t, repo.UpdateMemory(ctx, "missing", memory), domainRAG.ErrNotFound)
}

func TestConversationRepository_UpdateMemoryNeverRegresses(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))
	require.NoError(t, repo.CreateConversation(ctx, domainRAG.NewConversation("conv-1", "owner-1", "hi")))

	current := domainRAG.MemoryState{Summary: "v2", SummaryVersion: 2, LastSummarizedMessageIndex: 9}
	require.NoError(t, repo.UpdateMemory(ctx, "conv-1", current))

	tests := []struct {
		name   string
		update domainRAG.MemoryState
		want   domainRAG.MemoryState
	}{
		{
			name:   "older version ignored",
			update: domainRAG.MemoryState{Summary: "v1", SummaryVersion: 1, LastSummarizedMessageIndex: 15},
			want:   current,
		},
		{
			name:   "same version with earlier cursor ignored",
			update: domainRAG.MemoryState{Summary: "stale", SummaryVersion: 2, LastSummarizedMessageIndex: 5},
			want:   current,
		},
		{
			name:   "token count refresh applied",
			update: domainRAG.MemoryState{Summary: "v2", SummaryVersion: 2, LastSummarizedMessageIndex: 9, LastTokenCount: 42},
			want:   domainRAG.MemoryState{Summary: "v2", SummaryVersion: 2, LastSummarizedMessageIndex: 9, LastTokenCount: 42},
		},
		{
			name:   "newer version applied",
			update: domainRAG.MemoryState{Summary: "v3", SummaryVersion: 3, LastSummarizedMessageIndex: 12},
			want:   domainRAG.MemoryState{Summary: "v3", SummaryVersion: 3, LastSummarizedMessageIndex: 12},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, repo.UpdateMemory(ctx, "conv-1", tt.update))

			found, err := repo.GetConversation(ctx, "conv-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, found.Memory)
		})
	}
}

func TestConversationRepository_MessagesInOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))

	require.NoError(t, repo.CreateConversation(ctx, domainRAG.NewConversation("conv-1", "owner-1", "hi")))

	// 相同时间戳按插入顺序返回
	now := time.Now()
	contents := []string{"first", "second", "third"}
	for i, content := range contents {
		sender := domainRAG.SenderUser
		if i%2 == 1 {
			sender = domainRAG.SenderAI
		}
		require.NoError(t, repo.AppendMessage(ctx, &domainRAG.ChatMessage{
			ID:             content,
			ConversationID: "conv-1",
			Sender:         sender,
			Content:        content,
			CreatedAt:      now,
		}))
	}

	messages, err := repo.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for i, msg := range messages {
		assert.Equal(t, contents[i], msg.Content)
	}
	assert.Equal(t, domainRAG.SenderAI, messages[1].Sender)
}

func TestConversationRepository_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))

	require.NoError(t, repo.CreateConversation(ctx, domainRAG.NewConversation("conv-1", "owner-1", "hi")))
	require.NoError(t, repo.AppendMessage(ctx, &domainRAG.ChatMessage{
		ID: "m1", ConversationID: "conv-1", Sender: domainRAG.SenderUser, Content: "hi", CreatedAt: time.Now(),
	}))

	require.NoError(t, repo.DeleteConversation(ctx, "conv-1"))

	messages, err := repo.ListMessages(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, messages)
}
