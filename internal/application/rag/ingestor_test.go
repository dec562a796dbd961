package rag

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/embedding"
	"github.com/ragchat/backend/internal/infrastructure/extractor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ingestorFixture struct {
	ingestor *Ingestor
	stores   *testStores
	embedder *MockEmbedder
	store    *MockVectorStore
}

func newIngestorFixture(t *testing.T) *ingestorFixture {
	t.Helper()

	stores := setupStores(t)
	embedder := &MockEmbedder{}
	store := &MockVectorStore{}
	ingestor := NewIngestor(
		stores.docs,
		extractor.ProvideTextExtractor(),
		NewChunker(1000, 200),
		embedder,
		store,
		embedding.NewThrottle(0),
		nil,
	)
	return &ingestorFixture{ingestor: ingestor, stores: stores, embedder: embedder, store: store}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// progressRecorder 记录进度回调
type progressRecorder struct {
	mu       sync.Mutex
	percents []int
	messages []string
}

func (r *progressRecorder) record(percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.percents = append(r.percents, percent)
	r.messages = append(r.messages, message)
}

func TestIngestor_Ingest_ShortTextFile(t *testing.T) {
	f := newIngestorFixture(t)
	content := "One fox. Two dogs. Three cats are here."
	require.Len(t, content, 39)
	path := writeTempFile(t, "notes.txt", content)

	f.embedder.On("Embed", mock.Anything, content).Return([]float32{0.1, 0.2, 0.3}, nil).Once()
	f.store.On("UpsertEmbedding", mock.Anything, mock.MatchedBy(func(emb *domainRAG.DocumentEmbedding) bool {
		return emb.ChunkID == "file-1_chunk_0" &&
			emb.Content == content &&
			emb.Metadata.ChunkCount == 1 &&
			emb.Metadata.FileName == "notes.txt"
	})).Return(nil).Once()

	progress := &progressRecorder{}
	result, err := f.ingestor.Ingest(context.Background(), IngestRequest{
		FileID:   "file-1",
		FilePath: path,
		FileName: "notes.txt",
		FileSize: int64(len(content)),
		MimeType: extractor.MimeText,
		OwnerID:  "owner-1",
	}, progress.record)
	require.NoError(t, err)

	require.Len(t, result.Chunks, 1)
	assert.Equal(t, content, result.Chunks[0].Content)
	assert.Equal(t, domainRAG.DocumentStatusCompleted, result.File.Status)

	status, err := f.ingestor.GetStatus(context.Background(), "file-1")
	require.NoError(t, err)
	assert.Equal(t, domainRAG.DocumentStatusCompleted, status.Status)
	assert.Equal(t, 1, status.ChunkCount)
	assert.Empty(t, status.ErrorMessage)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "temp file should be removed")

	assert.Equal(t, 100, progress.percents[len(progress.percents)-1])
	assert.IsNonDecreasing(t, progress.percents)
	f.embedder.AssertExpectations(t)
	f.store.AssertExpectations(t)
}

func TestIngestor_Ingest_Failures(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		content  string
		mimeType string
		setup    func(f *ingestorFixture)
		wantErr  error
	}{
		{
			name:     "unsupported format",
			fileName: "image.png",
			content:  "binary",
			mimeType: "image/png",
			wantErr:  domainRAG.ErrUnsupportedFormat,
		},
		{
			name:     "empty content",
			fileName: "blank.txt",
			content:  "   \n\t  ",
			mimeType: extractor.MimeText,
			wantErr:  domainRAG.ErrEmptyContent,
		},
		{
			name:     "embedding provider error",
			fileName: "notes.txt",
			content:  "Some text that will fail to embed.",
			mimeType: extractor.MimeText,
			setup: func(f *ingestorFixture) {
				f.embedder.On("Embed", mock.Anything, mock.Anything).
					Return(nil, domainRAG.ErrEmbeddingProvider).Once()
			},
			wantErr: domainRAG.ErrEmbeddingProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngestorFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			path := writeTempFile(t, tt.fileName, tt.content)

			progress := &progressRecorder{}
			_, err := f.ingestor.Ingest(context.Background(), IngestRequest{
				FileID:   "file-x",
				FilePath: path,
				FileName: tt.fileName,
				MimeType: tt.mimeType,
				OwnerID:  "owner-1",
			}, progress.record)
			assert.ErrorIs(t, err, tt.wantErr)

			status, err := f.ingestor.GetStatus(context.Background(), "file-x")
			require.NoError(t, err)
			assert.Equal(t, domainRAG.DocumentStatusFailed, status.Status)
			assert.NotEmpty(t, status.ErrorMessage)

			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr), "temp file should be removed on failure")

			require.NotEmpty(t, progress.messages)
			assert.True(t, strings.HasPrefix(progress.messages[len(progress.messages)-1], "Error: "))
			f.store.AssertNotCalled(t, "UpsertEmbedding", mock.Anything, mock.Anything)
		})
	}
}

func TestIngestor_Submit_RunsInBackground(t *testing.T) {
	f := newIngestorFixture(t)
	content := "Background ingestion works."
	path := writeTempFile(t, "bg.md", content)

	f.embedder.On("Embed", mock.Anything, content).Return([]float32{1, 0, 0}, nil)
	f.store.On("UpsertEmbedding", mock.Anything, mock.Anything).Return(nil)

	// 请求 ctx 在返回后立即取消，后台入库不受影响
	ctx, cancel := context.WithCancel(context.Background())
	result, err := f.ingestor.Submit(ctx, IngestRequest{
		FilePath: path,
		FileName: "bg.md",
		FileSize: int64(len(content)),
		MimeType: extractor.MimeMarkdown,
		OwnerID:  "owner-1",
	})
	cancel()
	require.NoError(t, err)
	assert.Equal(t, domainRAG.DocumentStatusPending, result.Status)
	assert.NotEmpty(t, result.FileID)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, f.ingestor.Wait(waitCtx))

	status, err := f.ingestor.GetStatus(context.Background(), result.FileID)
	require.NoError(t, err)
	assert.Equal(t, domainRAG.DocumentStatusCompleted, status.Status)
	assert.Equal(t, 1, status.ChunkCount)

	docs, err := f.ingestor.ListDocuments(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "bg.md", docs[0].Name)
}

func TestIngestor_Submit_Validation(t *testing.T) {
	f := newIngestorFixture(t)

	_, err := f.ingestor.Submit(context.Background(), IngestRequest{FilePath: "/tmp/x"})
	assert.ErrorIs(t, err, domainRAG.ErrValidation)

	path := writeTempFile(t, "archive.zip", "PK")
	_, err = f.ingestor.Submit(context.Background(), IngestRequest{
		FilePath: path,
		FileName: "archive.zip",
		MimeType: "application/zip",
	})
	assert.ErrorIs(t, err, domainRAG.ErrUnsupportedFormat)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestIngestor_Delete(t *testing.T) {
	f := newIngestorFixture(t)
	ctx := context.Background()

	doc := domainRAG.NewDocumentFile("file-del", "a.txt", 1, extractor.MimeText, "owner-1")
	require.NoError(t, f.stores.docs.CreateDocument(ctx, doc))

	f.store.On("DeleteByFile", mock.Anything, "file-del").Return(nil).Once()
	require.NoError(t, f.ingestor.Delete(ctx, "file-del"))

	_, err := f.ingestor.GetStatus(ctx, "file-del")
	assert.ErrorIs(t, err, domainRAG.ErrNotFound)

	err = f.ingestor.Delete(ctx, "file-del")
	assert.ErrorIs(t, err, domainRAG.ErrNotFound)
	f.store.AssertExpectations(t)
}

func TestIngestor_Ingest_ThrottlesEmbeddingCalls(t *testing.T) {
	const interval = 1200 * time.Millisecond

	stores := setupStores(t)
	embedder := &MockEmbedder{}
	store := &MockVectorStore{}
	ingestor := NewIngestor(
		stores.docs,
		extractor.ProvideTextExtractor(),
		NewChunker(30, 5),
		embedder,
		store,
		embedding.NewThrottle(interval),
		nil,
	)

	var (
		mu    sync.Mutex
		calls []time.Time
	)
	embedder.On("Embed", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		mu.Lock()
		calls = append(calls, time.Now())
		mu.Unlock()
	}).Return([]float32{0.1, 0.2, 0.3}, nil)
	store.On("UpsertEmbedding", mock.Anything, mock.Anything).Return(nil)

	content := "One fox runs home. Two dogs sleep now."
	path := writeTempFile(t, "animals.txt", content)

	progress := &progressRecorder{}
	result, err := ingestor.Ingest(context.Background(), IngestRequest{
		FileID:   "file-throttle",
		FilePath: path,
		FileName: "animals.txt",
		FileSize: int64(len(content)),
		MimeType: extractor.MimeText,
		OwnerID:  "owner-1",
	}, progress.record)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(result.Chunks), 2)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, len(result.Chunks))
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), interval-100*time.Millisecond)
	}

	var waits []string
	for _, msg := range progress.messages {
		if strings.HasPrefix(msg, "Rate limit wait: ") {
			waits = append(waits, msg)
		}
	}
	require.NotEmpty(t, waits)
	assert.Contains(t, waits[0], "s remaining... (")
	assert.Contains(t, waits[0], "chunks left)")
	assert.IsNonDecreasing(t, progress.percents)
}
