package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ragchat/backend/internal/domain/events"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/embedding"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// ProgressFunc 入库进度回调，percent 取值 0-100
type ProgressFunc func(percent int, message string)

// EmbeddingThrottle 两次 embedding 调用之间的节流
type EmbeddingThrottle interface {
	Wait(ctx context.Context, onTick embedding.TickFunc) error
}

// IngestRequest 入库请求
type IngestRequest struct {
	// FileID 为空时自动生成
	FileID   string
	FilePath string
	FileName string
	FileSize int64
	MimeType string
	OwnerID  string
}

// SubmitResult 提交入库后的立即返回
type SubmitResult struct {
	FileID  string                   `json:"fileId"`
	Status  domainRAG.DocumentStatus `json:"status"`
	Message string                   `json:"message"`
}

// Ingestor 文档入库：提取 -> 分块 -> 向量化 -> 写入向量库
type Ingestor struct {
	docs      domainRAG.DocumentRepository
	extractor domainRAG.TextExtractor
	chunker   *Chunker
	embedder  domainRAG.Embedder
	store     domainRAG.VectorStore
	throttle  EmbeddingThrottle
	bus       events.EventBus
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewIngestor 创建入库服务
func NewIngestor(
	docs domainRAG.DocumentRepository,
	extractor domainRAG.TextExtractor,
	chunker *Chunker,
	embedder domainRAG.Embedder,
	store domainRAG.VectorStore,
	throttle EmbeddingThrottle,
	bus events.EventBus,
) *Ingestor {
	return &Ingestor{
		docs:      docs,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		throttle:  throttle,
		bus:       bus,
		logger:    log.NewModuleLogger("rag", "ingestor"),
	}
}

// Submit 创建 pending 记录并在后台入库，立即返回
// 后台任务与调用方的 ctx 解耦，请求结束不会中断入库
func (i *Ingestor) Submit(ctx context.Context, req IngestRequest) (*SubmitResult, error) {
	if strings.TrimSpace(req.FileName) == "" || req.FilePath == "" {
		i.removeTempFile(req.FilePath)
		return nil, fmt.Errorf("file name and path are required: %w", domainRAG.ErrValidation)
	}
	if !i.extractor.Supports(req.MimeType) {
		i.removeTempFile(req.FilePath)
		return nil, fmt.Errorf("unsupported file type %q: %w", req.MimeType, domainRAG.ErrUnsupportedFormat)
	}
	if req.FileID == "" {
		req.FileID = uuid.New().String()
	}

	doc := domainRAG.NewDocumentFile(req.FileID, req.FileName, req.FileSize, req.MimeType, req.OwnerID)
	if err := i.docs.CreateDocument(ctx, doc); err != nil {
		i.removeTempFile(req.FilePath)
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	i.publish(events.DocumentProgress, doc, 0, "File uploaded, processing queued")

	bgCtx := log.WithFileID(context.WithoutCancel(ctx), req.FileID)
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		if _, err := i.Ingest(bgCtx, req, nil); err != nil {
			i.logger.Warn("Background ingestion failed",
				"file_id", req.FileID,
				"error", err,
			)
		}
	}()

	return &SubmitResult{
		FileID:  req.FileID,
		Status:  domainRAG.DocumentStatusPending,
		Message: "File uploaded successfully. Processing started in background.",
	}, nil
}

// Ingest 同步执行入库
// 失败时记录 failed 状态；临时文件在所有退出路径上删除
func (i *Ingestor) Ingest(ctx context.Context, req IngestRequest, progress ProgressFunc) (result *domainRAG.ProcessedDocument, err error) {
	defer i.removeTempFile(req.FilePath)

	if req.FileID == "" {
		req.FileID = uuid.New().String()
	}
	ctx = log.WithFileID(ctx, req.FileID)
	logger := log.FromContext(ctx, i.logger)

	doc, err := i.loadOrCreate(ctx, req)
	if err != nil {
		return nil, err
	}

	report := func(percent int, message string) {
		if progress != nil {
			progress(percent, message)
		}
		i.publish(events.DocumentProgress, doc, percent, message)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingestion panicked: %v", r)
		}
		if err != nil {
			i.fail(ctx, doc, err, progress)
			result = nil
		}
	}()

	start := time.Now()
	report(5, "Initializing file processing...")

	doc.MarkProcessing()
	if err := i.docs.SaveStatus(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to mark document processing: %w", err)
	}

	report(10, "Reading file contents...")
	if !i.extractor.Supports(req.MimeType) {
		return nil, fmt.Errorf("unsupported file type %q: %w", req.MimeType, domainRAG.ErrUnsupportedFormat)
	}

	ext := strings.ToUpper(strings.TrimPrefix(filepath.Ext(req.FileName), "."))
	report(25, fmt.Sprintf("Extracting text from %s file...", ext))
	text, err := i.extractor.Extract(ctx, req.FilePath, req.MimeType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("no text extracted from %s: %w", req.FileName, domainRAG.ErrEmptyContent)
	}
	report(40, fmt.Sprintf("Extracted %d characters of text", utf8.RuneCountInString(text)))

	report(50, "Analyzing text structure...")
	report(60, "Creating optimized text chunks...")
	chunks := i.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("failed to create text chunks: %w", domainRAG.ErrEmptyContent)
	}
	report(70, fmt.Sprintf("Created %d text chunks for processing", len(chunks)))

	report(75, "Preparing vector embeddings data...")
	embeddings := make([]*domainRAG.DocumentEmbedding, len(chunks))
	for idx, content := range chunks {
		embeddings[idx] = &domainRAG.DocumentEmbedding{
			ChunkID: domainRAG.ChunkID(doc.ID, idx),
			FileID:  doc.ID,
			Content: content,
			Metadata: domainRAG.EmbeddingMetadata{
				FileID:     doc.ID,
				FileName:   doc.Name,
				FileSize:   doc.Size,
				FileType:   doc.MimeType,
				ChunkIndex: idx,
				ChunkCount: len(chunks),
				UploadDate: doc.UploadedAt,
			},
		}
	}

	report(85, "Generating vector embeddings...")
	if err := i.embedAndStore(ctx, embeddings, report); err != nil {
		return nil, err
	}

	doc.MarkCompleted(len(embeddings))
	if err := i.docs.SaveStatus(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to mark document completed: %w", err)
	}

	message := fmt.Sprintf("Successfully processed %q with %d chunks", doc.Name, len(embeddings))
	if progress != nil {
		progress(100, message)
	}
	i.publish(events.DocumentFinished, doc, 100, message)

	logger.Info("Document ingested",
		"file_name", doc.Name,
		"chunks_count", len(embeddings),
		"duration", time.Since(start),
	)

	return &domainRAG.ProcessedDocument{File: doc, Chunks: embeddings}, nil
}

// embedAndStore 逐个 chunk 向量化并立即写入，进度从 85% 推进到 95%
func (i *Ingestor) embedAndStore(ctx context.Context, embeddings []*domainRAG.DocumentEmbedding, report ProgressFunc) error {
	total := len(embeddings)
	for idx, emb := range embeddings {
		percent := 85 + idx*10/total
		left := total - idx

		err := i.throttle.Wait(ctx, func(remaining time.Duration) {
			seconds := int((remaining + time.Second - 1) / time.Second)
			report(percent, fmt.Sprintf("Rate limit wait: %ds remaining... (%d chunks left)", seconds, left))
		})
		if err != nil {
			return fmt.Errorf("embedding throttle interrupted: %w", err)
		}

		report(percent, fmt.Sprintf("Generating embedding for chunk %d/%d...", idx+1, total))
		vector, err := i.embedder.Embed(ctx, emb.Content)
		if err != nil {
			return fmt.Errorf("failed to generate embedding for chunk %d: %w", idx+1, err)
		}
		emb.Vector = vector

		if err := i.store.UpsertEmbedding(ctx, emb); err != nil {
			return fmt.Errorf("failed to store chunk %d: %w", idx+1, err)
		}
		report(percent+1, fmt.Sprintf("Saved chunk %d/%d to database", idx+1, total))
	}
	return nil
}

// loadOrCreate 读取 Submit 创建的记录，直接调用 Ingest 时补建
func (i *Ingestor) loadOrCreate(ctx context.Context, req IngestRequest) (*domainRAG.DocumentFile, error) {
	doc, err := i.docs.GetDocument(ctx, req.FileID)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, domainRAG.ErrNotFound) {
		return nil, fmt.Errorf("failed to load document record: %w", err)
	}

	doc = domainRAG.NewDocumentFile(req.FileID, req.FileName, req.FileSize, req.MimeType, req.OwnerID)
	if err := i.docs.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}
	return doc, nil
}

// fail 记录失败状态
func (i *Ingestor) fail(ctx context.Context, doc *domainRAG.DocumentFile, cause error, progress ProgressFunc) {
	doc.MarkFailed(cause.Error())
	if err := i.docs.SaveStatus(context.WithoutCancel(ctx), doc); err != nil {
		i.logger.Error("Failed to record document failure",
			"file_id", doc.ID,
			"error", err,
		)
	}

	i.logger.Warn("Document ingestion failed",
		"file_id", doc.ID,
		"file_name", doc.Name,
		"error", cause,
	)

	message := "Error: " + cause.Error()
	if progress != nil {
		progress(0, message)
	}
	i.publish(events.DocumentFinished, doc, 0, message)
}

// publish 发布进度事件
func (i *Ingestor) publish(eventType events.EventType, doc *domainRAG.DocumentFile, percent int, message string) {
	if i.bus == nil {
		return
	}
	i.bus.Publish(&events.DocumentProgressEvent{
		EventType: eventType,
		FileID:    doc.ID,
		FileName:  doc.Name,
		Percent:   percent,
		Message:   message,
		Status:    string(doc.Status),
		EventTime: time.Now(),
	})
}

// removeTempFile 删除临时输入文件
func (i *Ingestor) removeTempFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		i.logger.Warn("Failed to remove temp file", "path", path, "error", err)
	}
}

// GetStatus 查询文档处理状态
func (i *Ingestor) GetStatus(ctx context.Context, fileID string) (*domainRAG.DocumentStatusView, error) {
	doc, err := i.docs.GetDocument(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return doc.StatusView(), nil
}

// ListDocuments 列出用户的文档
func (i *Ingestor) ListDocuments(ctx context.Context, ownerID string) ([]*domainRAG.DocumentFile, error) {
	return i.docs.ListDocumentsByOwner(ctx, ownerID)
}

// Delete 删除文档：先删向量，再删记录
func (i *Ingestor) Delete(ctx context.Context, fileID string) error {
	if _, err := i.docs.GetDocument(ctx, fileID); err != nil {
		return err
	}
	if err := i.store.DeleteByFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	if err := i.docs.DeleteDocument(ctx, fileID); err != nil {
		return err
	}

	i.logger.Info("Document deleted", "file_id", fileID)
	return nil
}

// Wait 等待后台入库任务结束，ctx 结束时提前返回
func (i *Ingestor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
