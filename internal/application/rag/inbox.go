package rag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/ragchat/backend/internal/domain/events"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/extractor"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

var _ events.Handler = (*InboxHandler)(nil)

// InboxHandler 把收件箱中的文件移入上传目录后提交入库
type InboxHandler struct {
	ingestor  *Ingestor
	ownerID   string
	uploadDir string
	logger    *slog.Logger
}

// NewInboxHandler 创建收件箱处理器
func NewInboxHandler(ingestor *Ingestor, inboxCfg *config.InboxConfig, ingestCfg *config.IngestConfig) *InboxHandler {
	return &InboxHandler{
		ingestor:  ingestor,
		ownerID:   inboxCfg.OwnerID,
		uploadDir: ingestCfg.UploadDir,
		logger:    log.NewModuleLogger("rag", "inbox"),
	}
}

// HandleEvent 处理 InboxFileCreated 事件
func (h *InboxHandler) HandleEvent(event events.Event) error {
	inboxEvent, ok := event.(*events.InboxFileEvent)
	if !ok {
		return nil
	}

	mimeType := extractor.DetectMIME(inboxEvent.FileName)
	if mimeType == "" {
		h.logger.Debug("Skipping inbox file with unknown type", "file_name", inboxEvent.FileName)
		return nil
	}

	// 移入上传目录，原文件消失后不会被再次触发
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}
	fileID := uuid.New().String()
	target := filepath.Join(h.uploadDir, fileID+filepath.Ext(inboxEvent.FileName))
	if err := moveFile(inboxEvent.FilePath, target); err != nil {
		return fmt.Errorf("failed to move inbox file: %w", err)
	}

	result, err := h.ingestor.Submit(context.Background(), IngestRequest{
		FileID:   fileID,
		FilePath: target,
		FileName: inboxEvent.FileName,
		FileSize: inboxEvent.FileSize,
		MimeType: mimeType,
		OwnerID:  h.ownerID,
	})
	if err != nil {
		return fmt.Errorf("failed to submit inbox file %s: %w", inboxEvent.FileName, err)
	}

	h.logger.Info("Inbox file submitted",
		"file_name", inboxEvent.FileName,
		"file_id", result.FileID,
	)
	return nil
}

// moveFile 重命名失败（跨文件系统）时退回复制后删除
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
