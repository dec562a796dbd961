package rag

import (
	"fmt"
	"time"
)

// DocumentStatus 文档处理状态
type DocumentStatus string

// 文档处理状态常量
const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// IsTerminal 是否为终态
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// DocumentFile 上传的源文件
// 状态只由 Ingestor 推进：pending -> processing -> completed/failed
type DocumentFile struct {
	ID           string
	Name         string
	Size         int64
	MimeType     string
	OwnerID      string
	UploadedAt   time.Time
	Status       DocumentStatus
	ChunkCount   int
	ErrorMessage string
	UpdatedAt    time.Time
}

// NewDocumentFile 创建 pending 状态的文档记录
func NewDocumentFile(id, name string, size int64, mimeType, ownerID string) *DocumentFile {
	now := time.Now()
	return &DocumentFile{
		ID:         id,
		Name:       name,
		Size:       size,
		MimeType:   mimeType,
		OwnerID:    ownerID,
		UploadedAt: now,
		Status:     DocumentStatusPending,
		UpdatedAt:  now,
	}
}

// MarkProcessing 标记为处理中
func (d *DocumentFile) MarkProcessing() {
	d.Status = DocumentStatusProcessing
	d.ErrorMessage = ""
	d.UpdatedAt = time.Now()
}

// MarkCompleted 标记为完成
func (d *DocumentFile) MarkCompleted(chunkCount int) {
	d.Status = DocumentStatusCompleted
	d.ChunkCount = chunkCount
	d.ErrorMessage = ""
	d.UpdatedAt = time.Now()
}

// MarkFailed 标记为失败
func (d *DocumentFile) MarkFailed(message string) {
	d.Status = DocumentStatusFailed
	d.ErrorMessage = message
	d.UpdatedAt = time.Now()
}

// DocumentChunk 分块结果（不单独持久化）
type DocumentChunk struct {
	Index   int
	Count   int
	FileID  string
	Content string
}

// ChunkID 生成 chunk ID：<fileId>_chunk_<index>
func ChunkID(fileID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", fileID, index)
}

// EmbeddingMetadata 冗余存储在向量库中的文件元数据
type EmbeddingMetadata struct {
	FileID     string    `json:"file_id"`
	FileName   string    `json:"file_name"`
	FileSize   int64     `json:"file_size"`
	FileType   string    `json:"file_type"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkCount int       `json:"chunk_count"`
	UploadDate time.Time `json:"upload_date"`
}

// DocumentEmbedding 检索的持久化单元：一个 chunk 一条
type DocumentEmbedding struct {
	ChunkID  string
	FileID   string
	Content  string
	Vector   []float32
	Metadata EmbeddingMetadata
}

// ScoredPassage 相似度检索命中
type ScoredPassage struct {
	ChunkID  string
	FileID   string
	Content  string
	Score    float32
	Metadata EmbeddingMetadata
}

// ProcessedDocument 入库完成后的返回结果
type ProcessedDocument struct {
	File   *DocumentFile
	Chunks []*DocumentEmbedding
}

// DocumentStatusView 状态查询结果
type DocumentStatusView struct {
	FileID       string         `json:"fileId"`
	Status       DocumentStatus `json:"status"`
	ChunkCount   int            `json:"chunkCount"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// StatusView 转换为状态查询结果
func (d *DocumentFile) StatusView() *DocumentStatusView {
	return &DocumentStatusView{
		FileID:       d.ID,
		Status:       d.Status,
		ChunkCount:   d.ChunkCount,
		ErrorMessage: d.ErrorMessage,
	}
}
