package vector

import (
	"strings"
	"time"

	"github.com/google/uuid"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
)

// payload 字段名
const (
	fieldChunkID    = "chunk_id"
	fieldFileID     = "file_id"
	fieldContent    = "content"
	fieldFileName   = "file_name"
	fieldFileSize   = "file_size"
	fieldFileType   = "file_type"
	fieldChunkIndex = "chunk_index"
	fieldChunkCount = "chunk_count"
	fieldUploadDate = "upload_date"
)

// PointID chunk ID 到向量库点 ID 的稳定映射
// 同一个 chunk 重复写入会覆盖而不是新增
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// embeddingPayload 构建写入向量库的 payload
func embeddingPayload(emb *domainRAG.DocumentEmbedding) map[string]any {
	meta := emb.Metadata
	return map[string]any{
		fieldChunkID:    emb.ChunkID,
		fieldFileID:     emb.FileID,
		fieldContent:    sanitizeUTF8(emb.Content),
		fieldFileName:   sanitizeUTF8(meta.FileName),
		fieldFileSize:   meta.FileSize,
		fieldFileType:   meta.FileType,
		fieldChunkIndex: int64(meta.ChunkIndex),
		fieldChunkCount: int64(meta.ChunkCount),
		fieldUploadDate: meta.UploadDate.UTC().Format(time.RFC3339),
	}
}

// sanitizeUTF8 清理无效 UTF-8 字符
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}

// parseUploadDate 解析 payload 中的上传时间
func parseUploadDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
