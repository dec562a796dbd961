package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
)

// 确保 DocumentRepositoryImpl 实现了 domainRAG.DocumentRepository 接口
var _ domainRAG.DocumentRepository = (*DocumentRepositoryImpl)(nil)

// DocumentRepositoryImpl 文档记录仓库实现
type DocumentRepositoryImpl struct {
	db *sql.DB
}

// NewDocumentRepository 创建文档记录仓库实例
func NewDocumentRepository(db *sql.DB) domainRAG.DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

const documentColumns = `id, name, size, mime_type, owner_id, uploaded_at,
	status, chunk_count, error_message, updated_at`

// CreateDocument 创建文档记录
func (r *DocumentRepositoryImpl) CreateDocument(ctx context.Context, doc *domainRAG.DocumentFile) error {
	query := `INSERT INTO document_files (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.Name,
		doc.Size,
		doc.MimeType,
		doc.OwnerID,
		doc.UploadedAt.UnixMilli(),
		string(doc.Status),
		doc.ChunkCount,
		nullString(doc.ErrorMessage),
		doc.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument 获取文档记录，不存在时返回 ErrNotFound
func (r *DocumentRepositoryImpl) GetDocument(ctx context.Context, id string) (*domainRAG.DocumentFile, error) {
	query := `SELECT ` + documentColumns + ` FROM document_files WHERE id = ?`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, domainRAG.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document %s: %w", id, err)
	}
	return doc, nil
}

// SaveStatus 更新处理状态
func (r *DocumentRepositoryImpl) SaveStatus(ctx context.Context, doc *domainRAG.DocumentFile) error {
	query := `UPDATE document_files
		SET status = ?, chunk_count = ?, error_message = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(doc.Status),
		doc.ChunkCount,
		nullString(doc.ErrorMessage),
		doc.UpdatedAt.UnixMilli(),
		doc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", doc.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, domainRAG.ErrNotFound)
	}
	return nil
}

// ListDocumentsByOwner 按上传时间倒序列出文档
func (r *DocumentRepositoryImpl) ListDocumentsByOwner(ctx context.Context, ownerID string) ([]*domainRAG.DocumentFile, error) {
	query := `SELECT ` + documentColumns + ` FROM document_files
		WHERE owner_id = ?
		ORDER BY uploaded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var results []*domainRAG.DocumentFile
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, doc)
	}

	return results, rows.Err()
}

// DeleteDocument 删除文档记录
func (r *DocumentRepositoryImpl) DeleteDocument(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM document_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, domainRAG.ErrNotFound)
	}
	return nil
}

// rowScanner 兼容 *sql.Row 和 *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domainRAG.DocumentFile, error) {
	var (
		doc          domainRAG.DocumentFile
		status       string
		errorMessage sql.NullString
		uploadedAt   int64
		updatedAt    int64
	)

	err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.Size,
		&doc.MimeType,
		&doc.OwnerID,
		&uploadedAt,
		&status,
		&doc.ChunkCount,
		&errorMessage,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Status = domainRAG.DocumentStatus(status)
	doc.ErrorMessage = errorMessage.String
	doc.UploadedAt = time.UnixMilli(uploadedAt)
	doc.UpdatedAt = time.UnixMilli(updatedAt)
	return &doc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
