package handler

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appRAG "github.com/ragchat/backend/internal/application/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/extractor"
	"github.com/ragchat/backend/internal/infrastructure/log"
	"github.com/ragchat/backend/internal/interfaces/http/response"
)

// ProgressStreamer 把连接升级为进度 WebSocket
type ProgressStreamer interface {
	ServeFile(w http.ResponseWriter, r *http.Request, fileID string)
}

// DocumentHandler 文档处理器
type DocumentHandler struct {
	documents DocumentService
	progress  ProgressStreamer
	uploadDir string
	logger    *slog.Logger
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(documents DocumentService, progress ProgressStreamer, cfg *config.IngestConfig) *DocumentHandler {
	uploadDir := cfg.UploadDir
	if uploadDir == "" {
		uploadDir = filepath.Join(os.TempDir(), "ragchat-uploads")
	}
	return &DocumentHandler{
		documents: documents,
		progress:  progress,
		uploadDir: uploadDir,
		logger:    log.NewModuleLogger("http", "document_handler"),
	}
}

// DocumentView 文档信息
type DocumentView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	OwnerID      string    `json:"ownerId"`
	Status       string    `json:"status"`
	ChunkCount   int       `json:"chunkCount"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	UploadedAt   time.Time `json:"uploadedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Upload 上传文档并在后台入库
// @Summary 上传文档
// @Description 保存上传文件并立即返回 pending 状态，入库在后台进行
// @Tags 文档
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "文档文件"
// @Param ownerId formData string false "所有者 ID"
// @Success 202 {object} response.Response{data=appRAG.SubmitResult}
// @Failure 400 {object} response.ErrorResponse
// @Failure 415 {object} response.ErrorResponse
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file is required")
		return
	}

	mimeType := extractor.DetectMIME(file.Filename)
	if mimeType == "" {
		mimeType, _, _ = mime.ParseMediaType(file.Header.Get("Content-Type"))
	}

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to prepare upload directory")
		return
	}

	fileID := uuid.New().String()
	tempPath := filepath.Join(h.uploadDir, fmt.Sprintf("%s%s", fileID, filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, tempPath); err != nil {
		h.logger.Error("Failed to save uploaded file", "file_name", file.Filename, "error", err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "failed to save uploaded file")
		return
	}

	ownerID := c.PostForm("ownerId")
	ctx := log.WithOwnerID(log.WithFileID(c.Request.Context(), fileID), ownerID)

	result, err := h.documents.Submit(ctx, appRAG.IngestRequest{
		FileID:   fileID,
		FilePath: tempPath,
		FileName: file.Filename,
		FileSize: file.Size,
		MimeType: mimeType,
		OwnerID:  ownerID,
	})
	if err != nil {
		response.FromError(c, "failed to submit document", err)
		return
	}

	response.Accepted(c, result)
}

// List 列出文档
// @Summary 列出文档
// @Tags 文档
// @Produce json
// @Param ownerId query string false "所有者 ID"
// @Success 200 {object} response.Response{data=[]DocumentView}
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.ListDocuments(c.Request.Context(), c.Query("ownerId"))
	if err != nil {
		response.FromError(c, "failed to list documents", err)
		return
	}

	views := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		views = append(views, DocumentView{
			ID:           d.ID,
			Name:         d.Name,
			Size:         d.Size,
			MimeType:     d.MimeType,
			OwnerID:      d.OwnerID,
			Status:       string(d.Status),
			ChunkCount:   d.ChunkCount,
			ErrorMessage: d.ErrorMessage,
			UploadedAt:   d.UploadedAt,
			UpdatedAt:    d.UpdatedAt,
		})
	}
	response.Success(c, views)
}

// Status 查询入库状态
// @Summary 查询文档入库状态
// @Tags 文档
// @Produce json
// @Param id path string true "文档 ID"
// @Success 200 {object} response.Response{data=domainRAG.DocumentStatusView}
// @Failure 404 {object} response.ErrorResponse
// @Router /documents/{id}/status [get]
func (h *DocumentHandler) Status(c *gin.Context) {
	status, err := h.documents.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "document not found", err)
		return
	}
	response.Success(c, status)
}

// Delete 删除文档及其向量
// @Summary 删除文档
// @Tags 文档
// @Produce json
// @Param id path string true "文档 ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	fileID := c.Param("id")
	if err := h.documents.Delete(log.WithFileID(c.Request.Context(), fileID), fileID); err != nil {
		response.FromError(c, "failed to delete document", err)
		return
	}
	response.Success(c, gin.H{"fileId": fileID, "deleted": true})
}

// Progress 订阅入库进度
// @Summary 订阅文档入库进度（WebSocket）
// @Tags 文档
// @Param id path string true "文档 ID"
// @Success 101
// @Failure 404 {object} response.ErrorResponse
// @Router /documents/{id}/progress [get]
func (h *DocumentHandler) Progress(c *gin.Context) {
	fileID := c.Param("id")
	if _, err := h.documents.GetStatus(c.Request.Context(), fileID); err != nil {
		response.FromError(c, "document not found", err)
		return
	}
	h.progress.ServeFile(c.Writer, c.Request, fileID)
}
