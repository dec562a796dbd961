package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ragchat/backend/internal/interfaces/http/response"
)

// SearchHandler 检索处理器
type SearchHandler struct {
	search SearchService
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(search SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// SearchRequest 检索请求
type SearchRequest struct {
	Query   string   `json:"query" binding:"required"`
	FileIDs []string `json:"fileIds,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// PassageView 命中的片段
type PassageView struct {
	ChunkID    string  `json:"chunkId"`
	FileID     string  `json:"fileId"`
	FileName   string  `json:"fileName,omitempty"`
	ChunkIndex int     `json:"chunkIndex"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

// SearchResponse 检索结果
type SearchResponse struct {
	Results []PassageView `json:"results"`
	Count   int           `json:"count"`
}

// ContextResponse 拼接后的上下文
type ContextResponse struct {
	Context string `json:"context"`
}

// Search 检索文档片段
// @Summary 检索文档片段
// @Tags 检索
// @Accept json
// @Produce json
// @Param request body SearchRequest true "检索请求"
// @Success 200 {object} response.Response{data=SearchResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /search [post]
func (h *SearchHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request: "+err.Error())
		return
	}

	passages, err := h.search.Search(c.Request.Context(), req.Query, req.FileIDs, req.Limit)
	if err != nil {
		response.FromError(c, "search failed", err)
		return
	}

	results := make([]PassageView, 0, len(passages))
	for _, p := range passages {
		results = append(results, PassageView{
			ChunkID:    p.ChunkID,
			FileID:     p.FileID,
			FileName:   p.Metadata.FileName,
			ChunkIndex: p.Metadata.ChunkIndex,
			Content:    p.Content,
			Score:      p.Score,
		})
	}
	response.Success(c, SearchResponse{Results: results, Count: len(results)})
}

// Context 检索并返回拼接后的上下文字符串
// @Summary 检索上下文
// @Description 无结果或检索失败时返回空字符串
// @Tags 检索
// @Accept json
// @Produce json
// @Param request body SearchRequest true "检索请求"
// @Success 200 {object} response.Response{data=ContextResponse}
// @Failure 400 {object} response.ErrorResponse
// @Router /search/context [post]
func (h *SearchHandler) Context(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "query is required")
		return
	}

	response.Success(c, ContextResponse{
		Context: h.search.BuildContext(c.Request.Context(), req.Query, req.FileIDs),
	})
}
