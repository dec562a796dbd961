package response

import (
	"errors"
	"net/http"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"

	"github.com/gin-gonic/gin"
)

// 业务错误码
const (
	CodeOK                  = 0
	CodeBadRequest          = 400
	CodeNotFound            = 404
	CodeUnsupportedFormat   = 415
	CodeUnprocessable       = 422
	CodeInternal            = 500
	CodeUpstreamUnavailable = 502
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeOK,
		Message: "success",
		Data:    data,
	})
}

// Accepted 已受理，后台继续处理
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{
		Code:    CodeOK,
		Message: "accepted",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, message string) {
	c.JSON(httpCode, ErrorResponse{
		Code:    errCode,
		Message: message,
	})
}

// ErrorWithDetail 带详情的错误响应
func ErrorWithDetail(c *gin.Context, httpCode int, errCode int, message, detail string) {
	c.JSON(httpCode, ErrorResponse{
		Code:    errCode,
		Message: message,
		Detail:  detail,
	})
}

// FromError 按错误分类返回对应状态码
func FromError(c *gin.Context, message string, err error) {
	httpCode, errCode := Classify(err)
	ErrorWithDetail(c, httpCode, errCode, message, err.Error())
}

// Classify 将领域错误映射为 HTTP 状态码与业务错误码
func Classify(err error) (httpCode int, errCode int) {
	switch {
	case errors.Is(err, domainRAG.ErrValidation):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, domainRAG.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domainRAG.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, CodeUnsupportedFormat
	case errors.Is(err, domainRAG.ErrEmptyContent):
		return http.StatusUnprocessableEntity, CodeUnprocessable
	case errors.Is(err, domainRAG.ErrEmbeddingProvider), errors.Is(err, domainRAG.ErrSearch):
		return http.StatusBadGateway, CodeUpstreamUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
