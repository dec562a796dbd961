package rag

import "errors"

// 错误分类，调用方通过 errors.Is 判断
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrEmptyContent      = errors.New("no text content could be extracted")
	ErrEmbeddingProvider = errors.New("embedding provider error")
	ErrSearch            = errors.New("vector search error")
	ErrSummarization     = errors.New("summarization error")
	// ErrStreamCancelled 客户端主动断开，不是真正的错误
	ErrStreamCancelled = errors.New("stream cancelled")
)
