package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"sort"
	"strings"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// 支持的 MIME 类型
const (
	MimePDF      = "application/pdf"
	MimeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText     = "text/plain"
	MimeMarkdown = "text/markdown"
	MimeHTML     = "text/html"
)

// Parser 单一格式的解析器
type Parser interface {
	Parse(ctx context.Context, filePath string) (string, error)
}

// ParserFunc 函数形式的 Parser
type ParserFunc func(ctx context.Context, filePath string) (string, error)

// Parse 实现 Parser
func (f ParserFunc) Parse(ctx context.Context, filePath string) (string, error) {
	return f(ctx, filePath)
}

var _ domainRAG.TextExtractor = (*Registry)(nil)

// Registry 按 MIME 类型分发的文本提取器
type Registry struct {
	parsers map[string]Parser
	logger  *slog.Logger
}

// NewRegistry 创建包含默认解析器的提取器
func NewRegistry() *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
		logger:  log.NewModuleLogger("extractor", "registry"),
	}

	r.Register(MimePDF, ParserFunc(parsePDF))
	r.Register(MimeDOCX, ParserFunc(parseDOCX))
	r.Register(MimeText, ParserFunc(parsePlainText))
	r.Register(MimeMarkdown, ParserFunc(parseMarkdown))
	r.Register("text/x-markdown", ParserFunc(parseMarkdown))
	r.Register(MimeHTML, ParserFunc(parseHTML))

	return r
}

// ProvideTextExtractor 以接口形式提供提取器
func ProvideTextExtractor() domainRAG.TextExtractor {
	return NewRegistry()
}

// Register 注册或覆盖某个 MIME 类型的解析器
func (r *Registry) Register(mimeType string, parser Parser) {
	r.parsers[normalizeMIME(mimeType)] = parser
}

// Supports 是否支持该 MIME 类型
func (r *Registry) Supports(mimeType string) bool {
	_, ok := r.parsers[normalizeMIME(mimeType)]
	return ok
}

// SupportedMIMETypes 已注册的 MIME 类型
func (r *Registry) SupportedMIMETypes() []string {
	types := make([]string, 0, len(r.parsers))
	for t := range r.parsers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Extract 提取纯文本
// 未知类型返回 ErrUnsupportedFormat，提取结果为空返回 ErrEmptyContent
func (r *Registry) Extract(ctx context.Context, filePath, mimeType string) (string, error) {
	parser, ok := r.parsers[normalizeMIME(mimeType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", domainRAG.ErrUnsupportedFormat, mimeType)
	}

	text, err := parser.Parse(ctx, filePath)
	if err != nil {
		r.logger.Warn("Text extraction failed",
			"file", filepath.Base(filePath),
			"mime_type", mimeType,
			"error", err,
		)
		return "", fmt.Errorf("failed to extract %s: %w", mimeType, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", domainRAG.ErrEmptyContent
	}

	r.logger.Debug("Text extracted",
		"file", filepath.Base(filePath),
		"mime_type", mimeType,
		"text_length", len(text),
	)
	return text, nil
}

// normalizeMIME 去掉参数并转小写，如 "text/plain; charset=utf-8"
func normalizeMIME(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}

// extensionTypes 扩展名到 MIME 类型，用于没有 Content-Type 的来源
var extensionTypes = map[string]string{
	".pdf":      MimePDF,
	".docx":     MimeDOCX,
	".txt":      MimeText,
	".md":       MimeMarkdown,
	".markdown": MimeMarkdown,
	".html":     MimeHTML,
	".htm":      MimeHTML,
}

// DetectMIME 根据文件扩展名推断 MIME 类型，未知返回空字符串
func DetectMIME(fileName string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(fileName))]
}
