package log

import (
	"context"
	"log/slog"
)

// contextKey 避免与其他包的 context key 冲突
type contextKey string

// 上下文键定义
const (
	// RequestContextID HTTP 请求 ID
	RequestContextID contextKey = "request_id"

	// ConversationContextID 会话 ID
	ConversationContextID contextKey = "conversation_id"

	// FileContextID 文档 ID
	FileContextID contextKey = "file_id"

	// OwnerContextID 资源所有者 ID
	OwnerContextID contextKey = "owner_id"
)

// WithRequestID 在上下文中添加请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestContextID, requestID)
}

// WithConversationID 在上下文中添加会话 ID
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, ConversationContextID, conversationID)
}

// WithFileID 在上下文中添加文档 ID
func WithFileID(ctx context.Context, fileID string) context.Context {
	return context.WithValue(ctx, FileContextID, fileID)
}

// WithOwnerID 在上下文中添加所有者 ID
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, OwnerContextID, ownerID)
}

// LogCtxFromContext 从上下文中提取日志字段
func LogCtxFromContext(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	for _, key := range []contextKey{RequestContextID, ConversationContextID, FileContextID, OwnerContextID} {
		if value, ok := ctx.Value(key).(string); ok && value != "" {
			attrs = append(attrs, slog.String(string(key), value))
		}
	}

	return attrs
}
