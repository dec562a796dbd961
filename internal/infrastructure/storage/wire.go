package storage

import "github.com/google/wire"

// ProviderSet Storage 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideDB,                     // 提供数据库连接
	NewDocumentRepository,         // 文档记录仓储
	NewConversationRepository,     // 会话与消息仓储
	ProvideConversationRepository, // 会话仓储接口
	ProvideMessageRepository,      // 消息仓储接口
)
