//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"
	"github.com/ragchat/backend/internal/application"
	"github.com/ragchat/backend/internal/infrastructure"
	"github.com/ragchat/backend/internal/interfaces"
)

// InitializeAll 初始化所有服务（HTTP + MCP），返回的 cleanup 按依赖逆序释放资源
func InitializeAll() (*App, func(), error) {
	wire.Build(
		infrastructure.ProviderSet, // 基础设施层
		application.ProviderSet,    // 应用层
		interfaces.ProviderSet,     // 接口层
		NewApp,
	)
	return nil, nil, nil
}
