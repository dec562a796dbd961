package embedding

import (
	"github.com/google/wire"
	"github.com/ragchat/backend/internal/infrastructure/config"
)

// ProvideThrottle 按配置的最小间隔创建节流器
func ProvideThrottle(cfg *config.EmbeddingConfig) *Throttle {
	return NewThrottle(cfg.MinInterval)
}

// ProviderSet Embedding 基础设施 ProviderSet
var ProviderSet = wire.NewSet(
	NewEmbedder,
	ProvideThrottle,
)
