package tools

import (
	"github.com/google/wire"
)

// ProviderSet 工具集合
var ProviderSet = wire.NewSet(
	NewToolset,
)
