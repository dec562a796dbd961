package extractor

import "github.com/google/wire"

// ProviderSet 文本提取 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideTextExtractor,
)
