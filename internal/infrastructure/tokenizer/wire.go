package tokenizer

import (
	"github.com/google/wire"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
)

// ProviderSet 分词器 ProviderSet
var ProviderSet = wire.NewSet(
	NewProvider,
	wire.Bind(new(domainRAG.TokenizerProvider), new(*Provider)),
)
