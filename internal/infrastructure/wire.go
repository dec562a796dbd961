package infrastructure

import (
	"github.com/google/wire"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/embedding"
	"github.com/ragchat/backend/internal/infrastructure/extractor"
	"github.com/ragchat/backend/internal/infrastructure/llm"
	"github.com/ragchat/backend/internal/infrastructure/lock"
	"github.com/ragchat/backend/internal/infrastructure/storage"
	"github.com/ragchat/backend/internal/infrastructure/tokenizer"
	"github.com/ragchat/backend/internal/infrastructure/tools"
	"github.com/ragchat/backend/internal/infrastructure/vector"
	"github.com/ragchat/backend/internal/infrastructure/watcher"
	"github.com/ragchat/backend/internal/infrastructure/websocket"
)

// ProviderSet Infrastructure 层总 ProviderSet
var ProviderSet = wire.NewSet(
	config.ProviderSet,
	storage.ProviderSet,
	embedding.ProviderSet,
	vector.ProviderSet,
	llm.ProviderSet,
	lock.ProviderSet,
	tokenizer.ProviderSet,
	extractor.ProviderSet,
	tools.ProviderSet,
	watcher.ProviderSet,
	websocket.ProviderSet,
)
