package watcher

import (
	"github.com/google/wire"
	"github.com/ragchat/backend/internal/domain/events"
	"github.com/ragchat/backend/internal/infrastructure/config"
)

// ProvideEventBus 提供事件总线实例
func ProvideEventBus() (events.EventBus, func()) {
	bus := NewEventBus()
	return bus, bus.Close
}

// ProvideInboxWatcher 提供收件箱监听器实例
func ProvideInboxWatcher(eventBus events.EventBus, cfg *config.InboxConfig) (*InboxWatcher, error) {
	return NewInboxWatcher(WatchConfig{
		Dir:           cfg.Dir,
		DebounceDelay: cfg.DebounceDelay,
	}, eventBus)
}

// ProviderSet 监听 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideEventBus,
	ProvideInboxWatcher,
)
