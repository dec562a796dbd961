package websocket

import (
	"github.com/google/wire"
	"github.com/ragchat/backend/internal/domain/events"
)

// ProvideHub 创建并启动 Hub，订阅入库进度事件
func ProvideHub(bus events.EventBus) (*Hub, func()) {
	hub := NewHub()
	hub.Start()
	unsubscribe := bus.SubscribeMultiple(
		[]events.EventType{events.DocumentProgress, events.DocumentFinished},
		hub,
	)
	return hub, func() {
		unsubscribe()
		hub.Stop()
	}
}

// ProviderSet WebSocket ProviderSet
var ProviderSet = wire.NewSet(
	ProvideHub,
	NewProgressServer,
)
