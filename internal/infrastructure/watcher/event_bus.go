// Package watcher 提供收件箱目录监听和事件分发功能
package watcher

import (
	"log/slog"
	"sync"

	"github.com/ragchat/backend/internal/domain/events"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// subscriberQueueSize 每个订阅者的待处理事件上限
const subscriberQueueSize = 256

// subscription 单个订阅：独立队列 + 独立 goroutine，保证同一订阅者按发布顺序收到事件
type subscription struct {
	id        uint64
	eventType events.EventType
	handler   events.Handler
	queue     chan events.Event
}

// eventBusImpl EventBus 的实现
type eventBusImpl struct {
	// subscriptions 按事件类型存储的订阅
	subscriptions map[events.EventType][]*subscription
	nextID        uint64
	mu            sync.RWMutex
	logger        *slog.Logger
	closed        bool
	// wg 等待所有订阅者 goroutine 退出
	wg sync.WaitGroup
}

// NewEventBus 创建新的事件总线实例
func NewEventBus() events.EventBus {
	return &eventBusImpl{
		subscriptions: make(map[events.EventType][]*subscription),
		logger:        log.NewModuleLogger("watcher", "event_bus"),
	}
}

// Subscribe 订阅特定类型的事件
func (b *eventBusImpl) Subscribe(eventType events.EventType, handler events.Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	sub := &subscription{
		id:        b.nextID,
		eventType: eventType,
		handler:   handler,
		queue:     make(chan events.Event, subscriberQueueSize),
	}
	b.subscriptions[eventType] = append(b.subscriptions[eventType], sub)

	b.wg.Add(1)
	go b.consume(sub)

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(sub) })
	}
}

// SubscribeMultiple 订阅多个类型的事件
func (b *eventBusImpl) SubscribeMultiple(eventTypes []events.EventType, handler events.Handler) func() {
	unsubscribers := make([]func(), 0, len(eventTypes))

	for _, eventType := range eventTypes {
		unsubscribers = append(unsubscribers, b.Subscribe(eventType, handler))
	}

	return func() {
		for _, unsub := range unsubscribers {
			unsub()
		}
	}
}

// unsubscribe 按订阅 ID 移除并关闭队列
func (b *eventBusImpl) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[sub.eventType]
	for i, s := range subs {
		if s.id == sub.id {
			b.subscriptions[sub.eventType] = append(subs[:i:i], subs[i+1:]...)
			close(s.queue)
			return
		}
	}
}

// Publish 异步发布事件
// 队列已满的订阅者会丢弃该事件
func (b *eventBusImpl) Publish(event events.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	subs := b.subscriptions[event.Type()]
	if len(subs) == 0 {
		return
	}

	for _, sub := range subs {
		select {
		case sub.queue <- event:
		default:
			b.logger.Warn("Subscriber queue full, dropping event",
				"type", event.Type(),
				"subscription_id", sub.id,
			)
		}
	}
}

// consume 顺序处理单个订阅者的事件
func (b *eventBusImpl) consume(sub *subscription) {
	defer b.wg.Done()

	for event := range sub.queue {
		b.dispatchToHandler(event, sub.handler)
	}
}

// dispatchToHandler 分发事件到单个处理器
func (b *eventBusImpl) dispatchToHandler(event events.Event, handler events.Handler) {
	// 捕获 panic，防止单个处理器崩溃影响后续事件
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Handler panicked",
				"type", event.Type(),
				"panic", r,
			)
		}
	}()

	if err := handler.HandleEvent(event); err != nil {
		b.logger.Error("Handler returned error",
			"type", event.Type(),
			"error", err,
		)
	}
}

// Close 关闭事件总线
// 停止接收新事件，等待已入队事件处理完成
func (b *eventBusImpl) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for eventType, subs := range b.subscriptions {
		for _, sub := range subs {
			close(sub.queue)
		}
		delete(b.subscriptions, eventType)
	}
	b.mu.Unlock()

	b.wg.Wait()

	b.logger.Info("Event bus closed")
}
