package events

// Handler 事件订阅者
// 入库进度推送给 WebSocket 客户端，收件箱新文件交给入库流程
type Handler interface {
	// HandleEvent 返回的错误只记日志，事件不会重投
	HandleEvent(event Event) error
}

// HandlerFunc 让普通函数充当 Handler
type HandlerFunc func(event Event) error

func (f HandlerFunc) HandleEvent(event Event) error {
	return f(event)
}

// EventBus 进程内事件总线
// 每个订阅者有独立队列，慢订阅者不会阻塞入库流水线
type EventBus interface {
	// Subscribe 返回的函数用于取消订阅，可重复调用
	Subscribe(eventType EventType, handler Handler) (unsubscribe func())

	// SubscribeMultiple WebSocket 推送同时关心进度和终态两类事件
	SubscribeMultiple(eventTypes []EventType, handler Handler) (unsubscribe func())

	// Publish 非阻塞，订阅者队列满时丢弃该事件
	Publish(event Event)

	// Close 停止接收事件并排空已入队的事件
	Close()
}
