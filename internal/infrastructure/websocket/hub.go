package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ragchat/backend/internal/domain/events"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

var _ events.Handler = (*Hub)(nil)

// Hub 入库进度连接管理中心，按文件 ID 分组
type Hub struct {
	// 按文件 ID 分组的连接
	files map[string]map[*Connection]bool
	// 每个文件最近一次进度，新连接注册时先补发
	latest map[string]Frame
	// 注册连接
	register chan *Connection
	// 注销连接
	unregister chan *Connection
	// 广播消息
	broadcast chan *Message
	stop      chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	logger    *slog.Logger
}

// Frame 发送给单个连接的数据帧
type Frame struct {
	Data []byte
	// Final 终态消息，写出后关闭连接
	Final bool
}

// Connection 进度订阅连接
type Connection struct {
	FileID string
	Send   chan Frame
}

// NewConnection 创建连接
func NewConnection(fileID string) *Connection {
	return &Connection{
		FileID: fileID,
		Send:   make(chan Frame, 64),
	}
}

// Message 消息
type Message struct {
	FileID string
	Frame  Frame
}

// ProgressMessage 推送给客户端的进度
type ProgressMessage struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName,omitempty"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Status   string `json:"status"`
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		files:      make(map[string]map[*Connection]bool),
		latest:     make(map[string]Frame),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		broadcast:  make(chan *Message, 256),
		stop:       make(chan struct{}),
		logger:     log.NewModuleLogger("websocket", "hub"),
	}
}

// Run 运行 Hub（需要在 goroutine 中运行）
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.closeAll()
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.files[conn.FileID] == nil {
				h.files[conn.FileID] = make(map[*Connection]bool)
			}
			h.files[conn.FileID][conn] = true
			if frame, ok := h.latest[conn.FileID]; ok {
				h.deliver(conn.FileID, conn, frame)
			}
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			h.remove(conn)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			if msg.Frame.Final {
				delete(h.latest, msg.FileID)
			} else {
				h.latest[msg.FileID] = msg.Frame
			}
			for conn := range h.files[msg.FileID] {
				h.deliver(msg.FileID, conn, msg.Frame)
			}
			h.mu.Unlock()
		}
	}
}

// deliver 向连接写入一帧，缓冲区满时断开该连接
// 调用方持有写锁
func (h *Hub) deliver(fileID string, conn *Connection, frame Frame) {
	select {
	case conn.Send <- frame:
		if frame.Final {
			h.remove(conn)
		}
	default:
		h.logger.Warn("Send buffer full, dropping connection", "file_id", fileID)
		h.remove(conn)
	}
}

// remove 移除连接并关闭发送通道，调用方持有写锁
func (h *Hub) remove(conn *Connection) {
	group, ok := h.files[conn.FileID]
	if !ok {
		return
	}
	if _, ok := group[conn]; !ok {
		return
	}
	delete(group, conn)
	close(conn.Send)
	if len(group) == 0 {
		delete(h.files, conn.FileID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, group := range h.files {
		for conn := range group {
			h.remove(conn)
		}
	}
}

// Start 启动 Hub（启动后台 goroutine）
func (h *Hub) Start() {
	go h.Run()
}

// Stop 停止 Hub 并关闭所有连接
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Register 注册连接
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.stop:
		close(conn.Send)
	}
}

// Unregister 注销连接
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.stop:
	}
}

// ConnectionCount 指定文件的连接数
func (h *Hub) ConnectionCount(fileID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.files[fileID])
}

// BroadcastToFile 向订阅了指定文件的连接广播
func (h *Hub) BroadcastToFile(fileID string, data interface{}, final bool) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- &Message{FileID: fileID, Frame: Frame{Data: jsonData, Final: final}}:
	case <-h.stop:
	}
	return nil
}

// HandleEvent 将入库进度事件转发给订阅连接
func (h *Hub) HandleEvent(event events.Event) error {
	progress, ok := event.(*events.DocumentProgressEvent)
	if !ok {
		return nil
	}

	return h.BroadcastToFile(progress.FileID, ProgressMessage{
		FileID:   progress.FileID,
		FileName: progress.FileName,
		Progress: progress.Percent,
		Message:  progress.Message,
		Status:   progress.Status,
	}, progress.EventType == events.DocumentFinished)
}
