package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
)

// ProgressServer 处理进度订阅的 WebSocket 升级与读写
type ProgressServer struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewProgressServer 创建进度 WebSocket 服务
func NewProgressServer(hub *Hub, cfg *config.WebSocketConfig) *ProgressServer {
	readSize, writeSize := cfg.ReadBufferSize, cfg.WriteBufferSize
	if readSize <= 0 {
		readSize = 1024
	}
	if writeSize <= 0 {
		writeSize = 1024
	}
	return &ProgressServer{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readSize,
			WriteBufferSize: writeSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: log.NewModuleLogger("websocket", "progress_server"),
	}
}

// ServeFile 升级连接并订阅指定文件的进度
func (s *ProgressServer) ServeFile(w http.ResponseWriter, r *http.Request, fileID string) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Failed to upgrade connection", "file_id", fileID, "error", err)
		return
	}

	conn := NewConnection(fileID)
	s.hub.Register(conn)

	s.logger.Debug("Progress subscriber connected", "file_id", fileID)

	go s.writePump(ws, conn)
	go s.readPump(ws, conn)
}

// readPump 只用于检测断开和续期读取超时
func (s *ProgressServer) readPump(ws *websocket.Conn, conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		ws.Close()
	}()

	ws.SetReadLimit(4 * 1024)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Progress connection read error", "file_id", conn.FileID, "error", err)
			}
			return
		}
	}
}

// writePump 写出进度帧，终态帧之后发送关闭帧
func (s *ProgressServer) writePump(ws *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case frame, ok := <-conn.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, frame.Data); err != nil {
				s.logger.Debug("Failed to write progress", "file_id", conn.FileID, "error", err)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
