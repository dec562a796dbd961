package wire

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"time"

	appRAG "github.com/ragchat/backend/internal/application/rag"
	"github.com/ragchat/backend/internal/domain/events"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/llm"
	applog "github.com/ragchat/backend/internal/infrastructure/log"
	"github.com/ragchat/backend/internal/infrastructure/watcher"
	"github.com/ragchat/backend/internal/infrastructure/websocket"
	"github.com/ragchat/backend/internal/interfaces"
)

// indexSetupTimeout 启动时建立向量索引的超时
const indexSetupTimeout = 30 * time.Second

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer *interfaces.HTTPServer
	MCPServer  *interfaces.MCPServer
	wsHub      *websocket.Hub
	ingestor   *appRAG.Ingestor
	vectors    domainRAG.VectorStore
	tracer     *llm.Tracer
	db         *sql.DB
	cfg        *config.ServerConfig
	logger     *slog.Logger

	// 收件箱相关
	eventBus       events.EventBus
	inboxWatcher   *watcher.InboxWatcher
	inboxHandler   *appRAG.InboxHandler
	unsubscribeBox func()
}

// NewApp 创建应用实例
func NewApp(
	httpServer *interfaces.HTTPServer,
	mcpServer *interfaces.MCPServer,
	wsHub *websocket.Hub,
	ingestor *appRAG.Ingestor,
	vectors domainRAG.VectorStore,
	tracer *llm.Tracer,
	eventBus events.EventBus,
	inboxWatcher *watcher.InboxWatcher,
	inboxHandler *appRAG.InboxHandler,
	db *sql.DB,
	cfg *config.ServerConfig,
) *App {
	return &App{
		HTTPServer:   httpServer,
		MCPServer:    mcpServer,
		wsHub:        wsHub,
		ingestor:     ingestor,
		vectors:      vectors,
		tracer:       tracer,
		db:           db,
		cfg:          cfg,
		logger:       applog.NewModuleLogger("app", "main"),
		eventBus:     eventBus,
		inboxWatcher: inboxWatcher,
		inboxHandler: inboxHandler,
	}
}

// Start 启动所有服务
// listener 为空时 HTTP 服务器自行监听配置端口
func (a *App) Start(listener net.Listener) error {
	a.logger.Info("Starting ragchat backend application")

	ctx, cancel := context.WithTimeout(context.Background(), indexSetupTimeout)
	if err := a.vectors.EnsureIndexes(ctx); err != nil {
		// 索引不可用时对话仍可进行，检索降级为无上下文
		a.logger.Error("Failed to ensure vector indexes",
			"error", err,
		)
	}
	cancel()

	if a.tracer != nil && a.tracer.Enabled() {
		a.logger.Info("Model tracing enabled")
	}

	a.setupEventSubscribers()
	if err := a.inboxWatcher.Start(); err != nil {
		a.logger.Error("Failed to start inbox watcher",
			"error", err,
		)
	}

	go func() {
		if err := a.HTTPServer.Start(listener); err != nil {
			a.logger.Error("Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	a.logger.Info("ragchat backend application started successfully")

	// MCP 服务器通过 HTTP Handler 提供服务，已在 /mcp/sse 注册
	return nil
}

// setupEventSubscribers 注册事件订阅者
func (a *App) setupEventSubscribers() {
	if a.eventBus == nil || a.inboxHandler == nil {
		return
	}
	a.unsubscribeBox = a.eventBus.Subscribe(events.InboxFileCreated, a.inboxHandler)
	a.logger.Info("Inbox handler subscribed to inbox file events")
}

// Stop 停止所有服务
// 先停止接收新请求，再等待后台入库完成
func (a *App) Stop() error {
	a.logger.Info("Stopping ragchat backend application")

	a.inboxWatcher.Stop()
	if a.unsubscribeBox != nil {
		a.unsubscribeBox()
	}

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server",
			"error", err,
		)
	}

	timeout := a.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.ingestor.Wait(ctx); err != nil {
		a.logger.Warn("Background ingestion still running at shutdown",
			"error", err,
		)
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database connection",
				"error", err,
			)
			return err
		}
	}

	a.logger.Info("ragchat backend application stopped successfully")
	return nil
}
