package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/log"
	"github.com/ragchat/backend/internal/interfaces/http/handler"
	"github.com/ragchat/backend/internal/interfaces/http/middleware"
	"github.com/ragchat/backend/internal/interfaces/mcp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ragchat/backend/docs" // Swagger docs
)

const defaultShutdownTimeout = 5 * time.Second

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	cfg      *config.ServerConfig
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	cfg *config.ServerConfig,
	documentHandler *handler.DocumentHandler,
	searchHandler *handler.SearchHandler,
	chatHandler *handler.ChatHandler,
	mcpServer *mcp.MCPServer,
) *HTTPServer {
	router := newRouter(documentHandler, searchHandler, chatHandler, mcpServer.GetHandler())
	return &HTTPServer{
		router:   router,
		httpPort: cfg.HTTPPort,
		cfg:      cfg,
		server: &http.Server{
			Addr:    cfg.HTTPPort,
			Handler: router,
		},
		logger: log.NewModuleLogger("http", "server"),
	}
}

func newRouter(
	documentHandler *handler.DocumentHandler,
	searchHandler *handler.SearchHandler,
	chatHandler *handler.ChatHandler,
	mcpHandler http.Handler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestContext(), middleware.EnsureUTF8Body())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api/v1")
	{
		documents := api.Group("/documents")
		{
			documents.POST("", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.GET("/:id/status", documentHandler.Status)
			documents.GET("/:id/progress", documentHandler.Progress)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		api.POST("/search", searchHandler.Search)
		api.POST("/search/context", searchHandler.Context)

		api.POST("/chat/stream", chatHandler.Stream)
		api.GET("/conversations/:id/memory", chatHandler.Memory)
	}

	if mcpHandler != nil {
		router.Any("/mcp/sse", gin.WrapH(mcpHandler))
	}

	return router
}

// Handler 返回路由，供测试与嵌入使用
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start 启动服务器，阻塞直到关闭
// listener 为空时自行监听配置的端口
func (s *HTTPServer) Start(listener net.Listener) error {
	s.logger.Info("HTTP server starting",
		"port", s.httpPort,
	)

	var err error
	if listener != nil {
		err = s.server.Serve(listener)
	} else {
		err = s.server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}
