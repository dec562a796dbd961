// @title ragchat API
// @version 1.0
// @description ragchat 文档问答服务 API
// @host localhost:19970
// @BasePath /api/v1
// @schemes http
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/ragchat/backend/internal/infrastructure/config"
	applog "github.com/ragchat/backend/internal/infrastructure/log"
	"github.com/ragchat/backend/internal/infrastructure/singleton"
	"github.com/ragchat/backend/internal/wire"
)

func main() {
	// 本地开发时从 .env 读取密钥，文件不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	applog.Init(nil)
	logger := applog.GetLogger()

	cfg := config.NewConfig()

	listener, err := singleton.Listen(context.Background(), cfg.Server.HTTPPort)
	if errors.Is(err, singleton.ErrAlreadyRunning) {
		logger.Info("Another instance is already running, exiting",
			"addr", cfg.Server.HTTPPort,
		)
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("failed to acquire server port: %v", err)
	}

	app, cleanup, err := wire.InitializeAll()
	if err != nil {
		_ = listener.Close()
		logger.Error("Failed to initialize application",
			"error", err,
		)
		os.Exit(1)
	}

	if err := app.Start(listener); err != nil {
		logger.Error("Failed to start application",
			"error", err,
		)
		cleanup()
		os.Exit(1)
	}

	// 优雅关闭
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down application...")
	if err := app.Stop(); err != nil {
		logger.Error("Error during application shutdown",
			"error", err,
		)
	}
	cleanup()
	logger.Info("Application stopped")
}
