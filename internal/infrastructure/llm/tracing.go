package llm

import (
	"context"
	"fmt"

	clc "github.com/cloudwego/eino-ext/callbacks/cozeloop"
	"github.com/cloudwego/eino/callbacks"
	"github.com/coze-dev/cozeloop-go"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// Tracer CozeLoop 全局回调，未配置时为空操作
type Tracer struct {
	client cozeloop.Client
}

// Enabled 是否启用追踪
func (t *Tracer) Enabled() bool {
	return t != nil && t.client != nil
}

// Close 刷新并关闭追踪客户端
func (t *Tracer) Close(ctx context.Context) {
	if t.Enabled() {
		t.client.Close(ctx)
	}
}

// NewTracer 配置了 CozeLoop 时注册 eino 全局回调
func NewTracer(cfg *config.TracingConfig) (*Tracer, func(), error) {
	logger := log.NewModuleLogger("llm", "tracing")

	if cfg.CozeLoopAPIToken == "" || cfg.CozeLoopWorkspaceID == "" {
		logger.Debug("CozeLoop tracing disabled")
		return &Tracer{}, func() {}, nil
	}

	client, err := cozeloop.NewClient(
		cozeloop.WithAPIToken(cfg.CozeLoopAPIToken),
		cozeloop.WithWorkspaceID(cfg.CozeLoopWorkspaceID),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cozeloop client: %w", err)
	}

	callbacks.AppendGlobalHandlers(clc.NewLoopHandler(client))
	logger.Info("CozeLoop tracing enabled",
		"workspace_id", cfg.CozeLoopWorkspaceID,
		"api_token", log.MaskSecret(cfg.CozeLoopAPIToken),
	)

	tracer := &Tracer{client: client}
	cleanup := func() {
		tracer.Close(context.Background())
	}
	return tracer, cleanup, nil
}
