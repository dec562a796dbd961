package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	domainRAG "github.com/ragchat/backend/internal/domain/rag"
)

// toolRunner 执行模型请求的工具调用，并向 sink 报告状态
type toolRunner struct {
	tools  map[string]tool.InvokableTool
	sink   domainRAG.StatusSink
	logger *slog.Logger
}

// newToolRunner 收集工具描述并按名称索引
func newToolRunner(ctx context.Context, tools []tool.InvokableTool, sink domainRAG.StatusSink, logger *slog.Logger) (*toolRunner, []*schema.ToolInfo, error) {
	runner := &toolRunner{
		tools:  make(map[string]tool.InvokableTool, len(tools)),
		sink:   sink,
		logger: logger,
	}
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read tool info: %w", err)
		}
		runner.tools[info.Name] = t
		infos = append(infos, info)
	}
	return runner, infos, nil
}

// run 执行一次工具调用，工具错误作为结果交给模型而不是中断对话
func (r *toolRunner) run(ctx context.Context, call schema.ToolCall) *schema.Message {
	name := call.Function.Name

	r.sink.Emit(domainRAG.ToolStatus{
		Tool:    name,
		Status:  domainRAG.ToolStarted,
		Details: parseArguments(call.Function.Arguments),
	})

	t, ok := r.tools[name]
	var (
		output string
		err    error
	)
	if !ok {
		err = fmt.Errorf("unknown tool %q", name)
	} else {
		output, err = t.InvokableRun(ctx, call.Function.Arguments)
	}

	details := map[string]any{"success": err == nil}
	if err != nil {
		r.logger.Warn("Tool call failed",
			"tool", name,
			"error", err,
		)
		details["error"] = err.Error()
		encoded, _ := json.Marshal(map[string]any{"success": false, "error": err.Error()})
		output = string(encoded)
	}

	r.sink.Emit(domainRAG.ToolStatus{
		Tool:    name,
		Status:  domainRAG.ToolCompleted,
		Details: details,
	})

	return schema.ToolMessage(output, call.ID, schema.WithToolName(name))
}

// parseArguments 将参数 JSON 转为状态详情，解析失败时原样返回
func parseArguments(arguments string) map[string]any {
	if arguments == "" {
		return nil
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(arguments), &details); err != nil {
		return map[string]any{"arguments": arguments}
	}
	return details
}
