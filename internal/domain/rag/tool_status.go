package rag

// ToolState 工具调用阶段
type ToolState string

const (
	ToolStarted   ToolState = "started"
	ToolCompleted ToolState = "completed"
)

// ToolStatus 工具调用状态通知
type ToolStatus struct {
	Tool    string         `json:"tool"`
	Status  ToolState      `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// StatusSink 接收单次请求内的工具状态，nil 表示忽略
type StatusSink func(status ToolStatus)

// Emit 空 sink 安全
func (s StatusSink) Emit(status ToolStatus) {
	if s != nil {
		s(status)
	}
}
