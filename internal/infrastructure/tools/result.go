package tools

import "time"

// ToolError 工具执行失败时返回给模型的结果
// 失败以结果形式返回，模型可以据此向用户解释
type ToolError struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func failure(message string) ToolError {
	return ToolError{
		Success:   false,
		Error:     message,
		Timestamp: now(),
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
