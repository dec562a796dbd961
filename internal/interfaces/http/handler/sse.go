package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// SSE 结束标记
const (
	sseDone  = "[DONE]"
	sseError = "[ERROR]"
)

// StreamChunk 流式输出的文本片段
type StreamChunk struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversationId"`
}

// ToolStatusEvent 工具调用状态事件
type ToolStatusEvent struct {
	Type    string         `json:"type"`
	Tool    string         `json:"tool"`
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// sseWriter 以 data: 帧写出 Server-Sent Events
// 工具在独立 goroutine 中上报状态，写入需要加锁
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	failed  bool
}

func setSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	setSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, nil
}

// WriteJSON 写出一帧 JSON 数据
func (s *sseWriter) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return s.writeData(string(payload))
}

// Done 写出正常结束标记
func (s *sseWriter) Done() error {
	return s.writeData(sseDone)
}

// Fail 写出错误结束标记
func (s *sseWriter) Fail() error {
	return s.writeData(sseError)
}

func (s *sseWriter) writeData(data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed {
		return errors.New("stream already broken")
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		s.failed = true
		return err
	}
	s.flusher.Flush()
	return nil
}
