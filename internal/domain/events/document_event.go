package events

import "time"

// DocumentProgressEvent 文档入库进度事件
// Percent 取值 0-100，失败时为 0
type DocumentProgressEvent struct {
	EventType EventType
	FileID    string
	FileName  string
	Percent   int
	Message   string
	// Status pending/processing/completed/failed
	Status    string
	EventTime time.Time
}

// Type 实现 Event 接口
func (e *DocumentProgressEvent) Type() EventType {
	return e.EventType
}

// Timestamp 实现 Event 接口
func (e *DocumentProgressEvent) Timestamp() time.Time {
	return e.EventTime
}

// InboxFileEvent 收件箱文件事件
type InboxFileEvent struct {
	FilePath  string
	FileName  string
	FileSize  int64
	ModTime   time.Time
	EventTime time.Time
}

// Type 实现 Event 接口
func (e *InboxFileEvent) Type() EventType {
	return InboxFileCreated
}

// Timestamp 实现 Event 接口
func (e *InboxFileEvent) Timestamp() time.Time {
	return e.EventTime
}
