// Package events 定义领域事件类型和接口
// 用于系统内部的事件驱动通信
package events

import "time"

// EventType 事件类型标识
type EventType string

// 文档入库相关事件类型
const (
	// DocumentProgress 入库进度更新
	DocumentProgress EventType = "document.progress"
	// DocumentFinished 入库进入终态（completed/failed）
	DocumentFinished EventType = "document.finished"
)

// 收件箱目录相关事件类型
const (
	// InboxFileCreated 收件箱出现新文件
	InboxFileCreated EventType = "inbox.file.created"
)

// Event 领域事件接口
// 所有事件类型都必须实现此接口
type Event interface {
	// Type 返回事件类型
	Type() EventType
	// Timestamp 返回事件发生时间
	Timestamp() time.Time
}
