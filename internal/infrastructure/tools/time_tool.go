package tools

import (
	"context"
	"fmt"
	"time"
)

// TimeToolName 时间工具名称
const TimeToolName = "get_current_time"

const timeDescription = "Get current date and time information"

// TimeParams 时间工具参数
type TimeParams struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=Timezone (e.g. America/New_York or UTC)"`
	Format   string `json:"format,omitempty" jsonschema:"description=Output format. Default is readable.,enum=iso,enum=readable,enum=timestamp"`
}

// TimeResult 时间工具结果
type TimeResult struct {
	Success  bool   `json:"success"`
	Time     any    `json:"time,omitempty"`
	Timezone string `json:"timezone"`
	Error    string `json:"error,omitempty"`
}

// clock 测试中替换
var clock = time.Now

// currentTime 按时区和格式返回当前时间
func currentTime(ctx context.Context, params TimeParams) (TimeResult, error) {
	tz := params.Timezone
	if tz == "" {
		tz = "UTC"
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return TimeResult{Success: false, Timezone: tz, Error: fmt.Sprintf("unknown timezone %q", tz)}, nil
	}

	t := clock().In(loc)
	switch params.Format {
	case "iso":
		return TimeResult{Success: true, Time: t.Format(time.RFC3339), Timezone: tz}, nil
	case "timestamp":
		return TimeResult{Success: true, Time: t.UnixMilli(), Timezone: tz}, nil
	default:
		return TimeResult{Success: true, Time: t.Format("January 2, 2006 at 03:04:05 PM MST"), Timezone: tz}, nil
	}
}
