package embedding

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// TickFunc 等待期间每秒回调一次剩余时间
type TickFunc func(remaining time.Duration)

// Throttle 供应商 RPM 限制：两次调用之间保持固定间隔
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle 创建节流器，interval <= 0 时不限速
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, 1)}
}

// Wait 占用一次调用额度，必要时等待
// 等待期间按秒回调 onTick，ctx 取消时归还额度
func (t *Throttle) Wait(ctx context.Context, onTick TickFunc) error {
	reservation := t.limiter.Reserve()
	delay := reservation.Delay()
	if delay <= 0 {
		return nil
	}

	deadline := time.Now().Add(delay)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	timer := time.NewTimer(delay)
	defer timer.Stop()

	if onTick != nil {
		onTick(delay)
	}

	for {
		select {
		case <-ctx.Done():
			reservation.Cancel()
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-ticker.C:
			if remaining := time.Until(deadline); remaining > 0 && onTick != nil {
				onTick(remaining)
			}
		}
	}
}
