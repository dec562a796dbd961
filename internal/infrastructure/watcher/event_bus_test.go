package watcher

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ragchat/backend/internal/domain/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func progressEvent(fileID string, percent int) *events.DocumentProgressEvent {
	return &events.DocumentProgressEvent{
		EventType: events.DocumentProgress,
		FileID:    fileID,
		Percent:   percent,
		EventTime: time.Now(),
	}
}

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var received atomic.Bool

	unsub := bus.Subscribe(events.DocumentProgress, events.HandlerFunc(func(event events.Event) error {
		received.Store(true)
		return nil
	}))
	defer unsub()

	bus.Publish(progressEvent("file-1", 10))

	assert.Eventually(t, received.Load, time.Second, 10*time.Millisecond)
}

func TestEventBus_MultipleHandlers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var count atomic.Int32

	for i := 0; i < 3; i++ {
		unsub := bus.Subscribe(events.DocumentProgress, events.HandlerFunc(func(event events.Event) error {
			count.Add(1)
			return nil
		}))
		defer unsub()
	}

	bus.Publish(progressEvent("file-1", 10))

	assert.Eventually(t, func() bool { return count.Load() == 3 }, time.Second, 10*time.Millisecond)
}

func TestEventBus_SubscribeMultiple(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var count atomic.Int32

	unsub := bus.SubscribeMultiple(
		[]events.EventType{events.DocumentProgress, events.InboxFileCreated},
		events.HandlerFunc(func(event events.Event) error {
			count.Add(1)
			return nil
		}),
	)
	defer unsub()

	bus.Publish(progressEvent("file-1", 10))
	bus.Publish(&events.InboxFileEvent{FilePath: "/tmp/a.txt", EventTime: time.Now()})

	assert.Eventually(t, func() bool { return count.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var kept, removed atomic.Int32

	unsubRemoved := bus.Subscribe(events.DocumentProgress, events.HandlerFunc(func(event events.Event) error {
		removed.Add(1)
		return nil
	}))
	bus.Subscribe(events.DocumentProgress, events.HandlerFunc(func(event events.Event) error {
		kept.Add(1)
		return nil
	}))

	unsubRemoved()
	// 重复调用安全
	unsubRemoved()

	bus.Publish(progressEvent("file-1", 10))

	assert.Eventually(t, func() bool { return kept.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), removed.Load())
}

func TestEventBus_PreservesOrderPerSubscriber(t *testing.T) {
	bus := NewEventBus()

	var (
		mu       sync.Mutex
		percents []int
	)
	bus.Subscribe(events.DocumentProgress, events.HandlerFunc(func(event events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		percents = append(percents, event.(*events.DocumentProgressEvent).Percent)
		return nil
	}))

	want := []int{5, 10, 25, 40, 50, 60, 70, 75, 85, 100}
	for _, p := range want {
		bus.Publish(progressEvent("file-1", p))
	}
	bus.Close()

	assert.Equal(t, want, percents)
}

func TestEventBus_ErrorIsolation(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var successCount atomic.Int32

	bus.Subscribe(events.DocumentProgress, events.HandlerFunc(func(event events.Event) error {
		return errors.New("handler error")
	}))
	bus.Subscribe(events.DocumentProgress, events.HandlerFunc(func(event events.Event) error {
		successCount.Add(1)
		return nil
	}))

	bus.Publish(progressEvent("file-1", 10))

	assert.Eventually(t, func() bool { return successCount.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestEventBus_PanicRecovery(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	var calls atomic.Int32

	bus.Subscribe(events.DocumentProgress, events.HandlerFunc(func(event events.Event) error {
		if calls.Add(1) == 1 {
			panic("handler panic")
		}
		return nil
	}))

	require.NotPanics(t, func() {
		bus.Publish(progressEvent("file-1", 10))
		bus.Publish(progressEvent("file-1", 20))
	})

	// panic 之后同一订阅者仍能继续处理
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 10*time.Millisecond)
}

func TestEventBus_NoHandlers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	require.NotPanics(t, func() {
		bus.Publish(progressEvent("file-1", 10))
	})
}

func TestEventBus_PublishAfterClose(t *testing.T) {
	bus := NewEventBus()
	bus.Close()

	require.NotPanics(t, func() {
		bus.Publish(progressEvent("file-1", 10))
		bus.Close()
	})
}

func TestEventBus_CloseWaitsForHandlers(t *testing.T) {
	bus := NewEventBus()

	handlerStarted := make(chan struct{})
	var handlerDone atomic.Bool

	bus.Subscribe(events.DocumentProgress, events.HandlerFunc(func(event events.Event) error {
		close(handlerStarted)
		time.Sleep(200 * time.Millisecond)
		handlerDone.Store(true)
		return nil
	}))

	bus.Publish(progressEvent("file-1", 10))
	<-handlerStarted

	bus.Close()
	assert.True(t, handlerDone.Load(), "Close should wait for the running handler")
}
