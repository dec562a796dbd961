package lock

import (
	"context"
	"sync"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
)

var _ domainRAG.TurnLocker = (*LocalLocker)(nil)

// LocalLocker 进程内按 key 的互斥锁
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// slot 单个 key 的锁，refs 归零时从 map 移除
type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Acquire 获取 key 对应的锁
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}
	return release, nil
}

func (l *LocalLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size 当前持有或等待中的 key 数
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
