package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ragchat/backend/internal/domain/events"
	"github.com/ragchat/backend/internal/infrastructure/log"
)

// WatchConfig InboxWatcher 配置
type WatchConfig struct {
	// Dir 收件箱目录，为空时不启动监听
	Dir string
	// DebounceDelay 防抖延迟，等待文件写完
	DebounceDelay time.Duration
}

// InboxWatcher 监听收件箱目录，新文件写入完成后发布 InboxFileCreated 事件
type InboxWatcher struct {
	config   WatchConfig
	eventBus events.EventBus
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// 防抖相关
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// 控制
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewInboxWatcher 创建收件箱监听器
func NewInboxWatcher(config WatchConfig, eventBus events.EventBus) (*InboxWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &InboxWatcher{
		config:         config,
		eventBus:       eventBus,
		watcher:        watcher,
		logger:         log.NewModuleLogger("watcher", "inbox_watcher"),
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
	}, nil
}

// Enabled 是否配置了收件箱目录
func (w *InboxWatcher) Enabled() bool {
	return w.config.Dir != ""
}

// Start 扫描已有文件并启动监听
func (w *InboxWatcher) Start() error {
	if !w.Enabled() {
		w.logger.Debug("Inbox directory not configured, watcher disabled")
		return nil
	}

	if err := os.MkdirAll(w.config.Dir, 0755); err != nil {
		return err
	}

	w.logger.Info("Starting inbox watcher", "dir", w.config.Dir)

	count := w.scanExisting()
	if count > 0 {
		w.logger.Info("Queued existing inbox files", "files_count", count)
	}

	if err := w.watcher.Add(w.config.Dir); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.watchLoop()

	return nil
}

// Stop 停止监听
func (w *InboxWatcher) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping inbox watcher")

		close(w.stopCh)
		w.watcher.Close()
		w.wg.Wait()

		w.debounceMu.Lock()
		for _, timer := range w.debounceTimers {
			timer.Stop()
		}
		w.debounceMu.Unlock()
	})
}

// scanExisting 启动时处理目录中已有的文件
func (w *InboxWatcher) scanExisting() int {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		w.logger.Error("Failed to read inbox directory", "error", err)
		return 0
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || isHiddenFile(entry.Name()) {
			continue
		}
		if w.emit(filepath.Join(w.config.Dir, entry.Name())) {
			count++
		}
	}
	return count
}

// watchLoop 事件监听循环
func (w *InboxWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)
		}
	}
}

// handleFsEvent 处理文件系统事件（带防抖）
// 大文件复制会触发多次 Write，只在最后一次事件之后处理
func (w *InboxWatcher) handleFsEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if isHiddenFile(filepath.Base(event.Name)) {
		return
	}

	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[event.Name]; exists {
		timer.Stop()
	}

	path := event.Name
	w.debounceTimers[path] = time.AfterFunc(w.config.DebounceDelay, func() {
		w.emit(path)

		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()
	})
}

// emit 发布收件箱文件事件
func (w *InboxWatcher) emit(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	w.eventBus.Publish(&events.InboxFileEvent{
		FilePath:  path,
		FileName:  filepath.Base(path),
		FileSize:  info.Size(),
		ModTime:   info.ModTime(),
		EventTime: time.Now(),
	})

	w.logger.Debug("Inbox file event emitted",
		"file_name", filepath.Base(path),
		"file_size", info.Size(),
	)
	return true
}

// isHiddenFile 忽略隐藏文件和编辑器临时文件
func isHiddenFile(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".part")
}
