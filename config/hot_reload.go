package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// HotReloadConfig 热更新配置
type HotReloadConfig struct {
	Enabled      bool          // 是否启用热更新
	CooldownTime time.Duration // 冷却时间，避免编辑器多次写入触发重复加载
}

// DefaultHotReloadConfig 默认热更新配置
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:      true,
		CooldownTime: time.Second,
	}
}

// HotReloader 监听配置文件，变化后重新加载并校验，通过后交给 handler。
// 校验失败时保留旧配置。
type HotReloader struct {
	config     HotReloadConfig
	configPath string
	watcher    *fsnotify.Watcher
	logger     *zap.Logger
	lastReload time.Time
	mu         sync.RWMutex
	handlers   []func(AppConfig)
	stopOnce   sync.Once
	stopChan   chan struct{}
	doneChan   chan struct{}
	started    bool
}

// NewHotReloader 创建热更新器
func NewHotReloader(configPath string, cfg HotReloadConfig, logger *zap.Logger) (*HotReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HotReloader{
		config:     cfg,
		configPath: filepath.Clean(configPath),
		watcher:    watcher,
		logger:     logger,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// OnReload 注册重载回调，按注册顺序调用。
func (h *HotReloader) OnReload(handler func(AppConfig)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handler)
}

// Start 启动热更新监听。监听所在目录，兼容先写临时文件再 rename 的编辑器。
func (h *HotReloader) Start(ctx context.Context) error {
	if !h.config.Enabled {
		return nil
	}
	if err := h.watcher.Add(filepath.Dir(h.configPath)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}
	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
	go h.watch(ctx)
	return nil
}

// Stop 停止热更新，可重复调用。
func (h *HotReloader) Stop() error {
	h.stopOnce.Do(func() { close(h.stopChan) })

	h.mu.RLock()
	started := h.started
	h.mu.RUnlock()
	if started {
		<-h.doneChan
	}
	return h.watcher.Close()
}

// watch 监听文件变化
func (h *HotReloader) watch(ctx context.Context) {
	defer close(h.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != h.configPath {
				continue
			}
			// 只处理写入、创建与 rename 进来的文件
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.handleConfigChange()
			}
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// handleConfigChange 处理配置变化
func (h *HotReloader) handleConfigChange() {
	h.mu.Lock()
	if time.Since(h.lastReload) < h.config.CooldownTime {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	cfg, err := LoadWithEnvOverrides(h.configPath)
	if err != nil {
		h.logger.Warn("config reload rejected", zap.String("path", h.configPath), zap.Error(err))
		return
	}

	h.mu.Lock()
	h.lastReload = time.Now()
	handlers := append([]func(AppConfig){}, h.handlers...)
	h.mu.Unlock()

	h.logger.Info("config reloaded", zap.String("path", h.configPath))
	for _, fn := range handlers {
		fn(cfg)
	}
}

// GetLastReloadTime 获取最后重载时间
func (h *HotReloader) GetLastReloadTime() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastReload
}
