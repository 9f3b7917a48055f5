package alert

import (
	"fmt"
	"sync"
	"time"
)

// 告警级别
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// 行情同步产生的告警类型。
const (
	KindMarketFallback = "market_fallback"
	KindStreamStopped  = "stream_stopped"
)

// Alert 一条告警。Kind + Scope 标识同一个故障，例如 stream_stopped 与会话号。
type Alert struct {
	Kind      string                 `json:"kind"`
	Scope     string                 `json:"scope,omitempty"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (a Alert) key() string {
	return a.Kind + "/" + a.Scope
}

// Channel 告警通道接口
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Stats 告警发送计数。
type Stats struct {
	Sent      int
	Throttled int
	Failed    int
}

// Manager 按故障去重的告警管理器。
// 同一故障在 interval 内只发送一次；Resolve 之后再次出现会立即发送。
type Manager struct {
	channels []Channel
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
	stats    Stats
}

// NewManager 创建告警管理器
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{
		channels: channels,
		interval: throttleInterval,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Raise 发送告警；全部通道失败时返回最后一个错误。被限流时返回 nil。
func (m *Manager) Raise(a Alert) error {
	if a.Level == "" {
		a.Level = LevelWarning
	}

	m.mu.Lock()
	now := m.now()
	if a.Timestamp.IsZero() {
		a.Timestamp = now
	}
	if last, ok := m.lastSent[a.key()]; ok && now.Sub(last) < m.interval {
		m.stats.Throttled++
		m.mu.Unlock()
		return nil
	}
	m.lastSent[a.key()] = now
	m.mu.Unlock()

	var lastErr error
	delivered := false
	for _, ch := range m.channels {
		if err := ch.Send(a); err != nil {
			lastErr = fmt.Errorf("channel %s failed: %w", ch.Name(), err)
			continue
		}
		delivered = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !delivered && lastErr != nil {
		m.stats.Failed++
		// 未送达的告警不占用限流窗口
		delete(m.lastSent, a.key())
		return lastErr
	}
	m.stats.Sent++
	return nil
}

// Warn 发送 WARNING 级别告警。
func (m *Manager) Warn(kind, scope, message string, fields map[string]interface{}) error {
	return m.Raise(Alert{Kind: kind, Scope: scope, Level: LevelWarning, Message: message, Fields: fields})
}

// Resolve 标记故障已恢复，清除其限流记录。
func (m *Manager) Resolve(kind, scope string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastSent, Alert{Kind: kind, Scope: scope}.key())
}

// Stats 返回计数快照。
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
