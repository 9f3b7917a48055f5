package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen 熔断期间直接拒绝请求。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState 熔断器状态
type BreakerState int

const (
	// BreakerClosed 关闭状态 - 正常请求
	BreakerClosed BreakerState = iota
	// BreakerOpen 打开状态 - 拒绝所有请求
	BreakerOpen
	// BreakerHalfOpen 半开状态 - 放行一个探测请求
	BreakerHalfOpen
)

// String 返回状态名称
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Threshold int           // 连续失败多少次后熔断
	Cooldown  time.Duration // 熔断后等待多久进入半开
}

// CircuitBreaker 连续失败达到阈值后在冷却期内拒绝行情请求，
// 避免上游限流（429）时继续消耗配额。ctx 取消不计入失败。
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration

	state           BreakerState
	consecutiveFail int
	openTime        time.Time
	probing         bool

	mu  sync.Mutex
	now func() time.Time
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// Allow 请求前检查。半开状态同一时间只放行一个探测请求。
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerOpen:
		wait := cb.cooldown - cb.now().Sub(cb.openTime)
		if wait > 0 {
			return fmt.Errorf("%w, retry in %v", ErrCircuitOpen, wait.Round(time.Millisecond))
		}
		cb.state = BreakerHalfOpen
		cb.probing = true
		return nil
	case BreakerHalfOpen:
		if cb.probing {
			return fmt.Errorf("%w, trial request in flight", ErrCircuitOpen)
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

// Record 记录请求结果。
func (cb *CircuitBreaker) Record(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		cb.mu.Lock()
		cb.probing = false
		cb.mu.Unlock()
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false

	if err == nil {
		cb.state = BreakerClosed
		cb.consecutiveFail = 0
		return
	}
	cb.consecutiveFail++
	if cb.state == BreakerHalfOpen || cb.consecutiveFail >= cb.threshold {
		cb.state = BreakerOpen
		cb.openTime = cb.now()
	}
}

// State 返回当前状态
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset 手动恢复到关闭状态
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = BreakerClosed
	cb.consecutiveFail = 0
	cb.probing = false
}
