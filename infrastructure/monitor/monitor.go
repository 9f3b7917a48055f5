package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 拉取结果标签
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeStale    = "stale"
	OutcomeCanceled = "canceled"
)

// Monitor Prometheus监控指标收集器。
// 所有方法对 nil 接收者安全，组件可以不注入 Monitor。
type Monitor struct {
	registry *prometheus.Registry

	// 快照拉取
	fetches      *prometheus.CounterVec
	fetchLatency prometheus.Histogram

	// 行情流
	wsConnections     prometheus.Counter
	wsDisconnects     prometheus.Counter
	malformedMessages prometheus.Counter
	ticksApplied      prometheus.Counter

	// 会话
	keepaliveSkipped prometheus.Counter
	assets           prometheus.Gauge
	polling          prometheus.Gauge

	// 持仓
	portfolioValue prometheus.Gauge

	// HTTP
	httpRequests *prometheus.CounterVec
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "coinwatch",
		Subsystem: "sync",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Monitor{
		registry: reg,

		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "snapshot_fetches_total",
				Help:      "快照拉取次数（按结果）",
			},
			[]string{"outcome"},
		),
		fetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "snapshot_fetch_seconds",
			Help:      "快照拉取耗时（秒）",
			Buckets:   prometheus.DefBuckets,
		}),

		wsConnections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_connections_total",
			Help:      "WebSocket连接次数",
		}),
		wsDisconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_disconnects_total",
			Help:      "WebSocket断开次数",
		}),
		malformedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ws_malformed_messages_total",
			Help:      "无法解析而被丢弃的行情消息数",
		}),
		ticksApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "ticks_applied_total",
			Help:      "被 tick 更新的资产价格次数",
		}),

		keepaliveSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "keepalive_skipped_total",
			Help:      "不可见时跳过的周期刷新次数",
		}),
		assets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "assets",
			Help:      "当前资产数量",
		}),
		polling: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "polling",
			Help:      "同步会话是否活跃(0/1)",
		}),

		portfolioValue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "portfolio",
			Name:      "total_value",
			Help:      "按实时价格计算的持仓总值",
		}),

		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP请求总数",
			},
			[]string{"route", "code"},
		),
	}
}

// 快照拉取相关方法
func (m *Monitor) RecordFetch(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCanceled {
		m.fetchLatency.Observe(seconds)
	}
}

// 行情流相关方法
func (m *Monitor) RecordWSConnection() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

func (m *Monitor) RecordWSDisconnect() {
	if m == nil {
		return
	}
	m.wsDisconnects.Inc()
}

func (m *Monitor) RecordMalformedMessage() {
	if m == nil {
		return
	}
	m.malformedMessages.Inc()
}

func (m *Monitor) RecordTicksApplied(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ticksApplied.Add(float64(n))
}

// 会话相关方法
func (m *Monitor) RecordKeepaliveSkipped() {
	if m == nil {
		return
	}
	m.keepaliveSkipped.Inc()
}

func (m *Monitor) UpdateAssets(n int) {
	if m == nil {
		return
	}
	m.assets.Set(float64(n))
}

func (m *Monitor) UpdatePolling(active bool) {
	if m == nil {
		return
	}
	if active {
		m.polling.Set(1)
	} else {
		m.polling.Set(0)
	}
}

func (m *Monitor) UpdatePortfolioValue(v float64) {
	if m == nil {
		return
	}
	m.portfolioValue.Set(v)
}

func (m *Monitor) RecordHTTPRequest(route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
