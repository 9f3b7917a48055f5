package config

import (
	"fmt"
	"os"
	"time"

	"coinwatch-go/infrastructure/logger"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string          `yaml:"env"`
	Market    MarketConfig    `yaml:"market"`
	Stream    StreamConfig    `yaml:"stream"`
	Sync      SyncConfig      `yaml:"sync"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	HTTP      HTTPConfig      `yaml:"http"`
	Alert     AlertConfig     `yaml:"alert"`
	Log       logger.Config   `yaml:"log"`
}

// MarketConfig 批量行情接口参数。
type MarketConfig struct {
	BaseURL    string          `yaml:"baseURL"`
	VsCurrency string          `yaml:"vsCurrency"`
	Order      string          `yaml:"order"`
	PerPage    int             `yaml:"perPage"` // 固定 50
	Page       int             `yaml:"page"`
	Sparkline  bool            `yaml:"sparkline"`
	TimeoutMs  int             `yaml:"timeoutMs"`
	RateLimit  RateLimitConfig `yaml:"rateLimit"`
	Breaker    BreakerConfig   `yaml:"breaker"`
}

// RateLimitConfig rps 为 0 时不限流。
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BreakerConfig threshold 为 0 时不启用熔断。
type BreakerConfig struct {
	Threshold  int `yaml:"threshold"`
	CooldownMs int `yaml:"cooldownMs"`
}

func (c BreakerConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

type StreamConfig struct {
	Endpoint      string `yaml:"endpoint"`
	QuoteAsset    string `yaml:"quoteAsset"`
	ReadTimeoutMs int    `yaml:"readTimeoutMs"`
}

type SyncConfig struct {
	RefreshIntervalMs int             `yaml:"refreshIntervalMs"` // 0 关闭后台刷新
	Reconnect         ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig maxRetries 为 0 时行情流断开后不重连。
type ReconnectConfig struct {
	MaxRetries int `yaml:"maxRetries"`
	BackoffMs  int `yaml:"backoffMs"`
}

type PortfolioConfig struct {
	Path string `yaml:"path"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// AlertConfig webhookURL 为空时只写日志。
type AlertConfig struct {
	WebhookURL string `yaml:"webhookURL"`
	ThrottleMs int    `yaml:"throttleMs"`
}

// RefreshInterval 后台刷新周期。
func (c SyncConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMs) * time.Millisecond
}

func (c ReconnectConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMs) * time.Millisecond
}

func (c MarketConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c StreamConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

func (c AlertConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleMs) * time.Millisecond
}

// Default 返回可直接运行的默认配置，Load 在其基础上覆盖文件中的字段。
func Default() AppConfig {
	return AppConfig{
		Env: "dev",
		Market: MarketConfig{
			BaseURL:    "https://api.coingecko.com",
			VsCurrency: "usd",
			Order:      "market_cap_desc",
			PerPage:    50,
			Page:       1,
			Sparkline:  true,
			TimeoutMs:  10000,
			Breaker: BreakerConfig{
				Threshold:  5,
				CooldownMs: 30000,
			},
		},
		Stream: StreamConfig{
			Endpoint:      "wss://stream.binance.com:9443/ws/!miniTicker@arr",
			QuoteAsset:    "USDT",
			ReadTimeoutMs: 60000,
		},
		Sync: SyncConfig{
			RefreshIntervalMs: 30000,
			Reconnect: ReconnectConfig{
				MaxRetries: 0,
				BackoffMs:  2000,
			},
		},
		Portfolio: PortfolioConfig{Path: "crypto-portfolio-storage.json"},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Alert:     AlertConfig{ThrottleMs: 300000},
		Log:       logger.DefaultConfig(),
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides deployment fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, Validate(cfg)
}

// LoadOrDefault 路径为空时使用默认配置（仍然应用环境变量）。
func LoadOrDefault(path string) (AppConfig, error) {
	if path == "" {
		cfg := Default()
		applyEnv(&cfg)
		return cfg, Validate(cfg)
	}
	return LoadWithEnvOverrides(path)
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("COINWATCH_MARKET_BASE_URL"); v != "" {
		cfg.Market.BaseURL = v
	}
	if v := os.Getenv("COINWATCH_STREAM_ENDPOINT"); v != "" {
		cfg.Stream.Endpoint = v
	}
	if v := os.Getenv("COINWATCH_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("COINWATCH_PORTFOLIO_PATH"); v != "" {
		cfg.Portfolio.Path = v
	}
}
