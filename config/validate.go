package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if err := validateURL("market.baseURL", cfg.Market.BaseURL, "http", "https"); err != nil {
		return err
	}
	if cfg.Market.VsCurrency == "" {
		return ErrInvalid("market.vsCurrency is required")
	}
	if cfg.Market.PerPage != 50 {
		return ErrInvalid(fmt.Sprintf("market.perPage must be 50, got %d", cfg.Market.PerPage))
	}
	if cfg.Market.Page < 1 {
		return ErrInvalid("market.page must be >= 1")
	}
	if cfg.Market.TimeoutMs < 0 {
		return ErrInvalid("market.timeoutMs must be >= 0")
	}
	if cfg.Market.RateLimit.RPS < 0 || cfg.Market.RateLimit.Burst < 0 {
		return ErrInvalid("market.rateLimit values must be >= 0")
	}
	if cfg.Market.Breaker.Threshold < 0 || cfg.Market.Breaker.CooldownMs < 0 {
		return ErrInvalid("market.breaker values must be >= 0")
	}
	if err := validateURL("stream.endpoint", cfg.Stream.Endpoint, "ws", "wss"); err != nil {
		return err
	}
	if cfg.Stream.QuoteAsset == "" {
		return ErrInvalid("stream.quoteAsset is required")
	}
	if cfg.Stream.ReadTimeoutMs < 0 {
		return ErrInvalid("stream.readTimeoutMs must be >= 0")
	}
	if cfg.Sync.RefreshIntervalMs < 0 {
		return ErrInvalid("sync.refreshIntervalMs must be >= 0")
	}
	if cfg.Sync.Reconnect.MaxRetries < 0 || cfg.Sync.Reconnect.BackoffMs < 0 {
		return ErrInvalid("sync.reconnect values must be >= 0")
	}
	if strings.TrimSpace(cfg.Portfolio.Path) == "" {
		return ErrInvalid("portfolio.path is required")
	}
	if cfg.HTTP.Addr == "" {
		return ErrInvalid("http.addr is required")
	}
	if cfg.Alert.WebhookURL != "" {
		if err := validateURL("alert.webhookURL", cfg.Alert.WebhookURL, "http", "https"); err != nil {
			return err
		}
	}
	if cfg.Alert.ThrottleMs < 0 {
		return ErrInvalid("alert.throttleMs must be >= 0")
	}
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return ErrInvalid(fmt.Sprintf("log.level %q is not supported", cfg.Log.Level))
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return ErrInvalid(field + " is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ErrInvalid(fmt.Sprintf("%s %q is not a valid url", field, raw))
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return ErrInvalid(fmt.Sprintf("%s scheme must be one of %v", field, schemes))
}
