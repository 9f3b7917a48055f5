package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"coinwatch-go/market"
)

const (
	// CoinGeckoBaseURL 公共行情接口地址。
	CoinGeckoBaseURL = "https://api.coingecko.com"
	// MarketsPath 批量行情接口路径。
	MarketsPath = "/api/v3/coins/markets"
	// DefaultPerPage 每页条数固定为 50。
	DefaultPerPage = 50
)

// ErrHTTPStatus 接口返回非 2xx 状态码。
var ErrHTTPStatus = errors.New("unexpected http status")

// MarketsQuery 批量行情请求参数。
type MarketsQuery struct {
	VsCurrency string
	Order      string
	PerPage    int
	Page       int
	Sparkline  bool
}

// DefaultMarketsQuery 按市值降序拉取第一页（含 7 日价格序列）。
func DefaultMarketsQuery() MarketsQuery {
	return MarketsQuery{
		VsCurrency: "usd",
		Order:      "market_cap_desc",
		PerPage:    DefaultPerPage,
		Page:       1,
		Sparkline:  true,
	}
}

func (q MarketsQuery) values() url.Values {
	v := url.Values{}
	vs := q.VsCurrency
	if vs == "" {
		vs = "usd"
	}
	order := q.Order
	if order == "" {
		order = "market_cap_desc"
	}
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	v.Set("vs_currency", strings.ToLower(vs))
	v.Set("order", order)
	v.Set("per_page", strconv.Itoa(perPage))
	v.Set("page", strconv.Itoa(page))
	v.Set("sparkline", strconv.FormatBool(q.Sparkline))
	return v
}

// MarketRESTClient 拉取批量行情快照；HTTPClient 可注入 httptest。
type MarketRESTClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    RateLimiter
	Breaker    *CircuitBreaker
	Logger     *zap.Logger
}

// NewMarketRESTClient 使用默认超时构造客户端。
func NewMarketRESTClient(baseURL string, logger *zap.Logger) *MarketRESTClient {
	if baseURL == "" {
		baseURL = CoinGeckoBaseURL
	}
	return &MarketRESTClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: NewDefaultHTTPClient(),
		Logger:     logger,
	}
}

// FetchMarkets 调用批量行情接口。请求绑定 ctx，取消后返回 ctx 的错误。
// 无法解码的单条记录被丢弃并记录日志，不影响其他记录。
func (c *MarketRESTClient) FetchMarkets(ctx context.Context, q MarketsQuery) ([]market.RawCoin, error) {
	if c == nil || c.HTTPClient == nil {
		return nil, fmt.Errorf("http client not set")
	}
	if c.Breaker == nil {
		return c.fetchMarkets(ctx, q)
	}
	if err := c.Breaker.Allow(); err != nil {
		return nil, err
	}
	raws, err := c.fetchMarkets(ctx, q)
	c.Breaker.Record(err)
	if err != nil && c.Breaker.State() == BreakerOpen {
		c.logger().Warn("market circuit breaker open", zap.Error(err))
	}
	return raws, err
}

func (c *MarketRESTClient) fetchMarkets(ctx context.Context, q MarketsQuery) ([]market.RawCoin, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + MarketsPath + "?" + q.values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build markets request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("markets request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("markets: %w %d", ErrHTTPStatus, resp.StatusCode)
	}

	var entries []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("decode markets: %w", err)
	}
	raws := make([]market.RawCoin, 0, len(entries))
	for i, e := range entries {
		var r market.RawCoin
		if err := json.Unmarshal(e, &r); err != nil {
			c.logger().Warn("drop malformed market entry", zap.Int("index", i), zap.Error(err))
			continue
		}
		raws = append(raws, r)
	}
	return raws, nil
}

func (c *MarketRESTClient) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
