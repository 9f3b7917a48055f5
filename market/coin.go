package market

import (
	"sort"
	"strings"
)

// DefaultQuoteAsset 行情流订阅使用的计价币种。
const DefaultQuoteAsset = "USDT"

// Coin 是同步核心维护的单个资产。
// 只有 CurrentPrice 会被 tick 修改，其余字段仅由快照刷新写入。
type Coin struct {
	ID                       string    `json:"id"`
	Symbol                   string    `json:"symbol"`
	Name                     string    `json:"name"`
	Image                    string    `json:"image"`
	CurrentPrice             float64   `json:"currentPrice"`
	MarketCap                float64   `json:"marketCap"`
	MarketCapRank            int       `json:"marketCapRank"`
	PriceChangePercentage24h float64   `json:"priceChangePercentage24h"`
	TotalVolume              float64   `json:"totalVolume"`
	High24h                  float64   `json:"high24h"`
	Low24h                   float64   `json:"low24h"`
	SparklineIn7d            Sparkline `json:"sparklineIn7d"`
}

// Sparkline 7 日价格序列，写入后只读。
type Sparkline struct {
	Price []float64 `json:"price"`
}

// SubscriptionKey 计算行情流的订阅 key，例如 btc -> BTCUSDT。
func SubscriptionKey(symbol, quote string) string {
	if quote == "" {
		quote = DefaultQuoteAsset
	}
	return strings.ToUpper(strings.TrimSpace(symbol)) + strings.ToUpper(quote)
}

// Key 返回该资产的订阅 key。
func (c Coin) Key(quote string) string {
	return SubscriptionKey(c.Symbol, quote)
}

// SubscriptionKeys 根据当前资产列表生成订阅集合；空 symbol 被忽略。
func SubscriptionKeys(coins []Coin, quote string) map[string]struct{} {
	keys := make(map[string]struct{}, len(coins))
	for _, c := range coins {
		if strings.TrimSpace(c.Symbol) == "" {
			continue
		}
		keys[c.Key(quote)] = struct{}{}
	}
	return keys
}

// CloneCoins 复制资产切片。Sparkline 只读，共享底层数组。
func CloneCoins(coins []Coin) []Coin {
	out := make([]Coin, len(coins))
	copy(out, coins)
	return out
}

// SortByRank 按市值排名升序返回副本，排名为 0（未知）的排在最后。
func SortByRank(coins []Coin) []Coin {
	out := CloneCoins(coins)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].MarketCapRank, out[j].MarketCapRank
		if ri == 0 || rj == 0 {
			return ri != 0 && rj == 0
		}
		return ri < rj
	})
	return out
}

// PriceMap 生成 coinID -> 当前价格 的映射，供持仓估值使用。
func PriceMap(coins []Coin) map[string]float64 {
	prices := make(map[string]float64, len(coins))
	for _, c := range coins {
		prices[c.ID] = c.CurrentPrice
	}
	return prices
}

// Find 按 ID 查找资产。
func Find(coins []Coin, id string) (Coin, bool) {
	for _, c := range coins {
		if c.ID == id {
			return c, true
		}
	}
	return Coin{}, false
}
