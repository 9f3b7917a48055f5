package market

import (
	"math"
	"strings"
)

// RawCoin 对应行情 REST 接口返回的单条记录（snake_case 字段）。
// JSON 中的 null 会保留零值。
type RawCoin struct {
	ID                       string        `json:"id"`
	Symbol                   string        `json:"symbol"`
	Name                     string        `json:"name"`
	Image                    string        `json:"image"`
	CurrentPrice             float64       `json:"current_price"`
	MarketCap                float64       `json:"market_cap"`
	MarketCapRank            int           `json:"market_cap_rank"`
	PriceChangePercentage24h float64       `json:"price_change_percentage_24h"`
	TotalVolume              float64       `json:"total_volume"`
	High24h                  float64       `json:"high_24h"`
	Low24h                   float64       `json:"low_24h"`
	SparklineIn7d            *RawSparkline `json:"sparkline_in_7d"`
}

// RawSparkline 嵌套的 7 日价格序列。
type RawSparkline struct {
	Price []float64 `json:"price"`
}

// NormalizeCoin 把接口记录映射为内部模型。
// 缺失的嵌套字段置空，非有限数值置 0；没有 ID 的记录返回 ok=false。
func NormalizeCoin(raw RawCoin) (Coin, bool) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return Coin{}, false
	}
	prices := []float64{}
	if raw.SparklineIn7d != nil {
		prices = make([]float64, 0, len(raw.SparklineIn7d.Price))
		for _, p := range raw.SparklineIn7d.Price {
			prices = append(prices, finite(p))
		}
	}
	rank := raw.MarketCapRank
	if rank < 0 {
		rank = 0
	}
	return Coin{
		ID:                       id,
		Symbol:                   strings.TrimSpace(raw.Symbol),
		Name:                     raw.Name,
		Image:                    raw.Image,
		CurrentPrice:             finite(raw.CurrentPrice),
		MarketCap:                finite(raw.MarketCap),
		MarketCapRank:            rank,
		PriceChangePercentage24h: finite(raw.PriceChangePercentage24h),
		TotalVolume:              finite(raw.TotalVolume),
		High24h:                  finite(raw.High24h),
		Low24h:                   finite(raw.Low24h),
		SparklineIn7d:            Sparkline{Price: prices},
	}, true
}

// NormalizeCoins 批量映射；丢弃无 ID 的记录，同一 ID 只保留第一条。
// 空输入返回空切片（非 nil）。
func NormalizeCoins(raws []RawCoin) []Coin {
	out := make([]Coin, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for _, r := range raws {
		c, ok := NormalizeCoin(r)
		if !ok {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
