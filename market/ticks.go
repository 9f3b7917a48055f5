package market

import (
	"math"
	"strings"
)

// FilterTicks 只保留订阅集合中的 key；全市场推送必须在客户端过滤。
func FilterTicks(batch map[string]float64, keys map[string]struct{}) map[string]float64 {
	out := make(map[string]float64)
	for k, p := range batch {
		if _, ok := keys[k]; ok {
			out[k] = p
		}
	}
	return out
}

// ApplyTicks 将一批 key->price 合并到资产列表，返回新切片与被更新的资产数。
// 只替换匹配资产的 CurrentPrice；未匹配的 key 静默忽略。
// 合并与顺序无关且幂等，入参切片不会被修改。
func ApplyTicks(coins []Coin, ticks map[string]float64, quote string) ([]Coin, int) {
	if len(ticks) == 0 || len(coins) == 0 {
		return coins, 0
	}
	var out []Coin
	updated := 0
	for i, c := range coins {
		p, ok := tickPrice(c, ticks, quote)
		if !ok {
			continue
		}
		if out == nil {
			out = CloneCoins(coins)
		}
		out[i].CurrentPrice = p
		updated++
	}
	if out == nil {
		return coins, 0
	}
	return out, updated
}

// MatchTicks 返回 batch 中能匹配到资产的 coinID 集合。
func MatchTicks(coins []Coin, ticks map[string]float64, quote string) []string {
	var ids []string
	for _, c := range coins {
		if _, ok := tickPrice(c, ticks, quote); ok {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// tickPrice ApplyTicks 与 MatchTicks 共用的匹配规则。
func tickPrice(c Coin, ticks map[string]float64, quote string) (float64, bool) {
	if strings.TrimSpace(c.Symbol) == "" {
		return 0, false
	}
	p, ok := ticks[c.Key(quote)]
	if !ok || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, false
	}
	return p, true
}
