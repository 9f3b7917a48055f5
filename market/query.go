package market

import "strings"

// DefaultPageSize 行情列表每页条数。
const DefaultPageSize = 10

// Search 按名称或 symbol 做不区分大小写的子串匹配，空查询返回全部。
func Search(coins []Coin, query string) []Coin {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return CloneCoins(coins)
	}
	out := make([]Coin, 0, len(coins))
	for _, c := range coins {
		if strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Symbol), q) {
			out = append(out, c)
		}
	}
	return out
}

// Paginate 返回第 page 页（从 1 开始）及总页数。越界的页返回空切片。
func Paginate(coins []Coin, page, size int) ([]Coin, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := (len(coins) + size - 1) / size
	if page < 1 || page > pages {
		return []Coin{}, pages
	}
	start := (page - 1) * size
	end := start + size
	if end > len(coins) {
		end = len(coins)
	}
	return CloneCoins(coins[start:end]), pages
}
