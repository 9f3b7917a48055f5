package portfolio

import "github.com/shopspring/decimal"

// Position 单条持仓的估值。缺少行情价格时按 0 计算。
type Position struct {
	Item
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
	Cost   float64 `json:"cost"`
	PnL    float64 `json:"pnl"`
	PnLPct float64 `json:"pnlPct"` // 成本为 0 时为 0
}

// Summary 全部持仓估值与合计。
type Summary struct {
	Positions  []Position `json:"positions"`
	TotalValue float64    `json:"totalValue"`
	TotalCost  float64    `json:"totalCost"`
	PnL        float64    `json:"pnl"`
	PnLPct     float64    `json:"pnlPct"`
}

// TotalValue Σ quantity * price(coinID)，缺失价格按 0。
func TotalValue(items []Item, prices map[string]float64) float64 {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(it.Quantity).Mul(decimal.NewFromFloat(prices[it.CoinID])))
	}
	f, _ := total.Float64()
	return f
}

// Valuate 逐条计算市值、成本和盈亏。
func Valuate(items []Item, prices map[string]float64) Summary {
	out := Summary{Positions: make([]Position, 0, len(items))}
	totalValue, totalCost := decimal.Zero, decimal.Zero
	for _, it := range items {
		qty := decimal.NewFromFloat(it.Quantity)
		price := prices[it.CoinID]
		value := qty.Mul(decimal.NewFromFloat(price))
		cost := qty.Mul(decimal.NewFromFloat(it.PurchasePrice))
		pnl := value.Sub(cost)

		out.Positions = append(out.Positions, Position{
			Item:   it,
			Price:  price,
			Value:  toFloat(value),
			Cost:   toFloat(cost),
			PnL:    toFloat(pnl),
			PnLPct: pct(pnl, cost),
		})
		totalValue = totalValue.Add(value)
		totalCost = totalCost.Add(cost)
	}
	pnl := totalValue.Sub(totalCost)
	out.TotalValue = toFloat(totalValue)
	out.TotalCost = toFloat(totalCost)
	out.PnL = toFloat(pnl)
	out.PnLPct = pct(pnl, totalCost)
	return out
}

func pct(pnl, cost decimal.Decimal) float64 {
	if cost.IsZero() {
		return 0
	}
	return toFloat(pnl.Div(cost).Mul(decimal.NewFromInt(100)))
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
