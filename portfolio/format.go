package portfolio

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney 按币种格式化金额，例如 FormatMoney(1234.5, "USD") -> "$1,234.50"。
// 未知币种退化为两位小数。
func FormatMoney(amount float64, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return decimal.NewFromFloat(amount).StringFixed(2)
	}
	factor, _ := decimal.NewFromInt(10).PowInt32(int32(cur.Fraction))
	minor := decimal.NewFromFloat(amount).Mul(factor).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}

// FormatUSD 行情与持仓默认以美元展示。
func FormatUSD(amount float64) string {
	return FormatMoney(amount, money.USD)
}
