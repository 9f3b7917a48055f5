package portfolio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNotFound 持仓不存在。
	ErrNotFound = errors.New("portfolio item not found")
	// ErrInvalidItem 持仓参数不合法。
	ErrInvalidItem = errors.New("invalid portfolio item")
)

// Item 一条持仓记录。CoinID 对应行情中的资产 ID，例如 bitcoin。
type Item struct {
	ID            string  `json:"id" yaml:"id" validate:"required,uuid"`
	CoinID        string  `json:"coinId" yaml:"coinId" validate:"required"`
	Quantity      float64 `json:"quantity" yaml:"quantity" validate:"gt=0"`
	PurchasePrice float64 `json:"purchasePrice" yaml:"purchasePrice" validate:"gte=0"`
}

// NewItem 新增持仓的入参，ID 由 Ledger 分配。
type NewItem struct {
	CoinID        string  `json:"coinId" validate:"required"`
	Quantity      float64 `json:"quantity" validate:"gt=0"`
	PurchasePrice float64 `json:"purchasePrice" validate:"gte=0"`
}

var validate = validator.New()

// Validate 校验入参，错误包装 ErrInvalidItem。
func (n NewItem) Validate() error {
	n.CoinID = strings.TrimSpace(n.CoinID)
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return nil
}

func (i Item) Validate() error {
	if err := validate.Struct(i); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return nil
}
