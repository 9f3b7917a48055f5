package portfolio

import (
	"fmt"
	"strings"
	"sync"

	"coinwatch-go/monitor/logschema"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventSink 接收持仓变更事件。
type EventSink func(string, map[string]interface{})

// Ledger 维护持仓列表，每次变更都同步写入 Store。
// 写入失败时回滚内存状态并返回错误。
type Ledger struct {
	mu     sync.RWMutex
	items  []Item
	store  Store
	logger *zap.Logger
	sink   EventSink
}

// NewLedger 从 store 加载已有持仓；store 为 nil 时只保存在内存。
func NewLedger(store Store, logger *zap.Logger, sink EventSink) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{items: []Item{}, store: store, logger: logger, sink: sink}
	if store == nil {
		return l, nil
	}
	items, err := store.Load()
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			logger.Warn("skip invalid portfolio item", zap.String("id", it.ID), zap.Error(err))
			continue
		}
		l.items = append(l.items, it)
	}
	return l, nil
}

// Add 校验并新增一条持仓，分配 UUID。
func (l *Ledger) Add(n NewItem) (Item, error) {
	if err := n.Validate(); err != nil {
		return Item{}, err
	}
	item := Item{
		ID:            uuid.NewString(),
		CoinID:        strings.TrimSpace(n.CoinID),
		Quantity:      n.Quantity,
		PurchasePrice: n.PurchasePrice,
	}

	l.mu.Lock()
	next := append(cloneItems(l.items), item)
	if err := l.persist(next); err != nil {
		l.mu.Unlock()
		return Item{}, err
	}
	l.items = next
	l.mu.Unlock()

	l.logEvent("add", item)
	return item, nil
}

// Remove 删除指定持仓，不存在时返回 ErrNotFound。
func (l *Ledger) Remove(id string) error {
	l.mu.Lock()
	idx := -1
	for i, it := range l.items {
		if it.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	removed := l.items[idx]
	next := make([]Item, 0, len(l.items)-1)
	next = append(next, l.items[:idx]...)
	next = append(next, l.items[idx+1:]...)
	if err := l.persist(next); err != nil {
		l.mu.Unlock()
		return err
	}
	l.items = next
	l.mu.Unlock()

	l.logEvent("remove", removed)
	return nil
}

// Clear 清空全部持仓并写入空列表。写入失败时保留原有持仓。
func (l *Ledger) Clear() error {
	l.mu.Lock()
	removed := l.items
	if err := l.persist([]Item{}); err != nil {
		l.mu.Unlock()
		return err
	}
	l.items = []Item{}
	l.mu.Unlock()

	for _, it := range removed {
		l.logEvent("clear", it)
	}
	return nil
}

// Items 返回副本，按添加顺序。
func (l *Ledger) Items() []Item {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneItems(l.items)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// TotalValue 以给定价格计算总市值。
func (l *Ledger) TotalValue(prices map[string]float64) float64 {
	return TotalValue(l.Items(), prices)
}

func (l *Ledger) Valuate(prices map[string]float64) Summary {
	return Valuate(l.Items(), prices)
}

func (l *Ledger) persist(items []Item) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.Save(items); err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}

func (l *Ledger) logEvent(action string, it Item) {
	l.logger.Info("portfolio changed",
		zap.String("action", action),
		zap.String("id", it.ID),
		zap.String("coinId", it.CoinID),
		zap.Float64("quantity", it.Quantity))
	if l.sink == nil {
		return
	}
	l.sink(logschema.EventPortfolioChange, map[string]interface{}{
		"action": action,
		"id":     it.ID,
		"coinId": it.CoinID,
	})
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
