package store

import "sync/atomic"

// VisibilityGate 记录消费端是否可见；不可见时周期刷新被跳过。
// 零值表示可见。
type VisibilityGate struct {
	hidden atomic.Bool
}

func NewVisibilityGate() *VisibilityGate {
	return &VisibilityGate{}
}

// Visible nil gate 视为始终可见。
func (g *VisibilityGate) Visible() bool {
	if g == nil {
		return true
	}
	return !g.hidden.Load()
}

func (g *VisibilityGate) SetVisible(visible bool) {
	g.hidden.Store(!visible)
}
