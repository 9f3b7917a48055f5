package market

import "time"

// Phase 同步会话的生命周期阶段。
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseActive   Phase = "active"
)

// Snapshot represents the consumer-facing view of the market store.
type Snapshot struct {
	Coins     []Coin    `json:"coins"`
	Loading   bool      `json:"loading"`
	Error     string    `json:"error,omitempty"`
	IsPolling bool      `json:"isPolling"`
	Phase     Phase     `json:"phase"`
	UpdatedAt time.Time `json:"updatedAt"`
}
