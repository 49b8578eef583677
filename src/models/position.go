package models

// Side of a simulated position.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ExitReason tells how a position left the book.
type ExitReason string

const (
	ExitManual ExitReason = "Manual"
	ExitTP     ExitReason = "TP"
	ExitSL     ExitReason = "SL"
)

// MPosition is an open simulated position. TP and SL are nil when absent.
type MPosition struct {
	ID         int64    `json:"id"`
	Side       Side     `json:"side"`
	Quantity   float64  `json:"quantity"`
	EntryPrice float64  `json:"entry_price"`
	TP         *float64 `json:"tp"`
	SL         *float64 `json:"sl"`
	OpenedAt   float64  `json:"opened_at"`
}

// Direction is +1 for longs and -1 for shorts.
func (p MPosition) Direction() float64 {
	if p.Side == SideBuy {
		return 1
	}
	return -1
}

// MClosedPosition is an immutable ledger entry.
type MClosedPosition struct {
	MPosition
	ExitPrice  float64    `json:"exit_price"`
	ExitTime   float64    `json:"exit_time"`
	ExitReason ExitReason `json:"exit_reason"`
	PnL        float64    `json:"pnl"`
}
