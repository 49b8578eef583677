package backtest

import (
	"candle-replay/src/models"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

// PositionBook holds the open positions of a session and its closed-trade ledger.
// It is not safe for concurrent use; the owning Session serializes access.
type PositionBook struct {
	open   []models.MPosition
	ledger []models.MClosedPosition
	nextID int64
}

// -----------------------------------------------------------------------------

func NewPositionBook() *PositionBook {
	return &PositionBook{nextID: 1}
}

// -----------------------------------------------------------------------------

// Open records a new position. Bracket levels are not checked against the entry
// price, so a bracket may already be in range and close on the next candle.
func (b *PositionBook) Open(side models.Side, quantity, price float64, tp, sl *float64, openedAt float64) models.MPosition {
	pos := models.MPosition{
		ID:         b.nextID,
		Side:       side,
		Quantity:   quantity,
		EntryPrice: price,
		TP:         tp,
		SL:         sl,
		OpenedAt:   openedAt,
	}
	b.nextID++
	b.open = append(b.open, pos)
	return pos
}

// -----------------------------------------------------------------------------

// CloseManual closes id at the given price. The bool is false when id is not open.
func (b *PositionBook) CloseManual(id int64, price, at float64) (models.MClosedPosition, bool) {
	for i, pos := range b.open {
		if pos.ID != id {
			continue
		}
		closed := closePosition(pos, price, at, models.ExitManual)
		b.ledger = append(b.ledger, closed)
		b.open = append(b.open[:i], b.open[i+1:]...)
		return closed, true
	}
	return models.MClosedPosition{}, false
}

// -----------------------------------------------------------------------------

// Evaluate applies every open bracket to the candle and returns the positions it
// closed, in the order they were opened.
func (b *PositionBook) Evaluate(candle models.MCandle) []models.MClosedPosition {
	var hits []models.MClosedPosition
	remaining := b.open[:0]

	for _, pos := range b.open {
		exit, reason, hit := checkBracket(pos, candle)
		if !hit {
			remaining = append(remaining, pos)
			continue
		}
		closed := closePosition(pos, exit, candle.Time, reason)
		b.ledger = append(b.ledger, closed)
		hits = append(hits, closed)
	}

	// clear the tail so dropped positions are not retained by the backing array
	for i := len(remaining); i < len(b.open); i++ {
		b.open[i] = models.MPosition{}
	}
	b.open = remaining
	return hits
}

// -----------------------------------------------------------------------------

// checkBracket tests TP before SL. OHLC carries no intrabar order, so when both
// levels fall inside one candle the take-profit wins.
func checkBracket(pos models.MPosition, c models.MCandle) (float64, models.ExitReason, bool) {
	if pos.Side == models.SideBuy {
		if pos.TP != nil && c.High >= *pos.TP {
			return *pos.TP, models.ExitTP, true
		}
		if pos.SL != nil && c.Low <= *pos.SL {
			return *pos.SL, models.ExitSL, true
		}
		return 0, "", false
	}

	if pos.TP != nil && c.Low <= *pos.TP {
		return *pos.TP, models.ExitTP, true
	}
	if pos.SL != nil && c.High >= *pos.SL {
		return *pos.SL, models.ExitSL, true
	}
	return 0, "", false
}

// -----------------------------------------------------------------------------

func closePosition(pos models.MPosition, exit, at float64, reason models.ExitReason) models.MClosedPosition {
	return models.MClosedPosition{
		MPosition:  pos,
		ExitPrice:  exit,
		ExitTime:   at,
		ExitReason: reason,
		PnL:        ComputePnL(pos, exit),
	}
}

// ComputePnL returns (exit - entry) * quantity, sign-flipped for shorts.
func ComputePnL(pos models.MPosition, exit float64) float64 {
	pnl := decimal.NewFromFloat(exit).
		Sub(decimal.NewFromFloat(pos.EntryPrice)).
		Mul(decimal.NewFromFloat(pos.Quantity)).
		Mul(decimal.NewFromFloat(pos.Direction()))
	f, _ := pnl.Float64()
	return f
}

// -----------------------------------------------------------------------------

// OpenPositions returns a copy of the open set.
func (b *PositionBook) OpenPositions() []models.MPosition {
	out := make([]models.MPosition, len(b.open))
	copy(out, b.open)
	return out
}

// Ledger returns a copy of the closed positions.
func (b *PositionBook) Ledger() []models.MClosedPosition {
	out := make([]models.MClosedPosition, len(b.ledger))
	copy(out, b.ledger)
	return out
}
