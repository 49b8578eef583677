package backtest

import (
	"candle-replay/src/analysis/core"
	"candle-replay/src/models"

	"github.com/shopspring/decimal"
)

// ComputeStats summarizes a ledger. The bool is false for an empty ledger.
func ComputeStats(ledger []models.MClosedPosition) (models.MBacktestStats, bool) {
	if len(ledger) == 0 {
		return models.MBacktestStats{}, false
	}

	stats := models.MBacktestStats{
		TotalTrades: len(ledger),
		BestTrade:   ledger[0].PnL,
		WorstTrade:  ledger[0].PnL,
	}

	total := decimal.Zero
	pnls := make([]float64, len(ledger))
	for i, p := range ledger {
		pnls[i] = p.PnL
		total = total.Add(decimal.NewFromFloat(p.PnL))

		switch {
		case p.PnL > 0:
			stats.Wins++
		case p.PnL < 0:
			stats.Losses++
		}
		if p.PnL > stats.BestTrade {
			stats.BestTrade = p.PnL
		}
		if p.PnL < stats.WorstTrade {
			stats.WorstTrade = p.PnL
		}
	}

	stats.TotalPnL, _ = total.Float64()
	stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades) * 100
	stats.AveragePnL, stats.PnLStdDev = core.CalculateMeanStd(pnls)
	return stats, true
}
