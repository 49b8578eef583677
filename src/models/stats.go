package models

// MBacktestStats summarizes a session ledger at end of replay.
type MBacktestStats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalPnL    float64 `json:"total_pnl"`
	AveragePnL  float64 `json:"average_pnl"`
	PnLStdDev   float64 `json:"pnl_std_dev"`
	BestTrade   float64 `json:"best_trade"`
	WorstTrade  float64 `json:"worst_trade"`
}

// MSessionSnapshot is a read-only view of a session for the REST and gRPC surfaces.
type MSessionSnapshot struct {
	SessionID     string  `json:"session_id"`
	State         string  `json:"state"`
	Total         int     `json:"total"`
	Pointer       int     `json:"pointer"`
	Speed         float64 `json:"speed"`
	OpenPositions int     `json:"open_positions"`
	ClosedTrades  int     `json:"closed_trades"`
	LastTime      float64 `json:"last_time"`
	LastPrice     float64 `json:"last_price"`
	Viewers       int     `json:"viewers"`
}
