package models

// -----------------------------------------------------------------------------
// Outbound events. Lifecycle replies carry "status", trading events carry "type".
// -----------------------------------------------------------------------------

const (
	StatusConnected      = "connected"
	StatusLoaded         = "loaded"
	StatusStarted        = "started"
	StatusAlreadyRunning = "already_running"
	StatusStopped        = "stopped"
	StatusSpeedChanged   = "speed_changed"
	StatusJumped         = "jumped"
	StatusError          = "error"

	TypeOrderPlaced          = "order_placed"
	TypePositionClosedManual = "position_closed_manual"
	TypePositionClosed       = "position_closed"
	TypePositionHit          = "position_hit"
	TypeCandle               = "candle"
	TypeBacktestStats        = "backtest_stats"
)

type MStatusEvent struct {
	Status string `json:"status"`
}

type MConnectedEvent struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	ReadOnly  bool   `json:"read_only,omitempty"`
}

type MLoadedEvent struct {
	Status string `json:"status"`
	Total  int    `json:"total"`
}

type MSpeedChangedEvent struct {
	Status string  `json:"status"`
	Speed  float64 `json:"speed"`
}

type MJumpedEvent struct {
	Status  string `json:"status"`
	Pointer int    `json:"pointer"`
}

type MErrorEvent struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type MOrderPlacedEvent struct {
	Type     string    `json:"type"`
	Position MPosition `json:"position"`
}

type MPositionClosedManualEvent struct {
	Type       string  `json:"type"`
	PositionID int64   `json:"position_id"`
	ExitPrice  float64 `json:"exit_price"`
	PnL        float64 `json:"pnl"`
}

type MPositionClosedEvent struct {
	Type       string `json:"type"`
	PositionID int64  `json:"position_id"`
}

type MPositionHitEvent struct {
	Type       string     `json:"type"`
	PositionID int64      `json:"position_id"`
	Reason     ExitReason `json:"reason"`
	ExitPrice  float64    `json:"exit_price"`
	PnL        float64    `json:"pnl"`
}

type MCandleEvent struct {
	Type string  `json:"type"`
	Data MCandle `json:"data"`
}

type MBacktestStatsEvent struct {
	Type  string         `json:"type"`
	Stats MBacktestStats `json:"stats"`
}

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewStatusEvent(status string) MStatusEvent {
	return MStatusEvent{Status: status}
}

func NewErrorEvent(message string) MErrorEvent {
	return MErrorEvent{Status: StatusError, Message: message}
}
