package models

// Inbound command actions.
const (
	ActionLoad          = "load"
	ActionStart         = "start"
	ActionStop          = "stop"
	ActionSetSpeed      = "set_speed"
	ActionJump          = "jump"
	ActionPlaceOrder    = "place_order"
	ActionClosePosition = "close_position"
)

// MCommand is a decoded client command. Optional numeric fields are nil when
// the client left them out.
type MCommand struct {
	Action     string
	File       string
	Speed      *float64
	Index      *int
	Side       Side
	Quantity   float64
	Price      float64
	TP         *float64
	SL         *float64
	PositionID int64
}

// MLoadDataRequest is the body of POST /api/load_data.
type MLoadDataRequest struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Start    string `json:"start"`
	End      string `json:"end"`
	APIKey   string `json:"apikey"`
}
