package models

import "time"

// MCandle is one OHLC bar. Time is in seconds.
type MCandle struct {
	Time  float64 `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// MColumnSeries is the column-oriented shape written by the data provider.
// Time values are epoch milliseconds.
type MColumnSeries struct {
	Time   []int64   `json:"time"`
	Open   []float64 `json:"open"`
	Close  []float64 `json:"close"`
	High   []float64 `json:"high"`
	Low    []float64 `json:"low"`
	Volume []float64 `json:"volume,omitempty"`
}

// Len returns the number of rows in the series.
func (s *MColumnSeries) Len() int {
	return len(s.Time)
}

// MSeriesRequest asks a data provider for one symbol over [Start, End].
type MSeriesRequest struct {
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
	APIKey   string
}
