package twelvedata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"candle-replay/src/helpers"
	"candle-replay/src/interfaces"
	"candle-replay/src/logger"
	"candle-replay/src/models"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.twelvedata.com"
	apiTimeLayout  = "2006-01-02 15:04:05"
	apiDateLayout  = "2006-01-02"

	// msThreshold separates second and millisecond epoch timestamps.
	msThreshold = 10_000_000_000
)

type TwelveDataSource struct {
	Config  *models.MConfig
	Network interfaces.INetworkManager
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewTwelveDataSource(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) *TwelveDataSource {
	return &TwelveDataSource{
		Config:  cfg,
		Network: netMgr,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

func (s *TwelveDataSource) Name() string {
	return "twelvedata"
}

// -----------------------------------------------------------------------------

// FetchSeries downloads one symbol's time series. The request's API key wins
// over the configured one.
func (s *TwelveDataSource) FetchSeries(ctx context.Context, req models.MSeriesRequest) (*models.MColumnSeries, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = s.Config.Provider.APIKey
	}
	if apiKey == "" {
		return nil, helpers.NewProviderError("no TwelveData API key configured", nil)
	}

	interval := req.Interval
	if interval == "" {
		interval = s.Config.Provider.Interval
	}

	baseURL := strings.TrimRight(s.Config.Provider.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	params := map[string]string{
		"apikey":     apiKey,
		"interval":   interval,
		"start_date": FormatAPITime(req.Start),
		"end_date":   FormatAPITime(req.End),
		"symbol":     req.Symbol,
	}

	s.Logger.Info("Fetching %s %s from %s to %s", req.Symbol, interval, params["start_date"], params["end_date"])

	body, err := s.Network.Get(ctx, baseURL+"/time_series", params)
	if err != nil {
		return nil, helpers.NewProviderError(fmt.Sprintf("time_series request for %s failed", req.Symbol), err)
	}

	series, err := ParseTimeSeries(body)
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Fetched %d candles for %s", series.Len(), req.Symbol)
	return series, nil
}

// -----------------------------------------------------------------------------

// ParseTimeSeries converts a time_series response into column form, oldest
// candle first. Volume is kept only when every row carries it.
func ParseTimeSeries(body []byte) (*models.MColumnSeries, error) {
	if !gjson.ValidBytes(body) {
		return nil, helpers.NewProviderError("TwelveData returned invalid JSON", nil)
	}
	doc := gjson.ParseBytes(body)

	if doc.Get("status").String() == "error" {
		msg := doc.Get("message").String()
		if msg == "" {
			msg = "unknown error"
		}
		return nil, helpers.NewProviderError(fmt.Sprintf("TwelveData error %d: %s", doc.Get("code").Int(), msg), nil)
	}

	values := doc.Get("values")
	if !values.IsArray() {
		return nil, helpers.NewProviderError("TwelveData response has no values", nil)
	}

	type row struct {
		ts                     int64
		open, high, low, close float64
		volume                 float64
		hasVolume              bool
	}

	var rows []row
	var parseErr error
	values.ForEach(func(_, item gjson.Result) bool {
		dt := item.Get("datetime").String()
		if dt == "" {
			return true
		}
		ts, err := ParseAPITime(dt)
		if err != nil {
			parseErr = helpers.NewProviderError(fmt.Sprintf("bad datetime %q", dt), err)
			return false
		}
		vol := item.Get("volume")
		rows = append(rows, row{
			ts:        ts.UnixMilli(),
			open:      item.Get("open").Float(),
			high:      item.Get("high").Float(),
			low:       item.Get("low").Float(),
			close:     item.Get("close").Float(),
			volume:    vol.Float(),
			hasVolume: vol.Exists(),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ts < rows[j].ts })

	series := &models.MColumnSeries{
		Time:  make([]int64, 0, len(rows)),
		Open:  make([]float64, 0, len(rows)),
		Close: make([]float64, 0, len(rows)),
		High:  make([]float64, 0, len(rows)),
		Low:   make([]float64, 0, len(rows)),
	}
	withVolume := len(rows) > 0
	for _, r := range rows {
		series.Time = append(series.Time, r.ts)
		series.Open = append(series.Open, r.open)
		series.Close = append(series.Close, r.close)
		series.High = append(series.High, r.high)
		series.Low = append(series.Low, r.low)
		withVolume = withVolume && r.hasVolume
	}
	if withVolume {
		series.Volume = make([]float64, len(rows))
		for i, r := range rows {
			series.Volume[i] = r.volume
		}
	}

	return series, nil
}

// -----------------------------------------------------------------------------
// Time helpers
// -----------------------------------------------------------------------------

// EpochToTime reads ts as seconds, or as milliseconds when it is above 1e10.
func EpochToTime(ts int64) time.Time {
	if ts > msThreshold {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// FormatAPITime renders t the way the time_series endpoint expects, in UTC.
func FormatAPITime(t time.Time) string {
	return t.UTC().Format(apiTimeLayout)
}

// ParseAPITime accepts "YYYY-MM-DD HH:MM:SS" or a bare date, in UTC.
func ParseAPITime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(apiTimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.ParseInLocation(apiDateLayout, s, time.UTC)
}
