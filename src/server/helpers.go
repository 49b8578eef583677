package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"candle-replay/src/data_source/twelvedata"
	"candle-replay/src/models"

	"github.com/tidwall/gjson"
)

// -----------------------------------------------------------------------------

// parseLoadDataRequest reads the load_data body. Start and end may be JSON
// numbers or strings.
func parseLoadDataRequest(body []byte) (models.MLoadDataRequest, error) {
	var req models.MLoadDataRequest
	if !gjson.ValidBytes(body) {
		return req, fmt.Errorf("invalid json")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return req, fmt.Errorf("invalid json")
	}

	req.Symbol = safeString(doc, "symbol")
	req.Interval = safeString(doc, "interval")
	req.Start = safeString(doc, "start")
	req.End = safeString(doc, "end")
	req.APIKey = safeString(doc, "apikey")

	if req.Symbol == "" || req.Interval == "" || req.Start == "" || req.End == "" {
		return req, fmt.Errorf("missing fields")
	}
	return req, nil
}

// -----------------------------------------------------------------------------

// safeString returns the field as trimmed text. Zero and false read as empty.
func safeString(doc gjson.Result, key string) string {
	field := doc.Get(key)
	switch field.Type {
	case gjson.String:
		return strings.TrimSpace(field.Str)
	case gjson.Number:
		if field.Num == 0 {
			return ""
		}
		return field.Raw
	default:
		return ""
	}
}

// -----------------------------------------------------------------------------

// parseDateParam accepts an epoch timestamp in seconds or milliseconds, or a
// YYYY-MM-DD date in UTC.
func parseDateParam(v string) (time.Time, error) {
	if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
		return twelvedata.EpochToTime(ts), nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither a timestamp nor YYYY-MM-DD", v)
	}
	return t, nil
}
