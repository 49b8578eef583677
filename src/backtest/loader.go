package backtest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"candle-replay/src/helpers"
	"candle-replay/src/models"

	"github.com/tidwall/gjson"
)

// columnKeys are the arrays a column-oriented source must carry.
var columnKeys = []string{"time", "open", "high", "low", "close"}

// -----------------------------------------------------------------------------

// LoadCandles normalizes a candle source into rows.
//
// Two shapes are accepted: a column object holding parallel time/open/high/low/close
// arrays with time in milliseconds, or a list of candle objects. Column times are
// divided by 1000; row times are taken as already being in seconds. Ordering and
// price ranges are not validated.
func LoadCandles(raw []byte) ([]models.MCandle, error) {
	if !gjson.ValidBytes(raw) {
		return nil, helpers.NewDataFormatError("candle source is not valid JSON", nil)
	}

	parsed := gjson.ParseBytes(raw)
	switch {
	case parsed.IsObject() && parsed.Get("time").Exists():
		return loadColumns(parsed)
	case parsed.IsArray():
		return loadRows(parsed)
	default:
		return nil, helpers.NewDataFormatError("candle source must be an object with a time column or a list of candles", nil)
	}
}

// -----------------------------------------------------------------------------

func loadColumns(parsed gjson.Result) ([]models.MCandle, error) {
	columns := make(map[string][]gjson.Result, len(columnKeys))
	for _, key := range columnKeys {
		col := parsed.Get(key)
		if !col.IsArray() {
			return nil, helpers.NewDataFormatError(fmt.Sprintf("column %q is missing or not a list", key), nil)
		}
		columns[key] = col.Array()
	}

	n := len(columns["time"])
	for _, key := range columnKeys[1:] {
		if len(columns[key]) < n {
			return nil, helpers.NewDataFormatError(fmt.Sprintf("column %q has %d values, time has %d", key, len(columns[key]), n), nil)
		}
	}

	candles := make([]models.MCandle, n)
	for i := 0; i < n; i++ {
		var vals [5]float64
		for k, key := range columnKeys {
			v, err := columnNumber(columns[key][i])
			if err != nil {
				return nil, helpers.NewDataFormatError(fmt.Sprintf("%s[%d]", key, i), err)
			}
			vals[k] = v
		}
		candles[i] = models.MCandle{
			Time:  vals[0] / 1000,
			Open:  vals[1],
			High:  vals[2],
			Low:   vals[3],
			Close: vals[4],
		}
	}
	return candles, nil
}

// -----------------------------------------------------------------------------

func loadRows(parsed gjson.Result) ([]models.MCandle, error) {
	rows := parsed.Array()
	candles := make([]models.MCandle, 0, len(rows))

	for i, row := range rows {
		if !row.IsObject() {
			return nil, helpers.NewDataFormatError(fmt.Sprintf("row %d is not a candle object", i), nil)
		}
		var vals [5]float64
		for k, key := range columnKeys {
			field := row.Get(key)
			if !field.Exists() {
				continue
			}
			v, err := columnNumber(field)
			if err != nil {
				return nil, helpers.NewDataFormatError(fmt.Sprintf("row %d field %q", i, key), err)
			}
			vals[k] = v
		}
		candles = append(candles, models.MCandle{
			Time:  vals[0],
			Open:  vals[1],
			High:  vals[2],
			Low:   vals[3],
			Close: vals[4],
		})
	}
	return candles, nil
}

// -----------------------------------------------------------------------------

// columnNumber reads a JSON number or a numeric string.
func columnNumber(r gjson.Result) (float64, error) {
	switch r.Type {
	case gjson.Number:
		if math.IsInf(r.Num, 0) {
			return 0, fmt.Errorf("number out of range: %s", r.Raw)
		}
		return r.Num, nil
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("not a number: %q", r.Str)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("not a number: %s", r.Raw)
	}
}
