package backtest

import (
	"math"
	"strconv"
	"strings"

	"candle-replay/src/helpers"
	"candle-replay/src/models"

	"github.com/tidwall/gjson"
)

// maxIndex bounds jump targets before the int conversion.
const maxIndex = 1 << 53

// -----------------------------------------------------------------------------

// DecodeCommand parses one inbound websocket message. Numeric fields accept JSON
// numbers or numeric strings. Unknown actions decode without error and are
// ignored by the session.
func DecodeCommand(raw []byte) (models.MCommand, error) {
	var cmd models.MCommand
	if !gjson.ValidBytes(raw) {
		return cmd, helpers.NewCommandError("malformed command: not valid JSON")
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return cmd, helpers.NewCommandError("malformed command: expected a JSON object")
	}

	cmd.Action = parsed.Get("action").String()
	var err error

	switch cmd.Action {
	case models.ActionLoad:
		cmd.File = strings.TrimSpace(parsed.Get("file").String())

	case models.ActionSetSpeed:
		cmd.Speed, err = optionalNumber(parsed, "speed")

	case models.ActionJump:
		var idx *float64
		if idx, err = optionalNumber(parsed, "index"); err == nil && idx != nil {
			v := int(math.Max(-maxIndex, math.Min(maxIndex, math.Trunc(*idx))))
			cmd.Index = &v
		}

	case models.ActionPlaceOrder:
		err = decodeOrder(parsed, &cmd)

	case models.ActionClosePosition:
		var id *float64
		if id, err = optionalNumber(parsed, "position_id"); err == nil {
			switch {
			case id == nil:
				err = helpers.NewCommandError("position_id is required")
			case *id != math.Trunc(*id) || math.Abs(*id) > maxIndex:
				err = helpers.NewCommandError("position_id must be an integer, got %v", *id)
			default:
				cmd.PositionID = int64(*id)
			}
		}
	}

	if err != nil {
		return models.MCommand{Action: cmd.Action}, err
	}
	return cmd, nil
}

// -----------------------------------------------------------------------------

func decodeOrder(parsed gjson.Result, cmd *models.MCommand) error {
	switch side := strings.ToLower(strings.TrimSpace(parsed.Get("side").String())); side {
	case string(models.SideBuy), string(models.SideSell):
		cmd.Side = models.Side(side)
	default:
		return helpers.NewCommandError("side must be buy or sell, got %q", side)
	}

	qty, err := optionalNumber(parsed, "quantity")
	if err != nil {
		return err
	}
	if qty == nil || *qty <= 0 {
		return helpers.NewCommandError("quantity must be a positive number")
	}
	cmd.Quantity = *qty

	price, err := optionalNumber(parsed, "price")
	if err != nil {
		return err
	}
	if price == nil {
		return helpers.NewCommandError("price is required")
	}
	cmd.Price = *price

	if cmd.TP, err = bracketLevel(parsed, "tp"); err != nil {
		return err
	}
	if cmd.SL, err = bracketLevel(parsed, "sl"); err != nil {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// bracketLevel treats null, "", and 0 as an absent level.
func bracketLevel(parsed gjson.Result, key string) (*float64, error) {
	field := parsed.Get(key)
	if field.Type == gjson.String && strings.TrimSpace(field.Str) == "" {
		return nil, nil
	}
	v, err := optionalNumber(parsed, key)
	if err != nil || v == nil || *v == 0 {
		return nil, err
	}
	return v, nil
}

// -----------------------------------------------------------------------------

// optionalNumber returns nil when the field is missing or null.
func optionalNumber(parsed gjson.Result, key string) (*float64, error) {
	field := parsed.Get(key)
	if !field.Exists() || field.Type == gjson.Null {
		return nil, nil
	}

	var v float64
	switch field.Type {
	case gjson.Number:
		v = field.Num
	case gjson.String:
		parsedVal, err := strconv.ParseFloat(strings.TrimSpace(field.Str), 64)
		if err != nil {
			return nil, helpers.NewCommandError("%s must be a number, got %q", key, field.Str)
		}
		v = parsedVal
	default:
		return nil, helpers.NewCommandError("%s must be a number, got %s", key, field.Raw)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, helpers.NewCommandError("%s must be a finite number", key)
	}
	return &v, nil
}
