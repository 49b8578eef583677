package backtest

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"candle-replay/src/logger"
	"candle-replay/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type recorder struct {
	mu     sync.Mutex
	events []interface{}
}

func (r *recorder) Send(event interface{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return true
}

func (r *recorder) Publish(group string, event interface{}) {
	r.Send(event)
}

func (r *recorder) all() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]interface{}, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) last() interface{} {
	events := r.all()
	if len(events) == 0 {
		return nil
	}
	return events[len(events)-1]
}

func (r *recorder) count(match func(interface{}) bool) int {
	n := 0
	for _, e := range r.all() {
		if match(e) {
			n++
		}
	}
	return n
}

func isCandle(e interface{}) bool {
	_, ok := e.(models.MCandleEvent)
	return ok
}

func isStats(e interface{}) bool {
	_, ok := e.(models.MBacktestStatsEvent)
	return ok
}

func isStatus(status string) func(interface{}) bool {
	return func(e interface{}) bool {
		s, ok := e.(models.MStatusEvent)
		return ok && s.Status == status
	}
}

func isError(e interface{}) bool {
	_, ok := e.(models.MErrorEvent)
	return ok
}

type memorySource map[string][]byte

func (m memorySource) ReadSource(name string) ([]byte, string, error) {
	raw, ok := m[name]
	if !ok {
		return nil, "", os.ErrNotExist
	}
	return raw, "mem://" + name, nil
}

func (m memorySource) WriteSeries(name string, series *models.MColumnSeries) (string, error) {
	return "", errors.New("read-only source")
}

type fakeLedger struct {
	mu    sync.Mutex
	saves [][]models.MClosedPosition
	err   error
}

func (f *fakeLedger) Initialize() error { return nil }
func (f *fakeLedger) Close() error      { return nil }

func (f *fakeLedger) SaveLedger(ctx context.Context, sessionID string, ledger []models.MClosedPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, ledger)
	return f.err
}

func (f *fakeLedger) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

// -----------------------------------------------------------------------------

const (
	twoCandles = `[
		{"time": 1, "open": 100, "high": 105, "low": 99, "close": 101},
		{"time": 2, "open": 101, "high": 111, "low": 96, "close": 108}
	]`
	fiveCandles = `{
		"time":  [1000, 2000, 3000, 4000, 5000],
		"open":  [1, 2, 3, 4, 5],
		"high":  [1, 2, 3, 4, 5],
		"low":   [1, 2, 3, 4, 5],
		"close": [1, 2, 3, 4, 5]
	}`
)

func newTestSession(t *testing.T, ledger *fakeLedger) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts := SessionOptions{
		ID:          "test-session",
		DefaultFile: "five.json",
		Source: memorySource{
			"two.json":  []byte(twoCandles),
			"five.json": []byte(fiveCandles),
			"bad.json":  []byte(`{"open": [1]}`),
		},
		Sink:      rec,
		Publisher: rec,
		Logger:    logger.NewLoggerWithWriter(io.Discard, "Session", "DEBUG"),
	}
	if ledger != nil {
		opts.Ledger = ledger
	}
	s := NewSession(opts)
	t.Cleanup(s.Close)
	return s, rec
}

func send(s *Session, raw string) {
	s.HandleMessage([]byte(raw))
}

func waitFinished(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Snapshot().State == string(StateFinished)
	}, 2*time.Second, 5*time.Millisecond)
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestSession_LoadReportsTotalAndResetsCursor(t *testing.T) {
	s, rec := newTestSession(t, nil)

	send(s, `{"action": "load"}`)
	assert.Equal(t, models.MLoadedEvent{Status: models.StatusLoaded, Total: 5}, rec.last())

	send(s, `{"action": "jump", "index": 3}`)
	send(s, `{"action": "load", "file": "two.json"}`)
	assert.Equal(t, models.MLoadedEvent{Status: models.StatusLoaded, Total: 2}, rec.last())

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Pointer)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, string(StateLoaded), snap.State)
}

func TestSession_FailedLoadKeepsPreviousData(t *testing.T) {
	s, rec := newTestSession(t, nil)

	send(s, `{"action": "load", "file": "two.json"}`)
	send(s, `{"action": "load", "file": "bad.json"}`)
	assert.True(t, isError(rec.last()))

	send(s, `{"action": "load", "file": "missing.json"}`)
	assert.True(t, isError(rec.last()))

	assert.Equal(t, 2, s.Snapshot().Total)
}

func TestSession_JumpClamps(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		index string
		want  int
	}{
		{"inside", "five.json", "2", 2},
		{"negative", "five.json", "-4", 0},
		{"past end", "five.json", "99", 4},
		{"fractional", "five.json", "3.7", 3},
		{"nothing loaded", "", "3", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec := newTestSession(t, nil)
			if tt.file != "" {
				send(s, `{"action": "load", "file": "`+tt.file+`"}`)
			}
			send(s, `{"action": "jump", "index": `+tt.index+`}`)

			assert.Equal(t, models.MJumpedEvent{Status: models.StatusJumped, Pointer: tt.want}, rec.last())
			assert.Equal(t, tt.want, s.Snapshot().Pointer)
		})
	}
}

func TestSession_DoubleStartRunsOneReplay(t *testing.T) {
	s, rec := newTestSession(t, nil)
	send(s, `{"action": "load"}`)
	send(s, `{"action": "set_speed", "speed": 20}`)

	send(s, `{"action": "start"}`)
	send(s, `{"action": "start"}`)
	waitFinished(t, s)

	assert.Equal(t, 1, rec.count(isStatus(models.StatusStarted)))
	assert.Equal(t, 1, rec.count(isStatus(models.StatusAlreadyRunning)))
	assert.Equal(t, 5, rec.count(isCandle))
}

func TestSession_ReplayStreamsCandlesInOrder(t *testing.T) {
	s, rec := newTestSession(t, nil)
	send(s, `{"action": "load"}`)
	send(s, `{"action": "set_speed", "speed": 1000}`)
	send(s, `{"action": "jump", "index": 2}`)
	send(s, `{"action": "start"}`)
	waitFinished(t, s)

	var times []float64
	for _, e := range rec.all() {
		if c, ok := e.(models.MCandleEvent); ok {
			times = append(times, c.Data.Time)
		}
	}
	assert.Equal(t, []float64{3, 4, 5}, times)
	assert.False(t, s.IsRunning())
}

func TestSession_BracketHitPrecedesCandle(t *testing.T) {
	ledger := &fakeLedger{}
	s, rec := newTestSession(t, ledger)
	send(s, `{"action": "load", "file": "two.json"}`)
	send(s, `{"action": "place_order", "side": "buy", "quantity": 1, "price": 100, "tp": 110, "sl": 95}`)
	send(s, `{"action": "set_speed", "speed": 1000}`)
	send(s, `{"action": "start"}`)
	waitFinished(t, s)

	events := rec.all()
	var kinds []string
	for _, e := range events {
		switch ev := e.(type) {
		case models.MCandleEvent:
			kinds = append(kinds, "candle")
		case models.MPositionHitEvent:
			kinds = append(kinds, "hit")
			assert.Equal(t, models.ExitTP, ev.Reason)
			assert.Equal(t, 110.0, ev.ExitPrice)
			assert.Equal(t, 10.0, ev.PnL)
		case models.MBacktestStatsEvent:
			kinds = append(kinds, "stats")
			assert.Equal(t, 1, ev.Stats.TotalTrades)
			assert.Equal(t, 100.0, ev.Stats.WinRate)
			assert.Equal(t, 10.0, ev.Stats.TotalPnL)
		}
	}
	assert.Equal(t, []string{"candle", "hit", "candle", "stats"}, kinds)

	require.Equal(t, 1, ledger.saveCount())
	assert.Len(t, ledger.saves[0], 1)
}

func TestSession_StatsOnlyWithClosedTrades(t *testing.T) {
	ledger := &fakeLedger{}
	s, rec := newTestSession(t, ledger)
	send(s, `{"action": "load"}`)
	send(s, `{"action": "set_speed", "speed": 1000}`)
	send(s, `{"action": "start"}`)
	waitFinished(t, s)

	assert.Equal(t, 0, rec.count(isStats))
	assert.Equal(t, 1, ledger.saveCount())
}

func TestSession_StatsSurviveLedgerFailure(t *testing.T) {
	ledger := &fakeLedger{err: errors.New("disk full")}
	s, rec := newTestSession(t, ledger)
	send(s, `{"action": "load", "file": "two.json"}`)
	send(s, `{"action": "place_order", "side": "sell", "quantity": 2, "price": 100, "sl": 110}`)
	send(s, `{"action": "set_speed", "speed": 1000}`)
	send(s, `{"action": "start"}`)
	waitFinished(t, s)

	require.Equal(t, 1, rec.count(isStats))
	stats := rec.last().(models.MBacktestStatsEvent).Stats
	assert.Equal(t, -20.0, stats.TotalPnL)
	assert.Equal(t, 0, rec.count(isError))
}

func TestSession_ManualCloseUsesLastStreamedPrice(t *testing.T) {
	s, rec := newTestSession(t, nil)
	send(s, `{"action": "load", "file": "two.json"}`)
	send(s, `{"action": "place_order", "side": "buy", "quantity": 2, "price": 100}`)
	send(s, `{"action": "set_speed", "speed": 1000}`)
	send(s, `{"action": "start"}`)
	waitFinished(t, s)

	send(s, `{"action": "close_position", "position_id": 1}`)

	events := rec.all()
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, models.MPositionClosedManualEvent{
		Type:       models.TypePositionClosedManual,
		PositionID: 1,
		ExitPrice:  108,
		PnL:        16,
	}, events[len(events)-2])
	assert.Equal(t, models.MPositionClosedEvent{Type: models.TypePositionClosed, PositionID: 1}, events[len(events)-1])
}

func TestSession_CloseUnknownPosition(t *testing.T) {
	s, rec := newTestSession(t, nil)
	send(s, `{"action": "close_position", "position_id": 42}`)

	assert.Equal(t, []interface{}{
		models.MPositionClosedEvent{Type: models.TypePositionClosed, PositionID: 42},
	}, rec.all())
}

func TestSession_OrderIDsIncrease(t *testing.T) {
	s, rec := newTestSession(t, nil)
	send(s, `{"action": "place_order", "side": "buy", "quantity": 1, "price": 1}`)
	send(s, `{"action": "close_position", "position_id": 1}`)
	send(s, `{"action": "place_order", "side": "sell", "quantity": 1, "price": 1}`)

	placed := rec.last().(models.MOrderPlacedEvent)
	assert.Equal(t, int64(2), placed.Position.ID)
	assert.Equal(t, models.SideSell, placed.Position.Side)
}

func TestSession_NoCandleAfterStop(t *testing.T) {
	s, rec := newTestSession(t, nil)
	send(s, `{"action": "load"}`)
	send(s, `{"action": "set_speed", "speed": 20}`)
	send(s, `{"action": "start"}`)

	require.Eventually(t, func() bool { return rec.count(isCandle) >= 1 }, time.Second, 5*time.Millisecond)
	send(s, `{"action": "stop"}`)
	time.Sleep(150 * time.Millisecond)

	events := rec.all()
	stoppedAt := -1
	for i, e := range events {
		if isStatus(models.StatusStopped)(e) {
			stoppedAt = i
		}
	}
	require.NotEqual(t, -1, stoppedAt)
	for _, e := range events[stoppedAt+1:] {
		assert.False(t, isCandle(e), "candle emitted after stop")
	}
	assert.Equal(t, string(StatePaused), s.Snapshot().State)
	assert.False(t, s.IsRunning())
}

func TestSession_StopThenResume(t *testing.T) {
	s, rec := newTestSession(t, nil)
	send(s, `{"action": "load"}`)
	send(s, `{"action": "set_speed", "speed": 20}`)
	send(s, `{"action": "start"}`)

	require.Eventually(t, func() bool { return rec.count(isCandle) >= 1 }, time.Second, 5*time.Millisecond)
	send(s, `{"action": "stop"}`)

	send(s, `{"action": "set_speed", "speed": 1000}`)
	send(s, `{"action": "start"}`)
	waitFinished(t, s)

	// no candle is replayed twice across the pause
	assert.Equal(t, 5, rec.count(isCandle))
}

func TestSession_LoadWhileRunningCancelsReplay(t *testing.T) {
	s, rec := newTestSession(t, nil)
	send(s, `{"action": "load"}`)
	send(s, `{"action": "set_speed", "speed": 20}`)
	send(s, `{"action": "start"}`)
	require.Eventually(t, func() bool { return rec.count(isCandle) >= 1 }, time.Second, 5*time.Millisecond)

	send(s, `{"action": "load", "file": "two.json"}`)
	before := rec.count(isCandle)
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, before, rec.count(isCandle))
	assert.False(t, s.IsRunning())
	assert.Equal(t, string(StateLoaded), s.Snapshot().State)
}

func TestSession_RestartAfterFinishFinalizesAgain(t *testing.T) {
	s, rec := newTestSession(t, nil)
	send(s, `{"action": "load", "file": "two.json"}`)
	send(s, `{"action": "place_order", "side": "buy", "quantity": 1, "price": 100, "tp": 102}`)
	send(s, `{"action": "set_speed", "speed": 1000}`)
	send(s, `{"action": "start"}`)
	waitFinished(t, s)

	send(s, `{"action": "start"}`)
	require.Eventually(t, func() bool { return rec.count(isStats) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, rec.count(isCandle))
}

func TestSession_SetSpeed(t *testing.T) {
	s, rec := newTestSession(t, nil)

	send(s, `{"action": "set_speed", "speed": 3}`)
	assert.Equal(t, models.MSpeedChangedEvent{Status: models.StatusSpeedChanged, Speed: 3}, rec.last())

	send(s, `{"action": "set_speed"}`)
	assert.Equal(t, models.MSpeedChangedEvent{Status: models.StatusSpeedChanged, Speed: 1}, rec.last())

	for _, bad := range []string{"0", "-2"} {
		send(s, `{"action": "set_speed", "speed": `+bad+`}`)
		assert.True(t, isError(rec.last()), "speed %s", bad)
	}
	assert.Equal(t, 1.0, s.Snapshot().Speed)
}

func TestSession_SetSpeedClampsToMaximum(t *testing.T) {
	rec := &recorder{}
	s := NewSession(SessionOptions{
		MaxSpeed: 50,
		Sink:     rec,
		Logger:   logger.NewLoggerWithWriter(io.Discard, "Session", "ERROR"),
	})
	defer s.Close()

	send(s, `{"action": "set_speed", "speed": 500}`)
	assert.Equal(t, models.MSpeedChangedEvent{Status: models.StatusSpeedChanged, Speed: 50}, rec.last())
}

func TestSession_RejectsMalformedAndIgnoresUnknown(t *testing.T) {
	s, rec := newTestSession(t, nil)

	send(s, `not json`)
	require.Len(t, rec.all(), 1)
	assert.True(t, isError(rec.last()))

	send(s, `{"action": "rewind"}`)
	assert.Len(t, rec.all(), 1)

	send(s, `{"action": "place_order", "side": "buy", "quantity": -1, "price": 1}`)
	assert.True(t, isError(rec.last()))
	assert.Equal(t, 0, s.Snapshot().OpenPositions)
}

func TestSession_ClosedSessionIsSilent(t *testing.T) {
	s, rec := newTestSession(t, nil)
	send(s, `{"action": "load"}`)
	send(s, `{"action": "set_speed", "speed": 20}`)
	send(s, `{"action": "start"}`)
	s.Close()

	n := len(rec.all())
	send(s, `{"action": "start"}`)
	send(s, `garbage`)
	time.Sleep(100 * time.Millisecond)

	assert.Len(t, rec.all(), n)
	assert.Equal(t, string(StateCancelled), s.Snapshot().State)
	assert.False(t, s.Stop())
}

func TestSession_ExternalStop(t *testing.T) {
	s, rec := newTestSession(t, nil)
	assert.False(t, s.Stop())

	send(s, `{"action": "load"}`)
	send(s, `{"action": "set_speed", "speed": 20}`)
	send(s, `{"action": "start"}`)

	assert.True(t, s.Stop())
	assert.Equal(t, models.NewStatusEvent(models.StatusStopped), rec.last())
	assert.False(t, s.IsRunning())
}

// -----------------------------------------------------------------------------
// Failure recovery
// -----------------------------------------------------------------------------

type panickingPublisher struct{}

func (panickingPublisher) Publish(group string, event interface{}) {
	panic("broadcast unavailable")
}

// orderRejectingSink fails the first order_placed event and records the rest.
type orderRejectingSink struct {
	recorder
	once sync.Once
}

func (o *orderRejectingSink) Send(event interface{}) bool {
	if _, ok := event.(models.MOrderPlacedEvent); ok {
		fail := false
		o.once.Do(func() { fail = true })
		if fail {
			panic("sink rejected order")
		}
	}
	return o.recorder.Send(event)
}

func TestSession_ReplayFailureStopsWithError(t *testing.T) {
	rec := &recorder{}
	s := NewSession(SessionOptions{
		ID:        "failing-replay",
		Source:    memorySource{"two.json": []byte(twoCandles)},
		Sink:      rec,
		Publisher: panickingPublisher{},
		Logger:    logger.NewLoggerWithWriter(io.Discard, "Session", "DEBUG"),
	})
	t.Cleanup(s.Close)

	send(s, `{"action": "load", "file": "two.json"}`)
	send(s, `{"action": "start"}`)

	require.Eventually(t, func() bool {
		return rec.count(isError) > 0
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, rec.count(isError))
	assert.Equal(t, 0, rec.count(isCandle))

	snap := s.Snapshot()
	assert.Equal(t, string(StatePaused), snap.State)
	assert.Equal(t, 0, snap.Pointer)

	send(s, `{"action": "jump", "index": 1}`)
	assert.Equal(t, models.MJumpedEvent{Status: models.StatusJumped, Pointer: 1}, rec.last())
}

func TestSession_CommandFailureKeepsSessionAlive(t *testing.T) {
	sink := &orderRejectingSink{}
	s := NewSession(SessionOptions{
		ID:     "failing-command",
		Source: memorySource{"two.json": []byte(twoCandles)},
		Sink:   sink,
		Logger: logger.NewLoggerWithWriter(io.Discard, "Session", "DEBUG"),
	})
	t.Cleanup(s.Close)

	send(s, `{"action": "load", "file": "two.json"}`)
	send(s, `{"action": "place_order", "side": "buy", "quantity": 1, "price": 100}`)

	assert.Equal(t, 1, sink.count(isError))
	assert.True(t, isError(sink.last()))
	assert.NotEqual(t, string(StateCancelled), s.Snapshot().State)

	send(s, `{"action": "jump", "index": 1}`)
	assert.Equal(t, models.MJumpedEvent{Status: models.StatusJumped, Pointer: 1}, sink.last())

	send(s, `{"action": "place_order", "side": "sell", "quantity": 1, "price": 101}`)
	placed, ok := sink.last().(models.MOrderPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(2), placed.Position.ID)
}
