package backtest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"candle-replay/src/helpers"
	"candle-replay/src/interfaces"
	"candle-replay/src/logger"
	"candle-replay/src/models"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of a replay session.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateLoaded    SessionState = "loaded"
	StateRunning   SessionState = "running"
	StatePaused    SessionState = "paused"
	StateFinished  SessionState = "finished"
	StateCancelled SessionState = "cancelled"
)

const (
	defaultSpeed    = 1.0
	defaultFile     = "temp.json"
	ledgerSaveLimit = 10 * time.Second
)

// -----------------------------------------------------------------------------

// SessionOptions wires a session to its collaborators.
type SessionOptions struct {
	ID           string
	DefaultSpeed float64
	MaxSpeed     float64 // 0 = unbounded
	DefaultFile  string
	Source       interfaces.ICandleSource
	Ledger       interfaces.ILedgerStore // optional
	Sink         interfaces.IEventSink
	Publisher    interfaces.IPublisher // optional, falls back to Sink
	Logger       *logger.Logger
}

// replayTask is the handle of one running replay goroutine.
type replayTask struct {
	cancel context.CancelFunc
}

// -----------------------------------------------------------------------------

// Session is the per-connection backtest engine. Commands and ticks run under mu,
// so each is atomic with respect to the session state.
type Session struct {
	id          string
	maxSpeed    float64
	defaultFile string
	source      interfaces.ICandleSource
	ledger      interfaces.ILedgerStore
	sink        interfaces.IEventSink
	publisher   interfaces.IPublisher
	logger      *logger.Logger

	mu        sync.Mutex
	state     SessionState
	candles   []models.MCandle
	cursor    int
	speed     float64
	book      *PositionBook
	lastTime  float64
	lastPrice float64
	replay    *replayTask

	wg sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewSession(opts SessionOptions) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.DefaultSpeed <= 0 {
		opts.DefaultSpeed = defaultSpeed
	}
	if opts.DefaultFile == "" {
		opts.DefaultFile = defaultFile
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewLogger(nil, "Session")
	}

	return &Session{
		id:          opts.ID,
		maxSpeed:    opts.MaxSpeed,
		defaultFile: opts.DefaultFile,
		source:      opts.Source,
		ledger:      opts.Ledger,
		sink:        opts.Sink,
		publisher:   opts.Publisher,
		logger:      opts.Logger,
		state:       StateIdle,
		speed:       opts.DefaultSpeed,
		book:        NewPositionBook(),
	}
}

// ID returns the session id, which is also its broadcast group.
func (s *Session) ID() string {
	return s.id
}

// -----------------------------------------------------------------------------
// Command boundary
// -----------------------------------------------------------------------------

// HandleMessage decodes and executes one raw client message. Every failure is
// reported to the owner as an error event; none of them ends the session.
func (s *Session) HandleMessage(raw []byte) {
	cmd, err := DecodeCommand(raw)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != StateCancelled {
			s.logger.Warning("Rejected command: %v", err)
			s.emitLocked(models.NewErrorEvent(err.Error()))
		}
		return
	}
	s.Handle(cmd)
}

// -----------------------------------------------------------------------------

// Handle executes a decoded command.
func (s *Session) Handle(cmd models.MCommand) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCancelled {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Command %q panicked: %v", cmd.Action, r)
			s.emitLocked(models.NewErrorEvent(fmt.Sprintf("%v", r)))
		}
	}()

	if err := s.dispatchLocked(cmd); err != nil {
		s.logger.Warning("Command %q failed: %v", cmd.Action, err)
		s.emitLocked(models.NewErrorEvent(err.Error()))
	}
}

// -----------------------------------------------------------------------------

func (s *Session) dispatchLocked(cmd models.MCommand) error {
	switch cmd.Action {
	case models.ActionLoad:
		return s.loadLocked(cmd.File)
	case models.ActionStart:
		s.startLocked()
	case models.ActionStop:
		s.stopLocked()
	case models.ActionSetSpeed:
		return s.setSpeedLocked(cmd.Speed)
	case models.ActionJump:
		s.jumpLocked(cmd.Index)
	case models.ActionPlaceOrder:
		s.placeOrderLocked(cmd)
	case models.ActionClosePosition:
		s.closePositionLocked(cmd.PositionID)
	default:
		s.logger.Debug("Ignoring unknown action %q", cmd.Action)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Command handlers
// -----------------------------------------------------------------------------

func (s *Session) loadLocked(file string) error {
	if file == "" {
		file = s.defaultFile
	}
	if s.source == nil {
		return helpers.NewDataFormatError("no candle source configured", nil)
	}

	raw, path, err := s.source.ReadSource(file)
	if err != nil {
		return helpers.NewDataFormatError(fmt.Sprintf("cannot read candle file %q", file), err)
	}

	candles, err := LoadCandles(raw)
	if err != nil {
		return err
	}

	s.cancelReplayLocked()
	s.candles = candles
	s.cursor = 0
	s.state = StateLoaded

	s.logger.Info("Session %s loaded %d candles from %s", s.id, len(candles), path)
	s.emitLocked(models.MLoadedEvent{Status: models.StatusLoaded, Total: len(candles)})
	return nil
}

// -----------------------------------------------------------------------------

func (s *Session) startLocked() {
	if s.replay != nil {
		s.emitLocked(models.NewStatusEvent(models.StatusAlreadyRunning))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &replayTask{cancel: cancel}
	s.replay = task
	s.state = StateRunning

	s.wg.Add(1)
	go s.runReplay(ctx, task)

	s.emitLocked(models.NewStatusEvent(models.StatusStarted))
}

// -----------------------------------------------------------------------------

func (s *Session) stopLocked() {
	if s.cancelReplayLocked() {
		s.state = StatePaused
	}
	s.emitLocked(models.NewStatusEvent(models.StatusStopped))
}

// -----------------------------------------------------------------------------

// setSpeedLocked rejects non-positive speeds and clamps to the configured maximum.
// The new speed applies from the next inter-tick wait.
func (s *Session) setSpeedLocked(speed *float64) error {
	v := defaultSpeed
	if speed != nil {
		v = *speed
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return helpers.NewCommandError("speed must be a positive number, got %v", v)
	}
	if s.maxSpeed > 0 && v > s.maxSpeed {
		v = s.maxSpeed
	}

	s.speed = v
	s.emitLocked(models.MSpeedChangedEvent{Status: models.StatusSpeedChanged, Speed: v})
	return nil
}

// -----------------------------------------------------------------------------

func (s *Session) jumpLocked(index *int) {
	target := 0
	if index != nil {
		target = *index
	}
	s.cursor = clampIndex(target, len(s.candles))
	s.emitLocked(models.MJumpedEvent{Status: models.StatusJumped, Pointer: s.cursor})
}

// clampIndex maps i into [0, n-1], or 0 when n is 0.
func clampIndex(i, n int) int {
	if i > n-1 {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// -----------------------------------------------------------------------------

func (s *Session) placeOrderLocked(cmd models.MCommand) {
	pos := s.book.Open(cmd.Side, cmd.Quantity, cmd.Price, cmd.TP, cmd.SL, s.lastTime)
	s.logger.Debug("Session %s opened position %d (%s %.6g @ %.6g)", s.id, pos.ID, pos.Side, pos.Quantity, pos.EntryPrice)
	s.emitLocked(models.MOrderPlacedEvent{Type: models.TypeOrderPlaced, Position: pos})
}

// -----------------------------------------------------------------------------

// closePositionLocked closes at the last streamed price. An unknown id still
// yields position_closed and is not reported as an error.
func (s *Session) closePositionLocked(id int64) {
	closed, ok := s.book.CloseManual(id, s.lastPrice, s.lastTime)
	if ok {
		s.emitLocked(models.MPositionClosedManualEvent{
			Type:       models.TypePositionClosedManual,
			PositionID: id,
			ExitPrice:  closed.ExitPrice,
			PnL:        closed.PnL,
		})
	} else {
		s.logger.Debug("Session %s: %v", s.id, helpers.NewNotFoundError("position %d is not open", id))
	}
	s.emitLocked(models.MPositionClosedEvent{Type: models.TypePositionClosed, PositionID: id})
}

// -----------------------------------------------------------------------------
// Replay loop
// -----------------------------------------------------------------------------

func (s *Session) runReplay(ctx context.Context, task *replayTask) {
	defer s.wg.Done()

	for {
		delay, more := s.tick(ctx, task)
		if !more {
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// -----------------------------------------------------------------------------

// tick advances the replay by one candle. It returns the wait before the next
// tick and whether the loop should continue.
func (s *Session) tick(ctx context.Context, task *replayTask) (delay time.Duration, more bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil || s.replay != task {
		return 0, false
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Session %s replay failed: %v", s.id, r)
			s.cancelReplayLocked()
			s.state = StatePaused
			s.emitLocked(models.NewErrorEvent(fmt.Sprintf("replay failed: %v", r)))
			delay, more = 0, false
		}
	}()

	if s.cursor >= len(s.candles) {
		s.finishLocked()
		return 0, false
	}

	candle := s.candles[s.cursor]
	s.lastTime = candle.Time
	s.lastPrice = candle.Close

	for _, hit := range s.book.Evaluate(candle) {
		s.emitLocked(models.MPositionHitEvent{
			Type:       models.TypePositionHit,
			PositionID: hit.ID,
			Reason:     hit.ExitReason,
			ExitPrice:  hit.ExitPrice,
			PnL:        hit.PnL,
		})
	}

	s.publishLocked(models.MCandleEvent{Type: models.TypeCandle, Data: candle})
	s.cursor++

	return time.Duration(float64(time.Second) / s.speed), true
}

// -----------------------------------------------------------------------------

// finishLocked ends a replay that ran out of candles: the ledger is persisted
// and statistics are emitted when there is at least one closed trade.
func (s *Session) finishLocked() {
	s.cancelReplayLocked()
	s.state = StateFinished

	ledger := s.book.Ledger()
	if s.ledger != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerSaveLimit)
		if err := s.ledger.SaveLedger(ctx, s.id, ledger); err != nil {
			perr := helpers.NewPersistenceError("failed to save closed positions", err)
			s.logger.Error("Session %s: %v", s.id, perr)
		}
		cancel()
	}

	stats, ok := ComputeStats(ledger)
	s.logger.Info("Session %s finished replay (%d closed trades)", s.id, len(ledger))
	if ok {
		s.emitLocked(models.MBacktestStatsEvent{Type: models.TypeBacktestStats, Stats: stats})
	}
}

// -----------------------------------------------------------------------------

// cancelReplayLocked stops the active replay task, if any.
func (s *Session) cancelReplayLocked() bool {
	if s.replay == nil {
		return false
	}
	s.replay.cancel()
	s.replay = nil
	return true
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Close cancels the session on disconnect and waits for its replay goroutine.
func (s *Session) Close() {
	s.mu.Lock()
	s.cancelReplayLocked()
	s.state = StateCancelled
	s.mu.Unlock()

	s.wg.Wait()
}

// Stop halts a running replay from outside the owning connection.
func (s *Session) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCancelled || s.replay == nil {
		return false
	}
	s.stopLocked()
	return true
}

// -----------------------------------------------------------------------------

// Snapshot returns a read-only view of the session.
func (s *Session) Snapshot() models.MSessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.MSessionSnapshot{
		SessionID:     s.id,
		State:         string(s.state),
		Total:         len(s.candles),
		Pointer:       s.cursor,
		Speed:         s.speed,
		OpenPositions: len(s.book.open),
		ClosedTrades:  len(s.book.ledger),
		LastTime:      s.lastTime,
		LastPrice:     s.lastPrice,
	}
}

// -----------------------------------------------------------------------------

// IsRunning reports whether a replay task is active.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replay != nil
}

// -----------------------------------------------------------------------------
// Emission
// -----------------------------------------------------------------------------

func (s *Session) emitLocked(event interface{}) {
	if s.sink == nil {
		return
	}
	if !s.sink.Send(event) {
		s.logger.Warning("Session %s dropped event %T", s.id, event)
	}
}

func (s *Session) publishLocked(event interface{}) {
	if s.publisher == nil {
		s.emitLocked(event)
		return
	}
	s.publisher.Publish(s.id, event)
}
