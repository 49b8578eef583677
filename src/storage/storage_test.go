package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"candle-replay/src/logger"
	"candle-replay/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.NewLoggerWithWriter(io.Discard, "storage", "DEBUG")
}

func sampleLedger() []models.MClosedPosition {
	tp := 110.0
	return []models.MClosedPosition{
		{
			MPosition:  models.MPosition{ID: 1, Side: models.SideBuy, Quantity: 1, EntryPrice: 100, TP: &tp, OpenedAt: 1},
			ExitPrice:  110,
			ExitTime:   2,
			ExitReason: models.ExitTP,
			PnL:        10,
		},
		{
			MPosition:  models.MPosition{ID: 2, Side: models.SideSell, Quantity: 2, EntryPrice: 100},
			ExitPrice:  101,
			ExitTime:   3,
			ExitReason: models.ExitManual,
			PnL:        -2,
		},
	}
}

// -----------------------------------------------------------------------------

func TestFileCandleStore_WriteThenRead(t *testing.T) {
	dir := t.TempDir()
	store := NewFileCandleStore(dir, testLogger())

	series := &models.MColumnSeries{
		Time:  []int64{1762765758000, 1762765818000},
		Open:  []float64{1, 2},
		Close: []float64{2, 3},
		High:  []float64{3, 4},
		Low:   []float64{0.5, 1},
	}
	path, err := store.WriteSeries("eurusd.json", series)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "eurusd.json"), path)

	raw, resolved, err := store.ReadSource("eurusd.json")
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Contains(t, string(raw), "\n  \"time\": [")
	assert.NotContains(t, string(raw), "volume")

	var back models.MColumnSeries
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, *series, back)

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileCandleStore_AbsolutePathAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "elsewhere.json")
	require.NoError(t, os.WriteFile(abs, []byte(`[]`), 0o644))

	store := NewFileCandleStore(dir, testLogger())

	raw, path, err := store.ReadSource(abs)
	require.NoError(t, err)
	assert.Equal(t, abs, path)
	assert.Equal(t, "[]", string(raw))

	_, _, err = store.ReadSource("nope.json")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, _, err = store.ReadSource("  ")
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestJSONLedger_WritesIndentedArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "closed_positions.json")
	ledger := NewJSONLedger(path, testLogger())
	require.NoError(t, ledger.Initialize())

	require.NoError(t, ledger.SaveLedger(context.Background(), "s1", sampleLedger()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[\n  {\n    \"id\": 1,")

	var back []models.MClosedPosition
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, sampleLedger(), back)

	require.NoError(t, ledger.SaveLedger(context.Background(), "s2", nil))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

// -----------------------------------------------------------------------------

func TestSQLiteLedger_SaveReplacesSessionRows(t *testing.T) {
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBPath: filepath.Join(t.TempDir(), "ledger.db")}}
	db := NewSQLiteLedger(cfg, testLogger())
	require.NoError(t, db.Initialize())
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SaveLedger(ctx, "s1", sampleLedger()))
	require.NoError(t, db.SaveLedger(ctx, "s1", sampleLedger()[:1]))
	require.NoError(t, db.SaveLedger(ctx, "s2", sampleLedger()))

	var n int
	require.NoError(t, db.DB.QueryRow("SELECT COUNT(*) FROM closed_positions WHERE session_id = ?", "s1").Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, db.DB.QueryRow("SELECT COUNT(*) FROM closed_positions").Scan(&n))
	assert.Equal(t, 3, n)

	var reason string
	var pnl float64
	var sl *float64
	require.NoError(t, db.DB.QueryRow(
		"SELECT exit_reason, pnl, sl FROM closed_positions WHERE session_id = ? AND position_id = ?", "s2", 2,
	).Scan(&reason, &pnl, &sl))
	assert.Equal(t, "Manual", reason)
	assert.Equal(t, -2.0, pnl)
	assert.Nil(t, sl)
}

func TestSQLiteLedger_NotInitialized(t *testing.T) {
	db := NewSQLiteLedger(&models.MConfig{}, testLogger())
	assert.Error(t, db.SaveLedger(context.Background(), "s", nil))
	assert.NoError(t, db.Close())
}

// -----------------------------------------------------------------------------

type failingStore struct{ err error }

func (f failingStore) Initialize() error { return nil }
func (f failingStore) Close() error      { return nil }
func (f failingStore) SaveLedger(context.Context, string, []models.MClosedPosition) error {
	return f.err
}

func TestLedgerStores_SavesToAllAndJoinsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	boom := errors.New("boom")
	stores := LedgerStores{failingStore{err: boom}, NewJSONLedger(path, testLogger())}

	err := stores.SaveLedger(context.Background(), "s", sampleLedger())
	assert.ErrorIs(t, err, boom)
	assert.FileExists(t, path)
}

func TestNewLedgerStore(t *testing.T) {
	log := testLogger()

	stores, err := NewLedgerStore(&models.MConfig{}, log)
	require.NoError(t, err)
	assert.Empty(t, stores)

	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "SQLite", LedgerPath: "x.json"}}
	stores, err = NewLedgerStore(cfg, log)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.IsType(t, &JSONLedger{}, stores[0])
	assert.IsType(t, &SQLiteLedger{}, stores[1])

	cfg = &models.MConfig{Name: "Candle Replay!", Storage: models.MStorageConfig{DBType: "postgres"}}
	stores, err = NewLedgerStore(cfg, log)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "candle_replay", stores[0].(*PostgresLedger).Schema)

	_, err = NewLedgerStore(&models.MConfig{Storage: models.MStorageConfig{DBType: "mongo"}}, log)
	assert.Error(t, err)
}
