package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"candle-replay/src/logger"
	"candle-replay/src/models"

	_ "modernc.org/sqlite"
)

const closedPositionsDDL = `
	CREATE TABLE IF NOT EXISTS closed_positions (
		session_id TEXT NOT NULL,
		position_id INTEGER NOT NULL,
		side TEXT NOT NULL,
		quantity REAL NOT NULL,
		entry_price REAL NOT NULL,
		tp REAL,
		sl REAL,
		opened_at REAL,
		exit_price REAL NOT NULL,
		exit_time REAL,
		exit_reason TEXT NOT NULL,
		pnl REAL NOT NULL,
		saved_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, position_id)
	);
`

// -----------------------------------------------------------------------------

type SQLiteLedger struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteLedger(cfg *models.MConfig, log *logger.Logger) *SQLiteLedger {
	return &SQLiteLedger{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteLedger) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	if _, err := db.Exec(closedPositionsDDL); err != nil {
		return fmt.Errorf("failed to create closed_positions: %w", err)
	}

	d.Logger.Info("SQLite ledger ready at %s", dsn)
	return nil
}

// -----------------------------------------------------------------------------

// SaveLedger replaces the rows of sessionID with the given ledger.
func (d *SQLiteLedger) SaveLedger(ctx context.Context, sessionID string, ledger []models.MClosedPosition) error {
	if d.DB == nil {
		return fmt.Errorf("sqlite ledger is not initialized")
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM closed_positions WHERE session_id = ?", sessionID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO closed_positions (session_id, position_id, side, quantity, entry_price, tp, sl, opened_at, exit_price, exit_time, exit_reason, pnl, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range ledger {
		_, err := stmt.ExecContext(ctx, sessionID, p.ID, string(p.Side), p.Quantity, p.EntryPrice,
			nullableFloat(p.TP), nullableFloat(p.SL), p.OpenedAt, p.ExitPrice, p.ExitTime, string(p.ExitReason), p.PnL, now)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *SQLiteLedger) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
