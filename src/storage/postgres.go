package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"candle-replay/src/logger"
	"candle-replay/src/models"

	_ "github.com/lib/pq"
)

var unsafeSchemaChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// -----------------------------------------------------------------------------

type PostgresLedger struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresLedger names the schema after the configured app name, falling back
// to the executable name.
func NewPostgresLedger(cfg *models.MConfig, log *logger.Logger) (*PostgresLedger, error) {
	name := cfg.Name
	if name == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable name: %w", err)
		}
		name = filepath.Base(exe)
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	return &PostgresLedger{
		Config: cfg,
		Schema: schemaName(name),
		Logger: log,
	}, nil
}

func schemaName(name string) string {
	s := strings.Trim(unsafeSchemaChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if s == "" {
		return "candle_replay"
	}
	return s
}

// -----------------------------------------------------------------------------

func (d *PostgresLedger) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."closed_positions" (
			session_id TEXT NOT NULL,
			position_id BIGINT NOT NULL,
			side TEXT NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			tp DOUBLE PRECISION,
			sl DOUBLE PRECISION,
			opened_at DOUBLE PRECISION,
			exit_price DOUBLE PRECISION NOT NULL,
			exit_time DOUBLE PRECISION,
			exit_reason TEXT NOT NULL,
			pnl DOUBLE PRECISION NOT NULL,
			saved_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, position_id)
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create closed_positions: %w", err)
	}

	d.Logger.Info("PostgresLedger initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

// SaveLedger replaces the rows of sessionID with the given ledger.
func (d *PostgresLedger) SaveLedger(ctx context.Context, sessionID string, ledger []models.MClosedPosition) error {
	if d.DB == nil {
		return fmt.Errorf("postgres ledger is not initialized")
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	table := fmt.Sprintf(`"%s"."closed_positions"`, d.Schema)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE session_id = $1`, table), sessionID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (session_id, position_id, side, quantity, entry_price, tp, sl, opened_at, exit_price, exit_time, exit_reason, pnl, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, table))
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

func (d *PostgresLedger) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
