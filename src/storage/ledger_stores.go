package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"candle-replay/src/interfaces"
	"candle-replay/src/logger"
	"candle-replay/src/models"
)

// LedgerStores saves every ledger to all of its stores. A failing store does
// not stop the others; the failures are joined.
type LedgerStores []interfaces.ILedgerStore

func (m LedgerStores) Initialize() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Initialize())
	}
	return errors.Join(errs...)
}

func (m LedgerStores) SaveLedger(ctx context.Context, sessionID string, ledger []models.MClosedPosition) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.SaveLedger(ctx, sessionID, ledger))
	}
	return errors.Join(errs...)
}

func (m LedgerStores) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------

// NewLedgerStore builds the stores selected by the storage config: the JSON
// file when ledger_path is set, plus the sqlite or postgres table.
// Initialize is left to the caller.
func NewLedgerStore(cfg *models.MConfig, log *logger.Logger) (LedgerStores, error) {
	var stores LedgerStores

	if cfg.Storage.LedgerPath != "" {
		stores = append(stores, NewJSONLedger(cfg.Storage.LedgerPath, log.Named("JSONLedger")))
	}

	switch strings.ToLower(cfg.Storage.DBType) {
	case "", "none":
	case "sqlite":
		stores = append(stores, NewSQLiteLedger(cfg, log.Named("SQLiteLedger")))
	case "postgres":
		pg, err := NewPostgresLedger(cfg, log.Named("PostgresLedger"))
		if err != nil {
			return nil, err
		}
		stores = append(stores, pg)
	default:
		return nil, fmt.Errorf("unknown db_type %q", cfg.Storage.DBType)
	}

	return stores, nil
}
