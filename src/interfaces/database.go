package interfaces

import (
	"context"

	"candle-replay/src/models"
)

// -----------------------------------------------------------------------------
// ILedgerStore persists the closed-position ledger of a finished replay.
// -----------------------------------------------------------------------------

type ILedgerStore interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up files, schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveLedger writes the full ledger of one session.
	SaveLedger(ctx context.Context, sessionID string, ledger []models.MClosedPosition) error

	// -----------------------------------------------------------------------------

	// Close the underlying resources
	Close() error
}
