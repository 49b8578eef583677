package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"candle-replay/src/logger"
	"candle-replay/src/models"
)

// JSONLedger writes the most recent ledger as a JSON array to one file.
// Each save replaces the previous content.
type JSONLedger struct {
	Path   string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewJSONLedger(path string, log *logger.Logger) *JSONLedger {
	return &JSONLedger{Path: path, Logger: log}
}

// -----------------------------------------------------------------------------

func (j *JSONLedger) Initialize() error {
	if dir := filepath.Dir(j.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create ledger dir %s: %w", dir, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (j *JSONLedger) SaveLedger(ctx context.Context, sessionID string, ledger []models.MClosedPosition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ledger == nil {
		ledger = []models.MClosedPosition{}
	}

	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(j.Path, data); err != nil {
		return err
	}

	j.Logger.Debug("Wrote %d closed positions of session %s to %s", len(ledger), sessionID, j.Path)
	return nil
}

// -----------------------------------------------------------------------------

func (j *JSONLedger) Close() error {
	return nil
}
