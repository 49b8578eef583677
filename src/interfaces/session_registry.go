package interfaces

import "candle-replay/src/models"

// -----------------------------------------------------------------------------
// ISessionRegistry exposes live replay sessions to the control surfaces.
// -----------------------------------------------------------------------------

type ISessionRegistry interface {
	Snapshots() []models.MSessionSnapshot
	Snapshot(sessionID string) (models.MSessionSnapshot, bool)
	StopSession(sessionID string) bool
}
