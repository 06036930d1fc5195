// Package store persists transcripts of sessions that left the live registry.
package store

import (
	"context"
	"time"

	"github.com/ashureev/mpt-session/internal/domain"
)

// Transcript is an archived session.
type Transcript struct {
	Session    *domain.Session
	State      *domain.SessionState
	Reason     string
	ArchivedAt time.Time
}

// Archive defines the interface for persisting session transcripts.
type Archive interface {
	// ArchiveSession writes a transcript, replacing any earlier copy of the
	// same session.
	ArchiveSession(ctx context.Context, t *Transcript) error

	// GetTranscript returns the archived transcript, or nil if there is none.
	GetTranscript(ctx context.Context, sessionID string) (*Transcript, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
