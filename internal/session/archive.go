package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/mpt-session/internal/store"
)

// DefaultArchiveTimeout bounds a single archive write.
const DefaultArchiveTimeout = 10 * time.Second

// ArchiveOnEvict returns an EvictFunc that writes evicted sessions to a.
// Sessions with no messages are skipped. Failures are logged; the session
// is already gone from the registry.
func ArchiveOnEvict(a store.Archive, timeout time.Duration) EvictFunc {
	if timeout <= 0 {
		timeout = DefaultArchiveTimeout
	}
	return func(ctx context.Context, e *Entry, reason EvictReason) {
		if len(e.Session.Messages) == 0 {
			return
		}
		// The eviction may have been triggered by a request that is about to end.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		err := a.ArchiveSession(ctx, &store.Transcript{
			Session: e.Session,
			State:   e.State,
			Reason:  string(reason),
		})
		if err != nil {
			slog.Error("Failed to archive session", "session_id", e.Session.ID, "reason", reason, "error", err)
			return
		}
		slog.Info("Session archived", "session_id", e.Session.ID, "reason", reason, "messages", len(e.Session.Messages))
	}
}
