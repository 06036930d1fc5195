package session

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is used when RunTTLWorker gets a non-positive interval.
const DefaultSweepInterval = 5 * time.Minute

// RunTTLWorker periodically evicts sessions idle for longer than ttl. It
// blocks until ctx is done and always returns nil.
func (r *Registry) RunTTLWorker(ctx context.Context, interval, ttl time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("TTL worker started", "interval", interval, "ttl", ttl)

	for {
		select {
		case <-ticker.C:
			r.SweepExpired(ctx, ttl)
		case <-ctx.Done():
			slog.Info("TTL worker shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// SweepExpired evicts every idle session whose last activity is older than
// ttl and returns how many were evicted. Sessions with a turn in flight are
// skipped.
func (r *Registry) SweepExpired(ctx context.Context, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-ttl)

	var expired []*Entry
	r.mu.Lock()
	for _, e := range r.store.All() {
		if r.inflight[e.Session.ID] || !e.Session.LastActiveAt.Before(cutoff) {
			continue
		}
		r.store.Delete(e.Session.ID)
		expired = append(expired, e)
	}
	r.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}
	slog.Info("TTL worker found expired sessions", "count", len(expired))
	r.notifyEvicted(ctx, expired, EvictTTL)
	slog.Info("TTL worker cleanup completed", "cleaned", len(expired))
	return len(expired)
}

// Drain evicts every idle session with EvictShutdown and returns how many
// were evicted. Run it once the server no longer accepts turns.
func (r *Registry) Drain(ctx context.Context) int {
	r.mu.Lock()
	var drained []*Entry
	for _, e := range r.store.All() {
		if r.inflight[e.Session.ID] {
			continue
		}
		r.store.Delete(e.Session.ID)
		drained = append(drained, e)
	}
	r.mu.Unlock()

	r.notifyEvicted(ctx, drained, EvictShutdown)
	return len(drained)
}
