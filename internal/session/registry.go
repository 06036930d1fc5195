// Package session owns live therapy sessions: their storage, the per-turn
// draft/commit cycle and eviction.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/mpt-session/internal/catalog"
	"github.com/ashureev/mpt-session/internal/domain"
	"github.com/ashureev/mpt-session/internal/metrics"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for an id that is not live.
	ErrNotFound = errors.New("session not found")
	// ErrTurnInProgress is returned when a session already has a turn in flight.
	ErrTurnInProgress = errors.New("turn already in progress")
	// ErrCapacity is returned when the store is full and nothing can be evicted.
	ErrCapacity = errors.New("session capacity reached")
)

// EvictReason says why an entry left the registry.
type EvictReason string

const (
	EvictTTL      EvictReason = "ttl"
	EvictCapacity EvictReason = "capacity"
	EvictShutdown EvictReason = "shutdown"
)

// EvictFunc is called with every evicted entry, outside registry locks.
type EvictFunc func(ctx context.Context, e *Entry, reason EvictReason)

// Options configures a Registry.
type Options struct {
	// MaxSessions bounds the store. Zero means unbounded.
	MaxSessions int
	OnEvict     EvictFunc
	Now         func() time.Time
}

// Registry is the only way to read or mutate live sessions.
type Registry struct {
	store   Store
	catalog *catalog.Catalog
	max     int
	onEvict []EvictFunc
	now     func() time.Time

	// mu serializes lookups against locking, commits and eviction so that
	// a session cannot be evicted between Begin and Commit.
	mu       sync.Mutex
	inflight map[string]bool
}

// NewRegistry creates a registry over store.
func NewRegistry(store Store, cat *catalog.Catalog, opts Options) *Registry {
	r := &Registry{
		store:    store,
		catalog:  cat,
		max:      opts.MaxSessions,
		now:      opts.Now,
		inflight: make(map[string]bool),
	}
	if r.now == nil {
		r.now = time.Now
	}
	if opts.OnEvict != nil {
		r.onEvict = append(r.onEvict, opts.OnEvict)
	}
	return r
}

// OnEvict registers an additional eviction hook. It must be called before
// the registry is shared.
func (r *Registry) OnEvict(fn EvictFunc) {
	r.onEvict = append(r.onEvict, fn)
}

// Catalog returns the catalog sessions are resolved against.
func (r *Registry) Catalog() *catalog.Catalog {
	return r.catalog
}

// Create starts and stores a session with no messages. An empty scenarioID
// leaves the scenario unset.
func (r *Registry) Create(ctx context.Context, scenarioID string) (*Entry, error) {
	e, err := r.newEntry(scenarioID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	evicted, err := r.makeRoomLocked()
	if err == nil {
		r.store.Put(e)
		metrics.SetLiveSessions(r.store.Len())
	}
	r.mu.Unlock()
	r.notifyEvicted(ctx, evicted, EvictCapacity)
	if err != nil {
		return nil, err
	}

	slog.Info("Session created", "session_id", e.Session.ID, "scenario_id", e.Session.ScenarioID, "script_id", e.Session.ScriptID)
	return e.Clone(), nil
}

// Get returns a copy of a live session. Stored entries are replaced on
// commit, never mutated, so no lock is needed for the copy.
func (r *Registry) Get(id string) (*Entry, error) {
	e, ok := r.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.Clone(), nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.store.Len()
}

// Begin opens a turn. A known id is locked and drafted from the stored
// entry. An empty or unknown id drafts a new session, in which case
// scenarioID (if set) fixes its scenario. The caller must Commit or
// Discard the returned turn.
func (r *Registry) Begin(ctx context.Context, id, scenarioID string) (*Turn, error) {
	if id != "" {
		r.mu.Lock()
		stored, ok := r.store.Get(id)
		if ok {
			if r.inflight[id] {
				r.mu.Unlock()
				return nil, fmt.Errorf("%w: %s", ErrTurnInProgress, id)
			}
			r.inflight[id] = true
			draft := stored.Clone()
			r.mu.Unlock()
			return &Turn{reg: r, Draft: draft}, nil
		}
		r.mu.Unlock()
		slog.Debug("Unknown session id, starting a new session", "session_id", id)
	}

	e, err := r.newEntry(scenarioID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	evicted, err := r.makeRoomLocked()
	if err == nil {
		r.inflight[e.Session.ID] = true
	}
	r.mu.Unlock()
	r.notifyEvicted(ctx, evicted, EvictCapacity)
	if err != nil {
		return nil, err
	}
	return &Turn{reg: r, Draft: e, New: true}, nil
}

func (r *Registry) newEntry(scenarioID string) (*Entry, error) {
	now := r.now()
	s := &domain.Session{
		ID:           uuid.NewString(),
		Messages:     []domain.Message{},
		Phase:        domain.FirstStage.Name(),
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if scenarioID != "" {
		sc, err := r.catalog.Scenario(scenarioID)
		if err != nil {
			return nil, err
		}
		s.ScenarioID, s.ScenarioName = sc.ID, sc.Name
	}
	if script := r.catalog.SelectScript("", s.ScenarioID, ""); script != nil {
		s.ScriptID, s.ScriptName = script.ID, script.Name
	}
	return &Entry{Session: s, State: domain.NewSessionState()}, nil
}

func (r *Registry) commit(t *Turn) {
	var evicted []*Entry
	r.mu.Lock()
	if t.New {
		// Room was made in Begin, but concurrent creations may have filled it.
		var err error
		evicted, err = r.makeRoomLocked()
		if err != nil {
			slog.Warn("Committing session over capacity", "session_id", t.Draft.Session.ID, "max_sessions", r.max)
		}
	}
	r.store.Put(t.Draft)
	delete(r.inflight, t.Draft.Session.ID)
	n := r.store.Len()
	r.mu.Unlock()

	metrics.SetLiveSessions(n)
	r.notifyEvicted(context.Background(), evicted, EvictCapacity)
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}

// makeRoomLocked evicts least-recently-active idle entries until there is
// room for one more. r.mu must be held.
func (r *Registry) makeRoomLocked() ([]*Entry, error) {
	if r.max <= 0 {
		return nil, nil
	}
	var evicted []*Entry
	for r.store.Len() >= r.max {
		var victim *Entry
		for _, e := range r.store.All() {
			if r.inflight[e.Session.ID] {
				continue
			}
			if victim == nil || e.Session.LastActiveAt.Before(victim.Session.LastActiveAt) {
				victim = e
			}
		}
		if victim == nil {
			return evicted, ErrCapacity
		}
		r.store.Delete(victim.Session.ID)
		evicted = append(evicted, victim)
	}
	return evicted, nil
}

func (r *Registry) notifyEvicted(ctx context.Context, entries []*Entry, reason EvictReason) {
	for _, e := range entries {
		metrics.RecordEviction(string(reason))
		slog.Info("Session evicted", "session_id", e.Session.ID, "reason", reason, "stage", e.State.Stage.ID(), "messages", len(e.Session.Messages))
		for _, fn := range r.onEvict {
			fn(ctx, e, reason)
		}
	}
	if len(entries) > 0 {
		metrics.SetLiveSessions(r.store.Len())
	}
}
