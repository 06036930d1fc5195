package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/mpt-session/internal/catalog"
	"github.com/ashureev/mpt-session/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type evictRecorder struct {
	mu      sync.Mutex
	ids     []string
	reasons []EvictReason
}

func (r *evictRecorder) hook(_ context.Context, e *Entry, reason EvictReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, e.Session.ID)
	r.reasons = append(r.reasons, reason)
}

func newTestRegistry(t *testing.T, maxSessions int) (*Registry, *fakeClock, *evictRecorder) {
	t.Helper()
	clk := newFakeClock()
	rec := &evictRecorder{}
	reg := NewRegistry(NewMemoryStore(), catalog.Default(), Options{
		MaxSessions: maxSessions,
		OnEvict:     rec.hook,
		Now:         clk.Now,
	})
	return reg, clk, rec
}

func TestCreateWithoutScenario(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e, err := reg.Create(context.Background(), "")
	require.NoError(t, err)

	assert.NotEmpty(t, e.Session.ID)
	assert.False(t, e.Session.HasScenario())
	assert.Equal(t, domain.FirstStage, e.State.Stage)
	assert.Equal(t, domain.FirstStage.Name(), e.Session.Phase)
	assert.Equal(t, "strategy-exploration", e.Session.ScriptID)
	assert.Equal(t, 1, reg.Len())
}

func TestCreateWithScenarioSelectsScript(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e, err := reg.Create(context.Background(), "anxiety")
	require.NoError(t, err)
	assert.Equal(t, "anxiety", e.Session.ScenarioID)
	assert.Equal(t, "fear-exploration", e.Session.ScriptID)
}

func TestCreateUnknownScenario(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	_, err := reg.Create(context.Background(), "nope")
	assert.ErrorIs(t, err, catalog.ErrUnknownScenario)
	assert.Zero(t, reg.Len())
}

func TestGetUnknown(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	_, err := reg.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewDraftInvisibleUntilCommit(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	turn, err := reg.Begin(context.Background(), "", "")
	require.NoError(t, err)
	require.True(t, turn.New)

	_, err = reg.Get(turn.Draft.Session.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	turn.Receive("привет")
	turn.Reply("Здравствуй")
	turn.Commit()

	got, err := reg.Get(turn.Draft.Session.ID)
	require.NoError(t, err)
	assert.Len(t, got.Session.Messages, 2)
}

func TestUnknownIDStartsNewSession(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	turn, err := reg.Begin(context.Background(), "not-a-session", "")
	require.NoError(t, err)
	assert.True(t, turn.New)
	assert.NotEqual(t, "not-a-session", turn.Draft.Session.ID)
	turn.Discard()
	assert.Zero(t, reg.Len())
}

func TestDiscardLeavesSessionUnchanged(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e, err := reg.Create(context.Background(), "")
	require.NoError(t, err)

	turn, err := reg.Begin(context.Background(), e.Session.ID, "")
	require.NoError(t, err)
	turn.Receive("меня зовут Анна")
	turn.Discard()

	got, err := reg.Get(e.Session.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Session.Messages)
	assert.Nil(t, got.State.Context.ClientName)
	assert.Zero(t, got.State.ResponseCount)
}

func TestSecondTurnIsRejected(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e, err := reg.Create(context.Background(), "")
	require.NoError(t, err)

	first, err := reg.Begin(context.Background(), e.Session.ID, "")
	require.NoError(t, err)

	_, err = reg.Begin(context.Background(), e.Session.ID, "")
	assert.ErrorIs(t, err, ErrTurnInProgress)

	first.Commit()
	first.Commit()

	again, err := reg.Begin(context.Background(), e.Session.ID, "")
	require.NoError(t, err)
	again.Discard()
}

func TestConcurrentBeginOnlyOneWins(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e, err := reg.Create(context.Background(), "")
	require.NoError(t, err)

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      int
		rejected int
	)
	turns := make(chan *Turn, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			turn, err := reg.Begin(context.Background(), e.Session.ID, "")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrTurnInProgress)
				rejected++
				return
			}
			won++
			turns <- turn
		}()
	}
	wg.Wait()
	close(turns)
	for turn := range turns {
		turn.Discard()
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, n-1, rejected)
}

func TestCapacityEvictsLeastRecentlyActive(t *testing.T) {
	reg, clk, rec := newTestRegistry(t, 2)
	ctx := context.Background()

	oldest, err := reg.Create(ctx, "")
	require.NoError(t, err)
	clk.Advance(time.Minute)
	newer, err := reg.Create(ctx, "")
	require.NoError(t, err)
	clk.Advance(time.Minute)

	// Touch the oldest so that "newer" becomes the LRU entry.
	turn, err := reg.Begin(ctx, oldest.Session.ID, "")
	require.NoError(t, err)
	turn.Receive("привет")
	turn.Commit()
	clk.Advance(time.Minute)

	_, err = reg.Create(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{newer.Session.ID}, rec.ids)
	assert.Equal(t, []EvictReason{EvictCapacity}, rec.reasons)
	_, err = reg.Get(oldest.Session.ID)
	assert.NoError(t, err)
}

func TestCapacityNeverEvictsInFlight(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 1)
	ctx := context.Background()

	e, err := reg.Create(ctx, "")
	require.NoError(t, err)
	turn, err := reg.Begin(ctx, e.Session.ID, "")
	require.NoError(t, err)
	defer turn.Discard()

	_, err = reg.Create(ctx, "")
	assert.ErrorIs(t, err, ErrCapacity)
	_, err = reg.Begin(ctx, "", "")
	assert.ErrorIs(t, err, ErrCapacity)
}

func TestGetReturnsCopy(t *testing.T) {
	reg, _, _ := newTestRegistry(t, 0)
	e, err := reg.Create(context.Background(), "")
	require.NoError(t, err)

	got, err := reg.Get(e.Session.ID)
	require.NoError(t, err)
	got.Session.Messages = append(got.Session.Messages, domain.Message{Content: "x"})
	got.State.Stage = domain.StageClosing

	again, err := reg.Get(e.Session.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Session.Messages)
	assert.Equal(t, domain.FirstStage, again.State.Stage)
}
