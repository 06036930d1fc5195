package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/mpt-session/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTranscript() *Transcript {
	at := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.UTC)
	state := domain.NewSessionState()
	state.Stage = domain.StageNeedDiscovery
	state.StageHistory = []domain.Stage{domain.StageSpaceCreation, domain.StageContextGathering}
	state.Context.ClientName = domain.Ptr("Анна")
	state.Context.NewActions = []string{"гулять"}

	return &Transcript{
		Session: &domain.Session{
			ID:           "s-1",
			ScenarioID:   "anxiety",
			ScenarioName: "Тревога",
			Phase:        domain.StageNeedDiscovery.Name(),
			CreatedAt:    at,
			LastActiveAt: at.Add(time.Minute),
			Messages: []domain.Message{
				{ID: "m1", Role: domain.RoleClient, Content: "Привет, я Анна", Timestamp: at},
				{ID: "m2", Role: domain.RoleTherapist, Content: "Здравствуй, Анна", Timestamp: at.Add(time.Second)},
			},
		},
		State:      state,
		Reason:     "ttl",
		ArchivedAt: at.Add(time.Hour),
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	in := sampleTranscript()

	require.NoError(t, s.ArchiveSession(ctx, in))

	got, err := s.GetTranscript(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, in.Session, got.Session)
	assert.Equal(t, domain.StageNeedDiscovery, got.State.Stage)
	assert.Equal(t, in.State.StageHistory, got.State.StageHistory)
	require.NotNil(t, got.State.Context.ClientName)
	assert.Equal(t, "Анна", *got.State.Context.ClientName)
	assert.Equal(t, "ttl", got.Reason)
	assert.True(t, in.ArchivedAt.Equal(got.ArchivedAt))
}

func TestArchiveReplacesEarlierCopy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	in := sampleTranscript()
	require.NoError(t, s.ArchiveSession(ctx, in))

	in.Session.Messages = in.Session.Messages[:1]
	in.Reason = "capacity"
	require.NoError(t, s.ArchiveSession(ctx, in))

	got, err := s.GetTranscript(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, got.Session.Messages, 1)
	assert.Equal(t, "capacity", got.Reason)
}

func TestGetTranscriptMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetTranscript(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestArchiveSessionRejectsIncomplete(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.ArchiveSession(context.Background(), &Transcript{Session: &domain.Session{ID: "x"}}))
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
