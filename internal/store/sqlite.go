package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/mpt-session/internal/domain"
	"github.com/ashureev/mpt-session/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 100 * time.Millisecond
)

// SQLiteStore implements Archive using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	maxRetries int
	baseDelay  time.Duration
}

// NewSQLite opens (creating if needed) an archive database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, maxRetries: defaultMaxRetries, baseDelay: defaultRetryDelay}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	slog.Info("Session archive initialized", "path", dbPath)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		scenario_id TEXT,
		scenario_name TEXT,
		script_id TEXT,
		script_name TEXT,
		stage TEXT NOT NULL,
		phase TEXT NOT NULL,
		state_json TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL,
		last_active_at TEXT NOT NULL,
		archived_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_archived ON sessions(archived_at);

	CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		message_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		PRIMARY KEY (session_id, seq)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// ArchiveSession writes t in one transaction. Busy and locked errors are
// retried with exponential backoff.
func (s *SQLiteStore) ArchiveSession(ctx context.Context, t *Transcript) error {
	if t == nil || t.Session == nil || t.State == nil {
		return errors.New("archive session: incomplete transcript")
	}
	if t.ArchivedAt.IsZero() {
		t.ArchivedAt = time.Now().UTC()
	}

	var err error
	for i := 0; i < s.maxRetries; i++ {
		err = s.archiveOnce(ctx, t)
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == s.maxRetries-1 {
			break
		}
		delay := s.baseDelay * time.Duration(1<<i)
		slog.Debug("Database locked during archive, retrying",
			"session_id", t.Session.ID,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("archive session %s: %w", t.Session.ID, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("archive session %s: %w", t.Session.ID, err)
}

func (s *SQLiteStore) archiveOnce(ctx context.Context, t *Transcript) error {
	state, err := json.Marshal(t.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sess := t.Session
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, scenario_id, scenario_name, script_id, script_name,
			stage, phase, state_json, reason, created_at, last_active_at, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			scenario_id = excluded.scenario_id,
			scenario_name = excluded.scenario_name,
			script_id = excluded.script_id,
			script_name = excluded.script_name,
			stage = excluded.stage,
			phase = excluded.phase,
			state_json = excluded.state_json,
			reason = excluded.reason,
			last_active_at = excluded.last_active_at,
			archived_at = excluded.archived_at`,
		sess.ID, nullString(sess.ScenarioID), nullString(sess.ScenarioName),
		nullString(sess.ScriptID), nullString(sess.ScriptName),
		t.State.Stage.ID(), sess.Phase, string(state), t.Reason,
		formatTime(sess.CreatedAt), formatTime(sess.LastActiveAt), formatTime(t.ArchivedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (session_id, seq, message_id, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer insert.Close()

	for i, m := range sess.Messages {
		if _, err := insert.ExecContext(ctx, sess.ID, i, m.ID, string(m.Role), m.Content, formatTime(m.Timestamp)); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetTranscript returns the archived transcript for sessionID, or nil.
func (s *SQLiteStore) GetTranscript(ctx context.Context, sessionID string) (*Transcript, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, scenario_id, scenario_name, script_id, script_name,
		       phase, state_json, reason, created_at, last_active_at, archived_at
		FROM sessions WHERE session_id = ?`, sessionID)

	var sess domain.Session
	var scenarioID, scenarioName, scriptID, scriptName sql.NullString
	var stateJSON, reason, createdAt, lastActive, archivedAt string

	err := row.Scan(
		&sess.ID, &scenarioID, &scenarioName, &scriptID, &scriptName,
		&sess.Phase, &stateJSON, &reason, &createdAt, &lastActive, &archivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.ScenarioID = scenarioID.String
	sess.ScenarioName = scenarioName.String
	sess.ScriptID = scriptID.String
	sess.ScriptName = scriptName.String
	sess.CreatedAt = parseTime(createdAt)
	sess.LastActiveAt = parseTime(lastActive)

	var state domain.SessionState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}

	msgs, err := s.messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Messages = msgs

	return &Transcript{Session: &sess, State: &state, Reason: reason, ArchivedAt: parseTime(archivedAt)}, nil
}

func (s *SQLiteStore) messages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, role, content, timestamp
		FROM messages WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	out := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var role, ts string
		if err := rows.Scan(&m.ID, &role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = domain.Role(role)
		m.Timestamp = parseTime(ts)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		slog.Warn("Invalid archived timestamp", "value", s, "error", err)
		return time.Time{}
	}
	return t
}

var _ Archive = (*SQLiteStore)(nil)
