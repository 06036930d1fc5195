// Package chat runs one therapy turn: it drafts the session, composes the
// prompt, streams the generated reply to an EventSink and commits.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/mpt-session/internal/domain"
	"github.com/ashureev/mpt-session/internal/llm"
	"github.com/ashureev/mpt-session/internal/metrics"
	"github.com/ashureev/mpt-session/internal/session"
)

// ErrGenerationUnavailable is returned when generation fails before it
// produced any output. The session is left unchanged.
var ErrGenerationUnavailable = errors.New("generation unavailable")

// FallbackReply is committed and sent when the backend completes without
// producing any text.
const FallbackReply = "Произошла ошибка. Пожалуйста, попробуй ещё раз."

// Request is one inbound client message.
type Request struct {
	Message    string
	SessionID  string
	ScenarioID string
}

// Meta describes the session a turn runs in. Nil pointers mean "not set".
type Meta struct {
	SessionID    string  `json:"sessionId"`
	ScenarioID   *string `json:"scenarioId"`
	ScenarioName *string `json:"scenarioName"`
	ScriptID     *string `json:"scriptId"`
	ScriptName   *string `json:"scriptName"`
	Stage        string  `json:"stage"`
	StageName    string  `json:"stageName"`
}

// Done closes a successful turn.
type Done struct {
	Stage string `json:"stage"`
	Phase string `json:"phase"`
}

// EventSink receives the events of a turn in order: Meta, zero or more
// Chunk, then Done or Error. Returning an error from any method means the
// caller is gone.
type EventSink interface {
	Meta(Meta) error
	Chunk(content string) error
	Done(Done) error
	Error(message string) error
}

// Service wires the registry to a generator.
type Service struct {
	reg *session.Registry
	gen llm.Generator
}

// NewService creates a chat service.
func NewService(reg *session.Registry, gen llm.Generator) *Service {
	return &Service{reg: reg, gen: gen}
}

// MetaFor builds the Meta of an entry.
func MetaFor(e *session.Entry) Meta {
	s := e.Session
	return Meta{
		SessionID:    s.ID,
		ScenarioID:   optional(s.ScenarioID),
		ScenarioName: optional(s.ScenarioName),
		ScriptID:     optional(s.ScriptID),
		ScriptName:   optional(s.ScriptName),
		Stage:        e.State.Stage.ID(),
		StageName:    e.State.Stage.Name(),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RunTurn processes req and streams the reply to sink.
//
// A non-nil error means nothing was sent to sink and nothing was stored:
// session.ErrTurnInProgress, session.ErrCapacity,
// catalog.ErrUnknownScenario, ErrGenerationUnavailable, or ctx's error when
// the caller went away before the first fragment. Once output has
// started the turn is always committed and RunTurn returns nil; failures
// after that point are reported through sink.
//
//nolint:gocyclo // Stream outcomes are kept together to preserve the commit rules.
func (s *Service) RunTurn(ctx context.Context, req Request, sink EventSink) error {
	start := time.Now()
	turn, err := s.reg.Begin(ctx, req.SessionID, req.ScenarioID)
	if err != nil {
		metrics.RecordTurn(metrics.OutcomeRejected)
		return err
	}
	turn.Receive(req.Message)
	system := turn.Prompt()
	sessionID := turn.Draft.Session.ID

	next, stop := iter.Pull2(s.gen.Stream(ctx, system, turn.Draft.Session.Messages))
	defer stop()

	first, genErr, ok := next()
	if ok && genErr != nil && ctx.Err() != nil {
		turn.Discard()
		metrics.RecordTurn(metrics.OutcomeDisconnected)
		slog.Info("Client went away before output", "session_id", sessionID, "error", genErr)
		return fmt.Errorf("turn canceled: %w", ctx.Err())
	}
	if ok && genErr != nil {
		turn.Discard()
		metrics.RecordGenerationError(metrics.PhasePreStream)
		metrics.RecordTurn(metrics.OutcomeRejected)
		slog.Error("Generation failed before output", "session_id", sessionID, "error", genErr)
		return fmt.Errorf("%w: %w", ErrGenerationUnavailable, genErr)
	}
	metrics.ObserveFirstFragment(time.Since(start))

	outcome := metrics.OutcomeOK
	var reply strings.Builder
	var streamErr error
	chunks := 0

	send := func(frag string) bool {
		if err := sink.Chunk(frag); err != nil {
			slog.Warn("Client went away during stream", "session_id", sessionID, "error", err)
			outcome = metrics.OutcomeDisconnected
			return false
		}
		reply.WriteString(frag)
		chunks++
		return true
	}

	switch {
	case sink.Meta(MetaFor(turn.Draft)) != nil:
		outcome = metrics.OutcomeDisconnected
	case !ok:
		outcome = metrics.OutcomeEmpty
		send(FallbackReply)
	default:
		if send(first) {
			for {
				frag, err, more := next()
				if !more {
					break
				}
				if err != nil {
					streamErr = err
					break
				}
				if !send(frag) {
					break
				}
			}
		}
	}
	stop()

	if streamErr != nil {
		if ctx.Err() != nil {
			outcome = metrics.OutcomeDisconnected
		} else {
			outcome = metrics.OutcomePartial
			metrics.RecordGenerationError(metrics.PhaseMidStream)
		}
	}

	if text := reply.String(); text != "" {
		turn.Reply(text)
	}
	turn.Commit()

	committed := turn.Draft
	done := Done{Stage: committed.State.Stage.ID(), Phase: committed.Session.Phase}
	switch outcome {
	case metrics.OutcomeOK, metrics.OutcomeEmpty:
		if err := sink.Done(done); err != nil {
			slog.Debug("Failed to send done event", "session_id", sessionID, "error", err)
		}
	case metrics.OutcomePartial:
		slog.Error("Generation failed mid-stream", "session_id", sessionID, "chunks", chunks, "error", streamErr)
		if err := sink.Error(streamErr.Error()); err != nil {
			slog.Debug("Failed to send error event", "session_id", sessionID, "error", err)
		}
	}

	metrics.RecordTurn(outcome)
	metrics.ObserveGeneration(outcome, time.Since(start))
	slog.Info("Chat turn completed",
		"session_id", sessionID,
		"stage", committed.State.Stage.ID(),
		"transitioned", turn.Transitioned(),
		"outcome", outcome,
		"chunks", chunks,
		"reply_length", reply.Len(),
		"duration", time.Since(start),
	)
	return nil
}

// Snapshot returns the stored entry for id.
func (s *Service) Snapshot(id string) (*session.Entry, error) {
	return s.reg.Get(id)
}

// NewSession creates an empty session.
func (s *Service) NewSession(ctx context.Context, scenarioID string) (*session.Entry, error) {
	return s.reg.Create(ctx, scenarioID)
}

// Stages lists the stage table in session order.
func Stages() []domain.StageInfo {
	all := domain.Stages()
	out := make([]domain.StageInfo, 0, len(all))
	for _, st := range all {
		out = append(out, st.Info())
	}
	return out
}
