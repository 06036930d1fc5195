package session

import (
	"slices"

	"github.com/ashureev/mpt-session/internal/detect"
	"github.com/ashureev/mpt-session/internal/domain"
	"github.com/ashureev/mpt-session/internal/metrics"
	"github.com/ashureev/mpt-session/internal/prompt"
	"github.com/ashureev/mpt-session/internal/stage"
	"github.com/google/uuid"
)

// Turn is one client message and its reply, applied to a private draft.
// Nothing is visible to other callers until Commit.
type Turn struct {
	reg   *Registry
	Draft *Entry
	// New is true when the draft is a session that is not stored yet.
	New bool

	prior      string
	transition bool
	done       bool
}

// Receive applies a client message to the draft: it appends the message,
// runs the detectors and extractors, counts the response and performs at
// most one stage transition.
func (t *Turn) Receive(text string) {
	s, st := t.Draft.Session, t.Draft.State
	cat := t.reg.catalog
	now := t.reg.now()

	t.prior = s.LastTherapistMessage()
	s.Append(domain.Message{ID: uuid.NewString(), Role: domain.RoleClient, Content: text, Timestamp: now})

	if !s.HasScenario() {
		if sc := detect.Scenario(text, cat.Scenarios); sc != nil {
			s.ScenarioID, s.ScenarioName = sc.ID, sc.Name
		}
	}
	if st.RequestType == nil || *st.RequestType == domain.RequestGeneral {
		rt := detect.RequestType(text, cat.RequestTypes)
		st.RequestType = &rt
	}
	t.reselectScript(text)

	st.LastClientMessage = text
	st.Confused = detect.Confusion(text)
	if st.Context.ClientName == nil {
		if name := detect.ClientName(s.Messages); name != "" {
			st.Context.ClientName = &name
		}
	}
	if ratingExpected(st.Stage, t.prior) {
		if r, ok := detect.ImportanceRating(text); ok {
			st.ImportanceRating = &r
		}
	}
	extractContext(st, text)

	st.ResponseCount++
	if stage.Advance(st) {
		t.transition = true
		metrics.RecordTransition(st.Stage.ID())
	}
	if st.Stage == domain.StageClosing && st.Context.Homework == nil {
		hw := prompt.SelectHomework(st.Context)
		st.Context.Homework = &hw
	}
	s.Phase = st.Stage.Name()
}

// ratingExpected reports whether a number in the client message should be
// read as the importance rating. The rating belongs to the early stages;
// later it is only taken as an answer to an explicit rating question.
func ratingExpected(current domain.Stage, prior string) bool {
	return current <= domain.StageRequestClarification || detect.AsksRating(prior)
}

// reselectScript replaces the default script once something more specific
// is known. A specific script is kept for the rest of the session.
func (t *Turn) reselectScript(text string) {
	s, st := t.Draft.Session, t.Draft.State
	cat := t.reg.catalog
	if def := cat.DefaultScript(); s.ScriptID != "" && (def == nil || s.ScriptID != def.ID) {
		return
	}
	var rt domain.RequestType
	if st.RequestType != nil {
		rt = *st.RequestType
	}
	if sc := cat.SelectScript(text, s.ScenarioID, rt); sc != nil {
		s.ScriptID, s.ScriptName = sc.ID, sc.Name
	}
}

// Transitioned reports whether Receive moved the session to a new stage.
func (t *Turn) Transitioned() bool {
	return t.transition
}

// Prompt composes the system instruction for the draft and records what
// the instruction offered.
func (t *Turn) Prompt() string {
	st := t.Draft.State
	text := prompt.Compose(prompt.View{
		Session:        t.Draft.Session,
		State:          st,
		Catalog:        t.reg.catalog,
		PriorTherapist: t.prior,
	})
	if st.Stage == domain.StageBodyWork {
		st.MovementOffered = true
	}
	return text
}

// Reply appends the therapist message to the draft.
func (t *Turn) Reply(text string) {
	s := t.Draft.Session
	s.Append(domain.Message{ID: uuid.NewString(), Role: domain.RoleTherapist, Content: text, Timestamp: t.reg.now()})
	s.Phase = t.Draft.State.Stage.Name()
}

// Commit publishes the draft and releases the session. It is a no-op after
// Commit or Discard.
func (t *Turn) Commit() {
	if t.done {
		return
	}
	t.done = true
	t.reg.commit(t)
}

// Discard drops the draft and releases the session.
func (t *Turn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.reg.release(t.Draft.Session.ID)
}

// extractContext fills unset context fields from text. Each extractor is
// enabled from its stage onward and writes only while its field is unset.
func extractContext(st *domain.SessionState, text string) {
	c := &st.Context
	at := func(s domain.Stage) bool { return st.Stage >= s }

	if at(domain.StageRequestClarification) && c.CurrentGoal == nil {
		if v, ok := detect.Goal(text); ok {
			c.CurrentGoal = &v
		}
	}
	if at(domain.StageStrategyExploration) {
		if _, set := c.StageData[domain.StageDataStrategy]; !set {
			if v, ok := detect.Strategy(text); ok {
				if c.StageData == nil {
					c.StageData = map[string]string{}
				}
				c.StageData[domain.StageDataStrategy] = v
			}
		}
	}
	if at(domain.StageNeedDiscovery) && c.DeepNeed == nil {
		if v, ok := detect.Need(text); ok {
			c.DeepNeed = &v
		}
	}
	if at(domain.StageBodyWork) {
		if c.BodySensation == nil {
			if v, ok := detect.BodySensation(text); ok {
				c.BodySensation = &v
			}
		}
		if c.EnergyLevel == nil {
			if v, ok := detect.EnergyLevel(text); ok {
				c.EnergyLevel = &v
			}
		}
	}
	if at(domain.StageImageCreation) && c.Metaphor == nil {
		if v, ok := detect.Metaphor(text); ok {
			c.Metaphor = &v
		}
	}
	if at(domain.StageAuthoredAction) {
		for _, a := range detect.Actions(text) {
			if !slices.Contains(c.NewActions, a) {
				c.NewActions = append(c.NewActions, a)
			}
		}
	}
}
