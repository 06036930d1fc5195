package stage

import (
	"testing"

	"github.com/ashureev/mpt-session/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateStartsAtFirstStage(t *testing.T) {
	st := domain.NewSessionState()
	assert.Equal(t, domain.StageSpaceCreation, st.Stage)
	assert.Empty(t, st.StageHistory)
	assert.False(t, ShouldTransition(st))
}

func TestTransitionHistoryIsPrefix(t *testing.T) {
	all := domain.Stages()
	for n := 0; n < len(all); n++ {
		st := domain.NewSessionState()
		for i := 0; i < n; i++ {
			require.True(t, Transition(st))
		}
		assert.Len(t, st.StageHistory, n)
		assert.Equal(t, all[:n], st.StageHistory)
		assert.Equal(t, all[n], st.Stage)
		assert.Zero(t, st.ResponseCount)
	}
}

func TestTransitionAtClosingIsNoop(t *testing.T) {
	st := domain.NewSessionState()
	for Transition(st) {
	}
	require.Equal(t, domain.StageClosing, st.Stage)
	history := append([]domain.Stage(nil), st.StageHistory...)

	st.ResponseCount = 5
	assert.False(t, Transition(st))
	assert.False(t, Transition(st))
	assert.Equal(t, domain.StageClosing, st.Stage)
	assert.Equal(t, history, st.StageHistory)
	assert.Equal(t, 5, st.ResponseCount)
	assert.False(t, ShouldTransition(st))
}

func TestLeavingIntegrationMarksComplete(t *testing.T) {
	st := domain.NewSessionState()
	st.Stage = domain.StageIntegration
	assert.False(t, st.IntegrationComplete)
	require.True(t, Transition(st))
	assert.True(t, st.IntegrationComplete)
	assert.Equal(t, domain.StageAuthoredAction, st.Stage)
}

func TestTurnGate(t *testing.T) {
	st := domain.NewSessionState()
	st.ResponseCount = DefaultMinResponses - 1
	assert.False(t, ShouldTransition(st))
	st.ResponseCount = DefaultMinResponses
	assert.True(t, ShouldTransition(st))
}

func TestContentGates(t *testing.T) {
	tests := []struct {
		stage domain.Stage
		fill  func(*domain.TherapyContext)
	}{
		{domain.StageRequestClarification, func(c *domain.TherapyContext) { c.CurrentGoal = domain.Ptr("спокойствие") }},
		{domain.StageNeedDiscovery, func(c *domain.TherapyContext) { c.DeepNeed = domain.Ptr("принятие") }},
		{domain.StageBodyWork, func(c *domain.TherapyContext) { c.BodySensation = domain.Ptr("тепло в груди") }},
		{domain.StageImageCreation, func(c *domain.TherapyContext) { c.Metaphor = domain.Ptr("солнце") }},
	}
	for _, tt := range tests {
		t.Run(tt.stage.ID(), func(t *testing.T) {
			st := domain.NewSessionState()
			st.Stage = tt.stage
			st.ResponseCount = 10
			assert.False(t, ShouldTransition(st))
			assert.Contains(t, Directive(st), "Ещё не получено")

			tt.fill(&st.Context)
			assert.True(t, ShouldTransition(st))
			assert.NotContains(t, Directive(st), "Ещё не получено")
		})
	}
}

func TestAdvanceMovesAtMostOnce(t *testing.T) {
	st := domain.NewSessionState()
	st.ResponseCount = 100
	assert.True(t, Advance(st))
	assert.Equal(t, domain.StageContextGathering, st.Stage)
	assert.False(t, Advance(st))
}

func TestDirectiveBodyWorkForbidsMetaphors(t *testing.T) {
	st := domain.NewSessionState()
	st.Stage = domain.StageBodyWork
	d := Directive(st)
	assert.Contains(t, d, domain.StageBodyWork.Name())
	assert.Contains(t, d, "Нельзя на этом этапе: вопросы про образы и метафоры")
	assert.Contains(t, d, "подвигать плечами")

	st.MovementOffered = true
	assert.Contains(t, Directive(st), "уже предлагалось")
}

func TestEveryStageHasRule(t *testing.T) {
	for _, s := range domain.Stages() {
		r := RuleFor(s)
		assert.NotEmpty(t, r.Task, s.ID())
		if s == domain.LastStage {
			assert.Zero(t, r.MinResponses)
			continue
		}
		assert.Equal(t, DefaultMinResponses, r.MinResponses, s.ID())
		if r.Gate != nil {
			assert.NotEmpty(t, r.Missing, s.ID())
		}
	}
}
