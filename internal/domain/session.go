package domain

import (
	"maps"
	"slices"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleClient    Role = "client"
	RoleTherapist Role = "therapist"
)

// Message is a single entry of the conversation history.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the conversation record owned by the registry.
type Session struct {
	ID           string    `json:"sessionId"`
	Messages     []Message `json:"messages"`
	ScenarioID   string    `json:"scenarioId,omitempty"`
	ScenarioName string    `json:"scenarioName,omitempty"`
	ScriptID     string    `json:"scriptId,omitempty"`
	ScriptName   string    `json:"scriptName,omitempty"`
	Phase        string    `json:"phase"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// HasScenario reports whether a scenario has been locked in.
func (s *Session) HasScenario() bool {
	return s.ScenarioID != ""
}

// Append adds a message to the history and bumps the activity timestamp.
func (s *Session) Append(m Message) {
	s.Messages = append(s.Messages, m)
	if m.Timestamp.After(s.LastActiveAt) {
		s.LastActiveAt = m.Timestamp
	}
}

// LastTherapistMessage returns the most recent therapist reply, or "".
func (s *Session) LastTherapistMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleTherapist {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = slices.Clone(s.Messages)
	return &c
}

// TherapyContext is the accumulating memory of what the client revealed.
// Nullable fields are pointers; nil means "not yet captured".
type TherapyContext struct {
	ClientName    *string           `json:"clientName"`
	CurrentGoal   *string           `json:"currentGoal"`
	DeepNeed      *string           `json:"deepNeed"`
	BodySensation *string           `json:"bodySensation"`
	Metaphor      *string           `json:"metaphor"`
	EnergyLevel   *int              `json:"energyLevel"`
	NewActions    []string          `json:"newActions"`
	Homework      *string           `json:"homework"`
	StageData     map[string]string `json:"stageData"`
}

// StageDataStrategy is the StageData key for the client's current strategy.
const StageDataStrategy = "strategy"

// Clone returns a deep copy.
func (c TherapyContext) Clone() TherapyContext {
	out := c
	out.ClientName = clonePtr(c.ClientName)
	out.CurrentGoal = clonePtr(c.CurrentGoal)
	out.DeepNeed = clonePtr(c.DeepNeed)
	out.BodySensation = clonePtr(c.BodySensation)
	out.Metaphor = clonePtr(c.Metaphor)
	out.EnergyLevel = clonePtr(c.EnergyLevel)
	out.Homework = clonePtr(c.Homework)
	out.NewActions = slices.Clone(c.NewActions)
	out.StageData = maps.Clone(c.StageData)
	if out.StageData == nil {
		out.StageData = map[string]string{}
	}
	return out
}

// SessionState is the stage machine state that travels with a Session.
type SessionState struct {
	Stage               Stage          `json:"stage"`
	ResponseCount       int            `json:"responseCount"`
	StageHistory        []Stage        `json:"stageHistory"`
	RequestType         *RequestType   `json:"requestType"`
	LastClientMessage   string         `json:"lastClientMessage"`
	Confused            bool           `json:"confused"`
	ImportanceRating    *int           `json:"importanceRating"`
	MovementOffered     bool           `json:"movementOffered"`
	IntegrationComplete bool           `json:"integrationComplete"`
	Context             TherapyContext `json:"context"`
}

// NewSessionState returns the state of a fresh session.
func NewSessionState() *SessionState {
	return &SessionState{
		Stage:        FirstStage,
		StageHistory: []Stage{},
		Context: TherapyContext{
			NewActions: []string{},
			StageData:  map[string]string{},
		},
	}
}

// Clone returns a deep copy.
func (s *SessionState) Clone() *SessionState {
	c := *s
	c.StageHistory = slices.Clone(s.StageHistory)
	c.RequestType = clonePtr(s.RequestType)
	c.ImportanceRating = clonePtr(s.ImportanceRating)
	c.Context = s.Context.Clone()
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
