// Package domain contains core domain types for the MPT session engine.
package domain

// RequestType is a finer-grained classification of the client's issue.
type RequestType string

const (
	RequestRelationships RequestType = "relationships"
	RequestFear          RequestType = "fear"
	RequestResistance    RequestType = "resistance"
	RequestEnergyLoss    RequestType = "energy_loss"
	RequestGoal          RequestType = "goal"
	RequestTrauma        RequestType = "trauma"
	RequestIdentity      RequestType = "identity"
	RequestConflict      RequestType = "conflict"
	RequestHabits        RequestType = "habits"
	RequestPsychosomatic RequestType = "psychosomatic"
	RequestGeneral       RequestType = "general"
)

// Scenario is a named client-topic category with detection keywords.
type Scenario struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
}

// Script is a guided sequence of questions the therapist follows.
type Script struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description" yaml:"description"`
	Steps        []string      `json:"steps" yaml:"steps"`
	Scenarios    []string      `json:"scenarios,omitempty" yaml:"scenarios"`
	RequestTypes []RequestType `json:"requestTypes,omitempty" yaml:"request_types"`
	Keywords     []string      `json:"keywords,omitempty" yaml:"keywords"`
	Default      bool          `json:"-" yaml:"default"`
}

// Practice is a homework exercise offered in the closing stage.
type Practice struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// RequestCategory binds a RequestType to its detection keywords and the
// guidance injected into the prompt when it is detected.
type RequestCategory struct {
	Type     RequestType `yaml:"type"`
	Keywords []string    `yaml:"keywords"`
	Guidance string      `yaml:"guidance"`
}
