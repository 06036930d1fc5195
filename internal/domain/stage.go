package domain

import "fmt"

// Stage is one of the fixed, ordered phases of a therapy session.
// The zero value is the first stage.
type Stage int

const (
	StageSpaceCreation Stage = iota
	StageContextGathering
	StageRequestClarification
	StageStrategyExploration
	StageNeedDiscovery
	StageBodyWork
	StageImageCreation
	StageMetaPosition
	StageIntegration
	StageAuthoredAction
	StageClosing
)

// StageInfo is the static data associated with a Stage.
type StageInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var stageTable = [...]StageInfo{
	StageSpaceCreation:        {ID: "space-creation", Name: "Создание пространства"},
	StageContextGathering:     {ID: "context-gathering", Name: "Исследование запроса"},
	StageRequestClarification: {ID: "request-clarification", Name: "Уточнение запроса"},
	StageStrategyExploration:  {ID: "strategy-exploration", Name: "Исследование стратегии"},
	StageNeedDiscovery:        {ID: "need-discovery", Name: "Поиск потребности"},
	StageBodyWork:             {ID: "body-work", Name: "Работа с телом"},
	StageImageCreation:        {ID: "image-creation", Name: "Создание образа"},
	StageMetaPosition:         {ID: "meta-position", Name: "Метапозиция"},
	StageIntegration:          {ID: "integration", Name: "Интеграция"},
	StageAuthoredAction:       {ID: "authored-action", Name: "Новые действия"},
	StageClosing:              {ID: "closing", Name: "Практики внедрения"},
}

// Stages returns all stages in session order.
func Stages() []Stage {
	out := make([]Stage, len(stageTable))
	for i := range stageTable {
		out[i] = Stage(i)
	}
	return out
}

// FirstStage is where every session starts.
const FirstStage = StageSpaceCreation

// LastStage is terminal: it has no successor.
const LastStage = StageClosing

// Valid reports whether s is a member of the enumeration.
func (s Stage) Valid() bool {
	return s >= FirstStage && s <= LastStage
}

// Info returns the static data for s.
func (s Stage) Info() StageInfo {
	if !s.Valid() {
		return StageInfo{ID: fmt.Sprintf("stage(%d)", int(s)), Name: "?"}
	}
	return stageTable[s]
}

// ID returns the stable identifier, e.g. "body-work".
func (s Stage) ID() string { return s.Info().ID }

// Name returns the display name shown to clients.
func (s Stage) Name() string { return s.Info().Name }

func (s Stage) String() string { return s.ID() }

// Next returns the successor of s and false when s is terminal.
func (s Stage) Next() (Stage, bool) {
	if s >= LastStage {
		return s, false
	}
	return s + 1, true
}

// ParseStage resolves a stage identifier.
func ParseStage(id string) (Stage, bool) {
	for i, info := range stageTable {
		if info.ID == id {
			return Stage(i), true
		}
	}
	return 0, false
}

// MarshalText encodes the stage as its identifier.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(s.ID()), nil
}

// UnmarshalText decodes a stage identifier.
func (s *Stage) UnmarshalText(b []byte) error {
	st, ok := ParseStage(string(b))
	if !ok {
		return fmt.Errorf("unknown stage %q", string(b))
	}
	*s = st
	return nil
}
