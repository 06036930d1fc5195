// Package catalog holds the static reference data of the session engine:
// scenarios, request categories, scripts and homework practices.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/ashureev/mpt-session/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultYAML []byte

// ErrUnknownScenario is returned when a caller names a scenario that is not
// in the catalog.
var ErrUnknownScenario = errors.New("unknown scenario")

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	Scenarios    []domain.Scenario        `yaml:"scenarios"`
	RequestTypes []domain.RequestCategory `yaml:"request_types"`
	Scripts      []domain.Script          `yaml:"scripts"`
	Practices    []domain.Practice        `yaml:"practices"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic("catalog: embedded catalog is invalid: " + err.Error())
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path yields Default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks identifiers are unique and the required entries exist.
func (c *Catalog) Validate() error {
	seen := map[string]bool{}
	for _, s := range c.Scenarios {
		if s.ID == "" || len(s.Keywords) == 0 {
			return fmt.Errorf("scenario %q: id and keywords are required", s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate scenario %q", s.ID)
		}
		seen[s.ID] = true
	}
	for _, rc := range c.RequestTypes {
		if rc.Type == domain.RequestGeneral {
			return errors.New("request type general is implicit and must not be listed")
		}
	}
	if c.DefaultScript() == nil {
		return errors.New("catalog has no scripts")
	}
	for _, id := range requiredPractices {
		if c.Practice(id) == nil {
			return fmt.Errorf("missing practice %q", id)
		}
	}
	return nil
}

// Practice identifiers the homework selector depends on.
const (
	PracticeMorningConnection = "morning-connection"
	PracticeBodyCheck         = "body-check"
	PracticeNewAction         = "new-action"
	PracticeMetaphorJournal   = "metaphor-journal"
)

var requiredPractices = []string{
	PracticeMorningConnection,
	PracticeBodyCheck,
	PracticeNewAction,
	PracticeMetaphorJournal,
}

// Scenario returns the scenario with the given id.
func (c *Catalog) Scenario(id string) (*domain.Scenario, error) {
	for i := range c.Scenarios {
		if c.Scenarios[i].ID == id {
			return &c.Scenarios[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
}

// RequestGuidance returns the prompt guidance for a request type.
func (c *Catalog) RequestGuidance(rt domain.RequestType) string {
	for _, rc := range c.RequestTypes {
		if rc.Type == rt {
			return rc.Guidance
		}
	}
	return ""
}

// Script returns the script with the given id, or nil.
func (c *Catalog) Script(id string) *domain.Script {
	for i := range c.Scripts {
		if c.Scripts[i].ID == id {
			return &c.Scripts[i]
		}
	}
	return nil
}

// DefaultScript returns the script flagged default, else the first one.
func (c *Catalog) DefaultScript() *domain.Script {
	for i := range c.Scripts {
		if c.Scripts[i].Default {
			return &c.Scripts[i]
		}
	}
	if len(c.Scripts) > 0 {
		return &c.Scripts[0]
	}
	return nil
}

// SelectScript picks the script for a session. A script bound to the
// scenario wins, then one bound to the request type, then one whose
// keywords occur in the message, then the default.
func (c *Catalog) SelectScript(message, scenarioID string, rt domain.RequestType) *domain.Script {
	if scenarioID != "" {
		for i := range c.Scripts {
			if slices.Contains(c.Scripts[i].Scenarios, scenarioID) {
				return &c.Scripts[i]
			}
		}
	}
	if rt != "" && rt != domain.RequestGeneral {
		for i := range c.Scripts {
			if slices.Contains(c.Scripts[i].RequestTypes, rt) {
				return &c.Scripts[i]
			}
		}
	}
	lower := strings.ToLower(message)
	if lower != "" {
		for i := range c.Scripts {
			for _, kw := range c.Scripts[i].Keywords {
				if strings.Contains(lower, strings.ToLower(kw)) {
					return &c.Scripts[i]
				}
			}
		}
	}
	return c.DefaultScript()
}

// Practice returns the practice with the given id, or nil.
func (c *Catalog) Practice(id string) *domain.Practice {
	for i := range c.Practices {
		if c.Practices[i].ID == id {
			return &c.Practices[i]
		}
	}
	return nil
}
