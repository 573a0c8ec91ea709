package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a collaboration scenario: users editing, publishing and
// syncing one item version, followed by assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Item and Version address the version every step works on.
	Item    string `yaml:"item"`
	Version string `yaml:"version"`

	// Steps are executed in order, each by the named user.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	// Supported types: element, conflicts, revisions, status
	Assertions []Assertion `yaml:"assertions"`

	// Snapshot lists the users whose private trees go into the golden file.
	Snapshot []string `yaml:"snapshot,omitempty"`
}

// Step is one operation performed by one user.
type Step struct {
	User string         `yaml:"user"`
	Op   string         `yaml:"op"`
	Args map[string]any `yaml:"args,omitempty"`

	// Expect specifies the expected outcome.
	// If nil, the step must succeed and nothing else is checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected error code. Empty means the step succeeds.
	Error string `yaml:"error,omitempty"`

	// Conflicted checks sync, force_sync and resolve results: whether
	// conflicts remain staged.
	Conflicted *bool `yaml:"conflicted,omitempty"`

	// Published checks publish results: whether a revision was created.
	Published *bool `yaml:"published,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "element": the user's element ID has the Expect fields, or is
	//   absent when Missing is set
	// - "conflicts": the user's version has Count conflicted elements
	// - "revisions": the version has Count public revisions
	// - "status": the user's version has sync status Status
	Type string `yaml:"type"`

	User    string         `yaml:"user,omitempty"`
	ID      string         `yaml:"id,omitempty"`
	Expect  map[string]any `yaml:"expect,omitempty"`
	Missing bool           `yaml:"missing,omitempty"`
	Count   int            `yaml:"count,omitempty"`
	Status  string         `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertElement   = "element"
	AssertConflicts = "conflicts"
	AssertRevisions = "revisions"
	AssertStatus    = "status"
)

// Step operation names.
const (
	OpCreateVersion = "create_version"
	OpUpdateVersion = "update_version"
	OpDeleteVersion = "delete_version"
	OpDeleteItem    = "delete_item"
	OpCreateElement = "create_element"
	OpUpdateElement = "update_element"
	OpDeleteElement = "delete_element"
	OpPublish       = "publish"
	OpSync          = "sync"
	OpForceSync     = "force_sync"
	OpRevert        = "revert"
	OpResolve       = "resolve"
)

// requiredArgs lists the arguments each operation cannot run without.
var requiredArgs = map[string][]string{
	OpCreateVersion: nil,
	OpUpdateVersion: nil,
	OpDeleteVersion: nil,
	OpDeleteItem:    nil,
	OpCreateElement: {"id"},
	OpUpdateElement: {"id"},
	OpDeleteElement: {"id"},
	OpPublish:       nil,
	OpSync:          nil,
	OpForceSync:     nil,
	OpRevert:        {"revision"},
	OpResolve:       {"id", "resolution"},
}

// elementFields are the keys an element assertion may check.
var elementFields = map[string]bool{
	"name":        true,
	"description": true,
	"namespace":   true,
	"parent":      true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Item == "" || s.Version == "" {
		return fmt.Errorf("item and version are required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.User == "" {
			return fmt.Errorf("steps[%d]: user is required", i)
		}
		required, known := requiredArgs[step.Op]
		if !known {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		for _, arg := range required {
			if _, ok := step.Args[arg]; !ok {
				return fmt.Errorf("steps[%d]: %s requires arg %q", i, step.Op, arg)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertElement:
		if a.User == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: user and id are required for element", index)
		}
		if !a.Missing && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect or missing is required for element", index)
		}
		for field := range a.Expect {
			if !elementFields[field] {
				return fmt.Errorf("assertions[%d]: unknown element field %q", index, field)
			}
		}
	case AssertConflicts:
		if a.User == "" {
			return fmt.Errorf("assertions[%d]: user is required for conflicts", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertRevisions:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertStatus:
		if a.User == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: user and status are required for status", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
