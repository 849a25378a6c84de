package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hlolower/internal/ir"
)

// Scenario defines one lowering test: a computation, the IR shape it must
// lower to, and input/output cases it must evaluate.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE spec files holding the computation.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// Computation names the computation to lower.
	Computation string `yaml:"computation"`

	// ElementTypes instantiates the scenario once per listed type, retyping
	// every tensor in the computation. Empty means the declared types.
	ElementTypes []string `yaml:"element_types,omitempty"`

	// Checks are filecheck directives applied to the rendered IR. ${type}
	// expands to the instance's rendered element type (si32, ui8).
	Checks string `yaml:"checks,omitempty"`

	// LowerError, when set, is the error code lowering must fail with.
	// Checks and cases are then not run.
	LowerError string `yaml:"lower_error,omitempty"`

	// Cases are evaluated in order against every instance.
	Cases []Case `yaml:"cases,omitempty"`
}

// Case is one evaluation: input buffers and the expected outputs or error.
// Inputs take the element type and dims of the matching function argument.
type Case struct {
	Name    string    `yaml:"name,omitempty"`
	Inputs  [][]int64 `yaml:"inputs"`
	Outputs [][]int64 `yaml:"outputs,omitempty"`

	// Error is the expected error code (e.g. SHAPE_MISMATCH).
	Error string `yaml:"error,omitempty"`
}

// label names the case in error messages.
func (c Case) label(i int) string {
	if c.Name != "" {
		return fmt.Sprintf("case %d (%s)", i, c.Name)
	}
	return fmt.Sprintf("case %d", i)
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to basePath instead of the scenario's
// own directory.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := parseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve spec paths BEFORE validation so existence checks see real paths
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

func parseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "case:" vs "cases:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
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
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if s.Computation == "" {
		return fmt.Errorf("computation is required")
	}
	if s.LowerError == "" && s.Checks == "" && len(s.Cases) == 0 {
		return fmt.Errorf("at least one of checks, cases or lower_error is required")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, name := range s.ElementTypes {
		if _, err := ir.ParseElementType(name); err != nil {
			return fmt.Errorf("element_types[%d]: %w", i, err)
		}
	}

	if s.LowerError != "" && !knownErrorCode(s.LowerError) {
		return fmt.Errorf("lower_error: unknown error code %q", s.LowerError)
	}

	for i, c := range s.Cases {
		if len(c.Inputs) == 0 {
			return fmt.Errorf("cases[%d]: inputs are required", i)
		}
		if c.Error == "" && len(c.Outputs) == 0 {
			return fmt.Errorf("cases[%d]: outputs or error is required", i)
		}
		if c.Error != "" && len(c.Outputs) > 0 {
			return fmt.Errorf("cases[%d]: outputs and error are mutually exclusive", i)
		}
		if c.Error != "" && !knownErrorCode(c.Error) {
			return fmt.Errorf("cases[%d]: unknown error code %q", i, c.Error)
		}
	}

	return nil
}

func knownErrorCode(code string) bool {
	switch ir.ErrorCode(code) {
	case ir.ErrCodeShapeMismatch, ir.ErrCodeTypeMismatch, ir.ErrCodeArityMismatch,
		ir.ErrCodeUnsupportedOperator, ir.ErrCodeInvalidGraph:
		return true
	}
	return false
}
