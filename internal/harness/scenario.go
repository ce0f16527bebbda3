package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgerbridge/internal/bridge"
)

// Scenario defines one end-to-end run against a bootstrap script.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Script is the bootstrap script, relative to the scenario file.
	Script string `yaml:"script"`

	// HandlerName overrides the message handler name.
	HandlerName string `yaml:"handler_name,omitempty"`

	// Session is the journal session id. Defaults to "scenario".
	Session string `yaml:"session,omitempty"`

	// Setup calls run before the flow and must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main sequence of calls and resets.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and journal after the flow.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is either a call or a reset of the script environment.
type Step struct {
	// Call is the dotted function path, e.g. "bladeSdk.getBalance".
	Call string `yaml:"call,omitempty"`

	// Args are rendered as script literals. A {params: [...]} entry is a
	// typed parameter list.
	Args []any `yaml:"args,omitempty"`

	// Timeout bounds the call. Defaults to 5s.
	Timeout string `yaml:"timeout,omitempty"`

	// Reset tears the script environment down and waits for it to return.
	Reset bool `yaml:"reset,omitempty"`

	// Expect checks the call's outcome. If nil, any outcome is accepted.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected outcome of a call.
type Expect struct {
	// Outcome is "ok" or a bridge error code such as REMOTE_ERROR.
	Outcome string `yaml:"outcome"`

	// Data is matched against the payload with subset semantics: every
	// key given must be present and equal, extra keys are ignored.
	Data any `yaml:"data,omitempty"`

	ErrorName   string `yaml:"error_name,omitempty"`
	ErrorReason string `yaml:"error_reason,omitempty"`
}

// Assertion validates the trace or journal.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Function is the call path (trace_contains, trace_count, journal_status).
	Function string `yaml:"function,omitempty"`

	// Args are the expected leading arguments (trace_contains).
	Args []any `yaml:"args,omitempty"`

	// Functions is the expected call order (trace_order).
	Functions []string `yaml:"functions,omitempty"`

	// Count is the expected number of matches (trace_count, journal_status).
	Count int `yaml:"count,omitempty"`

	// Status is the journal status to count (journal_status).
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertJournalStatus = "journal_status"
)

// OutcomeOK is the Expect.Outcome of a successful call.
const OutcomeOK = "ok"

const defaultStepTimeout = 5 * time.Second

// LoadScenario reads and parses a scenario YAML file.
// The script path is resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Script != "" && !filepath.IsAbs(scenario.Script) {
		scenario.Script = filepath.Join(filepath.Dir(path), scenario.Script)
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
	if s.Script == "" {
		return fmt.Errorf("script is required")
	}
	if _, err := os.Stat(s.Script); os.IsNotExist(err) {
		return fmt.Errorf("script not found: %s", s.Script)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if step.Call == "" || step.Reset {
			return fmt.Errorf("setup[%d]: only calls are allowed", i)
		}
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch {
	case step.Reset && step.Call != "":
		return fmt.Errorf("a step is either a call or a reset")
	case !step.Reset && step.Call == "":
		return fmt.Errorf("call is required")
	case step.Reset && (step.Expect != nil || len(step.Args) > 0):
		return fmt.Errorf("reset takes no args or expect")
	}
	if step.Timeout != "" {
		if _, err := time.ParseDuration(step.Timeout); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
	}
	if step.Expect != nil && step.Expect.Outcome == "" {
		return fmt.Errorf("expect: outcome is required")
	}
	if step.Expect != nil && step.Expect.Outcome != OutcomeOK && !knownCode(step.Expect.Outcome) {
		return fmt.Errorf("expect: unknown outcome %q", step.Expect.Outcome)
	}
	return nil
}

func knownCode(code string) bool {
	switch bridge.ErrorCode(code) {
	case bridge.ErrCodeTransportNotReady, bridge.ErrCodeEncoding, bridge.ErrCodeProtocolDesync,
		bridge.ErrCodeRemote, bridge.ErrCodeDecode, bridge.ErrCodeTimeout, bridge.ErrCodeTransportReset:
		return true
	}
	return false
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: function is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Functions) == 0 {
			return fmt.Errorf("assertions[%d]: functions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: function is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertJournalStatus:
		switch a.Status {
		case "pending", "ok", "failed", "evicted":
		default:
			return fmt.Errorf("assertions[%d]: status must be pending, ok, failed or evicted", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal_status", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
