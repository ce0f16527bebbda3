package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/ledgerbridge/internal/journal"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			switch event.Type {
			case EventCall:
				fmt.Fprintf(&buf, "  [%d] %s %v\n", i+1, event.Function, event.Args)
			case EventOutcome:
				fmt.Fprintf(&buf, "  [%d]   -> %s\n", i+1, event.Outcome)
			case EventReset:
				fmt.Fprintf(&buf, "  [%d] reset\n", i+1)
			}
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against the trace and the
// scenario's journal rows. It returns one error per failed assertion.
func EvaluateAssertions(assertions []Assertion, trace []TraceEvent, records []journal.Record) []error {
	var errs []error
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(trace, a)
		case AssertTraceCount:
			err = assertTraceCount(trace, a)
		case AssertJournalStatus:
			err = assertJournalStatus(records, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// assertTraceContains checks for a call to the function whose leading
// arguments equal the assertion's args.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type == EventCall && event.Function == assertion.Function {
			if argsPrefix(event.Args, assertion.Args) {
				return nil
			}
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("call %s with args %v", assertion.Function, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that functions were first called in the given
// order. Intervening calls are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventCall {
			continue
		}
		if _, seen := positions[event.Function]; !seen {
			positions[event.Function] = i + 1 // 1-indexed for readability
		}
	}

	for _, fn := range assertion.Functions {
		if positions[fn] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all functions called: %v", assertion.Functions),
				Actual:   fmt.Sprintf("missing call: %s", fn),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Functions); i++ {
		prev := assertion.Functions[i-1]
		curr := assertion.Functions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", assertion.Functions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the function was called exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventCall && event.Function == assertion.Function {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d calls to %s", assertion.Count, assertion.Function),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertJournalStatus counts journal rows with the status, optionally
// restricted to one function. Setup calls are journaled too.
func assertJournalStatus(records []journal.Record, assertion Assertion) error {
	count := 0
	for _, r := range records {
		if string(r.Status) != assertion.Status {
			continue
		}
		if assertion.Function != "" && r.Function != assertion.Function {
			continue
		}
		count++
	}

	if count != assertion.Count {
		what := "calls"
		if assertion.Function != "" {
			what = assertion.Function + " calls"
		}
		return &AssertionError{
			Type:     AssertJournalStatus,
			Expected: fmt.Sprintf("%d %s journaled as %s", assertion.Count, what, assertion.Status),
			Actual:   fmt.Sprintf("%d", count),
		}
	}
	return nil
}

// checkExpect compares one outcome against its expect clause.
func checkExpect(want *Expect, got TraceEvent) error {
	if got.Outcome != want.Outcome {
		detail := ""
		if got.ErrorName != "" || got.ErrorReason != "" {
			detail = fmt.Sprintf(" (%s: %s)", got.ErrorName, got.ErrorReason)
		}
		return fmt.Errorf("expected outcome %s, got %s%s", want.Outcome, got.Outcome, detail)
	}
	if want.ErrorName != "" && got.ErrorName != want.ErrorName {
		return fmt.Errorf("expected error name %q, got %q", want.ErrorName, got.ErrorName)
	}
	if want.ErrorReason != "" && got.ErrorReason != want.ErrorReason {
		return fmt.Errorf("expected error reason %q, got %q", want.ErrorReason, got.ErrorReason)
	}
	if want.Data != nil {
		expected, err := normalize(want.Data)
		if err != nil {
			return fmt.Errorf("expect data: %w", err)
		}
		if !matchSubset(got.Data, expected) {
			return fmt.Errorf("data %v does not contain %v", got.Data, expected)
		}
	}
	return nil
}

// normalize converts decoded YAML into the shapes encoding/json produces,
// so integers compare equal to float64 payload numbers.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchSubset reports whether actual contains expected. Maps match when
// every expected key is present and matches; extra keys are ignored.
// Slices must have the same length and match element-wise.
func matchSubset(actual, expected any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, ev := range exp {
			av, exists := act[k]
			if !exists || !matchSubset(av, ev) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchSubset(act[i], exp[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(actual, expected)
}

// argsPrefix reports whether expected is a prefix of actual.
func argsPrefix(actual, expected []any) bool {
	if len(expected) > len(actual) {
		return false
	}
	a, err := normalize(actual[:len(expected)])
	if err != nil {
		return false
	}
	e, err := normalize(expected)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(a, e)
}
