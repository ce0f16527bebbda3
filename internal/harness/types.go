package harness

// Trace event types.
const (
	EventCall    = "call"
	EventOutcome = "outcome"
	EventReset   = "reset"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Type        string `json:"type"`
	Seq         int64  `json:"seq"`
	Function    string `json:"function,omitempty"`
	ID          string `json:"id,omitempty"`
	Args        []any  `json:"args,omitempty"`
	Script      string `json:"script,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Data        any    `json:"data,omitempty"`
	ErrorName   string `json:"error_name,omitempty"`
	ErrorReason string `json:"error_reason,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists calls, outcomes and resets in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Calls returns the call events of the trace.
func (r *Result) Calls() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == EventCall {
			out = append(out, e)
		}
	}
	return out
}
