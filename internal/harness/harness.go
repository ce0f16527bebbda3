package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/journal"
	"github.com/roach88/ledgerbridge/internal/params"
	"github.com/roach88/ledgerbridge/internal/runtime"
	"github.com/roach88/ledgerbridge/internal/testutil"
)

// DefaultSession is the journal session of scenarios that do not name one.
const DefaultSession = "scenario"

// journalEpoch anchors the journal clock so timestamps are reproducible.
var journalEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const bootTimeout = 10 * time.Second

// Run executes a scenario and returns the result.
//
// The scenario gets a fresh runtime over its script and an in-memory
// journal. Setup calls must succeed; a failing setup call is returned as an
// error. Flow outcomes are checked against their expect clauses and then
// every assertion is evaluated.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	src, err := os.ReadFile(scenario.Script)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	session := scenario.Session
	if session == "" {
		session = DefaultSession
	}
	j, err := journal.Open(":memory:",
		journal.WithSessions(testutil.FixedSession(session)),
		journal.WithNow(testutil.NewStepClock(journalEpoch, time.Millisecond).Now),
	)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	rec := newRecorder()
	rt := runtime.New(runtime.Options{
		Bootstrap:     string(src),
		BootstrapName: filepath.Base(scenario.Script),
		HandlerName:   scenario.HandlerName,
	})
	b := bridge.New(rt,
		bridge.WithIDGenerator(bridge.NewSequentialIDs()),
		bridge.WithObserver(j),
		bridge.WithObserver(rec),
	)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- rt.Run(runCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	if err := waitReady(ctx, rt); err != nil {
		return nil, fmt.Errorf("boot %s: %w", scenario.Script, err)
	}

	r := &runner{ctx: ctx, bridge: b, runtime: rt, rec: rec, clock: bridge.NewClock()}
	result := NewResult()

	for i, step := range scenario.Setup {
		out, err := r.call(step)
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
		if out.Err != nil {
			return nil, fmt.Errorf("setup[%d] %s failed: %w", i, step.Call, out.Err)
		}
	}

	for i, step := range scenario.Flow {
		if step.Reset {
			if err := r.reset(); err != nil {
				return nil, fmt.Errorf("flow[%d]: %w", i, err)
			}
			result.Trace = append(result.Trace, TraceEvent{Type: EventReset, Seq: r.clock.Next()})
			continue
		}

		callEv := r.prepare(step)
		out, err := r.call(step)
		if err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		outEv := outcomeEvent(r.clock.Next(), out)
		callEv.ID = outEv.ID
		callEv.Script = rec.script(outEv.ID)
		result.Trace = append(result.Trace, callEv, outEv)

		if step.Expect != nil {
			if err := checkExpect(step.Expect, outEv); err != nil {
				result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step.Call, err))
			}
		}
	}

	records, err := j.List(ctx, journal.Filter{Session: j.Session()})
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	for _, err := range EvaluateAssertions(scenario.Assertions, result.Trace, records) {
		result.AddError(err.Error())
	}

	slog.Debug("scenario finished", "name", scenario.Name, "pass", result.Pass, "calls", len(result.Calls()))
	return result, nil
}

func waitReady(ctx context.Context, rt *runtime.Runtime) error {
	ctx, cancel := context.WithTimeout(ctx, bootTimeout)
	defer cancel()
	return rt.WaitReady(ctx)
}

// runner drives one scenario's steps.
type runner struct {
	ctx     context.Context
	bridge  *bridge.Bridge
	runtime *runtime.Runtime
	rec     *recorder
	clock   *bridge.Clock
}

// prepare builds the call event before dispatch so it takes the earlier seq.
func (r *runner) prepare(step Step) TraceEvent {
	return TraceEvent{
		Type:     EventCall,
		Seq:      r.clock.Next(),
		Function: step.Call,
		Args:     step.Args,
	}
}

// call dispatches one step and waits until every observer has seen its
// outcome, so the journal row is final when call returns.
func (r *runner) call(step Step) (bridge.Outcome, error) {
	args, err := ConvertArgs(step.Args)
	if err != nil {
		return bridge.Outcome{}, err
	}

	timeout := defaultStepTimeout
	if step.Timeout != "" {
		timeout, _ = time.ParseDuration(step.Timeout)
	}
	ctx, cancel := context.WithTimeout(r.ctx, timeout)
	defer cancel()

	early := make(chan error, 1)
	id := r.bridge.Dispatch(bridge.Call{Function: step.Call, Args: args}, bridge.Expect[json.RawMessage](
		nil,
		func(err error) {
			select {
			case early <- err:
			default:
			}
		},
	))
	if id == "" {
		return bridge.Outcome{Function: step.Call, Err: <-early}, nil
	}

	wait := r.rec.await(id)
	select {
	case out := <-wait:
		return out, nil
	case <-ctx.Done():
		r.bridge.Evict(id, bridge.NewTimeoutError(id, ctx.Err()))
		return <-wait, nil
	}
}

// reset tears the environment down and waits for the next boot.
func (r *runner) reset() error {
	r.runtime.Reset()
	if err := waitReady(r.ctx, r.runtime); err != nil {
		return fmt.Errorf("reboot after reset: %w", err)
	}
	return nil
}

func outcomeEvent(seq int64, out bridge.Outcome) TraceEvent {
	ev := TraceEvent{Type: EventOutcome, Seq: seq, Function: out.Function, ID: out.ID}
	if out.Err == nil {
		ev.Outcome = OutcomeOK
		if len(out.Data) > 0 {
			var v any
			if err := json.Unmarshal(out.Data, &v); err == nil {
				ev.Data = v
			}
		}
		return ev
	}

	ev.Outcome = string(bridge.CodeOf(out.Err))
	if ev.Outcome == "" {
		ev.Outcome = out.Err.Error()
	}
	var be *bridge.Error
	if errors.As(out.Err, &be) {
		ev.ErrorName = be.Name
		ev.ErrorReason = be.Reason
	}
	return ev
}

// ConvertArgs maps decoded YAML or JSON arguments onto values the bridge
// renders. Lists of strings become []string; a {params: [...]} map becomes
// a params.List. Scalars pass through.
func ConvertArgs(in []any) ([]any, error) {
	out := make([]any, len(in))
	for i, a := range in {
		switch v := a.(type) {
		case []any:
			ss := make([]string, len(v))
			for k, e := range v {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("args[%d][%d]: lists must hold strings, got %T", i, k, e)
				}
				ss[k] = s
			}
			out[i] = ss
		case map[string]any:
			typed, ok := v["params"].([]any)
			if !ok || len(v) != 1 {
				return nil, fmt.Errorf("args[%d]: a map argument must be {params: [...]}", i)
			}
			l, err := params.FromTyped(typed)
			if err != nil {
				return nil, fmt.Errorf("args[%d]: %w", i, err)
			}
			out[i] = l
		default:
			out[i] = v
		}
	}
	return out, nil
}

// recorder is the bridge observer that hands outcomes back to steps.
type recorder struct {
	mu      sync.Mutex
	scripts map[string]string
	waiters map[string]chan bridge.Outcome
	done    map[string]bridge.Outcome
}

func newRecorder() *recorder {
	return &recorder{
		scripts: make(map[string]string),
		waiters: make(map[string]chan bridge.Outcome),
		done:    make(map[string]bridge.Outcome),
	}
}

func (r *recorder) CallDispatched(id, _, script string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scripts[id] = script
}

func (r *recorder) CallResolved(o bridge.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.waiters[o.ID]; ok {
		delete(r.waiters, o.ID)
		ch <- o
		return
	}
	r.done[o.ID] = o
}

func (r *recorder) ProtocolError(kind string, err error) {
	slog.Warn("scenario protocol error", "kind", kind, "error", err)
}

// await returns a channel that receives id's outcome exactly once.
func (r *recorder) await(id string) <-chan bridge.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan bridge.Outcome, 1)
	if o, ok := r.done[id]; ok {
		delete(r.done, id)
		ch <- o
		return ch
	}
	r.waiters[id] = ch
	return ch
}

func (r *recorder) script(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scripts[id]
}
