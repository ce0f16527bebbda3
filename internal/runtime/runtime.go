package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"golang.org/x/time/rate"

	"github.com/roach88/ledgerbridge/internal/bridge"
)

// DefaultHandlerName is the message handler the script side posts to
// through window.webkit.messageHandlers.
const DefaultHandlerName = "bladeMessageHandler"

var (
	// ErrNotReady is returned by Submit while the environment is booting,
	// resetting or stopped.
	ErrNotReady = errors.New("script runtime is not ready")

	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("script runtime is stopped")

	errScriptTimeout = errors.New("script execution timed out")
)

// Options configures a Runtime.
type Options struct {
	// Bootstrap is the script source run on every boot. It defines the
	// functions that submissions call.
	Bootstrap string

	// BootstrapName names the bootstrap in stack traces.
	BootstrapName string

	// HandlerName is the window.webkit.messageHandlers entry.
	// Defaults to DefaultHandlerName.
	HandlerName string

	// SubmitRate limits submissions per second; zero means unlimited.
	SubmitRate float64

	// SubmitBurst is the limiter bucket size. Defaults to 1 when
	// SubmitRate is set.
	SubmitBurst int

	// ScriptTimeout interrupts a submission that runs longer; zero means
	// no limit. Replies posted later from timers are not affected.
	ScriptTimeout time.Duration

	// OnReady runs on the loop goroutine after every successful boot.
	// It must not block; dispatching calls is fine.
	OnReady func(epoch int64)
}

// Runtime is a goja-backed bridge.Transport.
//
// Thread-safety model:
//   - Ready, Submit, Attach, Reset, Stop, WaitReady: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Runtime struct {
	opts    Options
	queue   *jobQueue
	limiter *rate.Limiter
	ready   atomic.Bool
	epoch   atomic.Int64

	mu      sync.Mutex
	inbound bridge.Inbound
	boot    *bootSignal

	// Owned by the loop goroutine.
	vm        *goja.Runtime
	timers    map[int64]*time.Timer
	nextTimer int64
}

// bootSignal is closed once a boot attempt finishes.
type bootSignal struct {
	done   chan struct{}
	closed bool
	err    error
}

// New creates a Runtime. Nothing runs until Run is called.
func New(opts Options) *Runtime {
	if opts.HandlerName == "" {
		opts.HandlerName = DefaultHandlerName
	}
	if opts.BootstrapName == "" {
		opts.BootstrapName = "bootstrap.js"
	}

	r := &Runtime{
		opts:  opts,
		queue: newJobQueue(),
		boot:  &bootSignal{done: make(chan struct{})},
	}
	if opts.SubmitRate > 0 {
		burst := opts.SubmitBurst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opts.SubmitRate), burst)
	}
	return r
}

// Ready implements bridge.Transport.
func (r *Runtime) Ready() bool {
	return r.ready.Load()
}

// Attach implements bridge.Transport.
func (r *Runtime) Attach(in bridge.Inbound) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbound = in
}

// Submit implements bridge.Transport. The script runs later on the loop
// goroutine.
//
// The job is stamped with the current epoch. A Reset that lands between
// the ready check and the enqueue leaves a stale job, which the loop
// skips; its call was already failed by the reset.
func (r *Runtime) Submit(s bridge.Submission) error {
	epoch := r.epoch.Load()
	if !r.ready.Load() || r.epoch.Load() != epoch {
		return ErrNotReady
	}
	if !r.queue.Enqueue(job{kind: jobSubmit, submission: s, epoch: epoch}) {
		return ErrStopped
	}
	return nil
}

// Epoch returns the number of successful boots so far.
func (r *Runtime) Epoch() int64 {
	return r.epoch.Load()
}

// WaitReady blocks until the current boot attempt finishes and returns its
// error, or until ctx ends.
func (r *Runtime) WaitReady(ctx context.Context) error {
	r.mu.Lock()
	sig := r.boot
	r.mu.Unlock()

	select {
	case <-sig.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return sig.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset discards the current environment and boots a fresh one.
//
// Submissions still queued for the old environment are dropped; their
// calls, like every other pending call, fail with TRANSPORT_RESET when the
// loop processes the reset. Submit returns ErrNotReady until the new
// environment is up.
func (r *Runtime) Reset() {
	r.ready.Store(false)

	r.mu.Lock()
	if r.boot.closed {
		r.boot = &bootSignal{done: make(chan struct{})}
	}
	r.mu.Unlock()

	dropped := r.queue.DropSubmissions()
	if len(dropped) > 0 {
		slog.Info("dropped queued submissions for reset", "count", len(dropped))
	}
	r.queue.Enqueue(job{kind: jobReset})
}

// Stop closes the queue. Run drains pending calls and returns once queued
// jobs are done.
func (r *Runtime) Stop() {
	r.ready.Store(false)
	r.queue.Close()
}

// Run boots the environment and executes queued jobs until ctx ends or
// Stop is called. A failing initial boot is returned as an error.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (r *Runtime) Run(ctx context.Context) error {
	slog.Info("script runtime starting", "handler", r.opts.HandlerName)

	if err := r.bootVM(); err != nil {
		r.shutdown()
		return err
	}

	for {
		if j, ok := r.queue.TryDequeue(); ok {
			r.execute(ctx, j)
			continue
		}
		if r.queue.Closed() {
			r.shutdown()
			slog.Info("script runtime stopped")
			return nil
		}

		select {
		case <-ctx.Done():
			r.queue.Close()
			r.shutdown()
			slog.Info("script runtime stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-r.queue.Wait():
		}
	}
}

func (r *Runtime) execute(ctx context.Context, j job) {
	switch j.kind {
	case jobSubmit:
		if j.epoch != r.epoch.Load() || r.vm == nil {
			slog.Debug("skipping submission from a previous environment", "id", j.submission.ID, "epoch", j.epoch)
			return
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				r.postFault(j.submission.ID, "Cancelled", err.Error())
				return
			}
		}
		r.runSubmission(j.submission)

	case jobCallback:
		if j.epoch != r.epoch.Load() || r.vm == nil {
			return // scheduled by a dead environment
		}
		j.callback()

	case jobReset:
		slog.Info("resetting script runtime", "epoch", r.epoch.Load())
		r.teardown()
		r.notifyReset()
		if err := r.bootVM(); err != nil {
			slog.Error("script runtime failed to reboot", "error", err)
		}
	}
}

func (r *Runtime) runSubmission(s bridge.Submission) {
	vm := r.vm
	var timer *time.Timer
	fired := make(chan struct{})
	if r.opts.ScriptTimeout > 0 {
		timer = time.AfterFunc(r.opts.ScriptTimeout, func() {
			vm.Interrupt(errScriptTimeout)
			close(fired)
		})
	}

	_, err := vm.RunString(s.Script)

	if timer != nil {
		// A callback already in flight must land before the clear, or
		// its interrupt hits the next submission.
		if !timer.Stop() {
			<-fired
		}
		vm.ClearInterrupt()
	}
	if err != nil {
		name, reason := scriptFault(err)
		slog.Warn("script raised an exception", "id", s.ID, "name", name, "reason", reason)
		r.postFault(s.ID, name, reason)
	}
}

// bootVM builds a new VM, installs the globals and runs the bootstrap.
func (r *Runtime) bootVM() error {
	epoch := r.epoch.Add(1)
	r.vm = goja.New()
	r.timers = make(map[int64]*time.Timer)

	err := r.installGlobals(r.vm)
	if err == nil {
		_, err = r.vm.RunScript(r.opts.BootstrapName, r.opts.Bootstrap)
	}
	if err != nil {
		err = fmt.Errorf("boot %s: %w", r.opts.BootstrapName, err)
		r.teardown()
		r.finishBoot(err)
		return err
	}

	r.ready.Store(true)
	slog.Info("script runtime ready", "epoch", epoch)

	// OnReady runs before waiters are released so that anything it
	// dispatches is already queued when WaitReady returns.
	if r.opts.OnReady != nil {
		r.opts.OnReady(epoch)
	}
	r.finishBoot(nil)
	return nil
}

func (r *Runtime) finishBoot(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.boot.closed {
		r.boot = &bootSignal{done: make(chan struct{})}
	}
	r.boot.err = err
	r.boot.closed = true
	close(r.boot.done)
}

func (r *Runtime) teardown() {
	r.ready.Store(false)
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.vm = nil
}

func (r *Runtime) shutdown() {
	r.teardown()
	r.notifyReset()
}

func (r *Runtime) notifyReset() {
	r.mu.Lock()
	in := r.inbound
	r.mu.Unlock()

	if in != nil {
		in.HandleReset()
	}
}

// deliver hands one posted message to the attached Inbound.
func (r *Runtime) deliver(text string) {
	r.mu.Lock()
	in := r.inbound
	r.mu.Unlock()

	if in == nil {
		slog.Warn("dropping script message, no inbound attached", "size", len(text))
		return
	}
	in.HandleMessage(text)
}

// postFault reports a failure for id as if the script had posted it.
func (r *Runtime) postFault(id, name, reason string) {
	raw, err := json.Marshal(bridge.Envelope{
		CompletionKey: id,
		Error:         &bridge.RemoteFault{Name: name, Reason: reason},
	})
	if err != nil {
		slog.Error("failed to encode fault envelope", "id", id, "error", err)
		return
	}
	r.deliver(string(raw))
}

// scriptFault extracts a name and reason from a goja error.
func scriptFault(err error) (name, reason string) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if obj, ok := ex.Value().(*goja.Object); ok {
			name = valueString(obj.Get("name"))
			reason = valueString(obj.Get("message"))
		}
		if name == "" {
			name = "Error"
		}
		if reason == "" {
			reason = ex.Value().String()
		}
		return name, reason
	}

	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		return "Interrupted", fmt.Sprint(ie.Value())
	}
	return "ScriptError", err.Error()
}

func valueString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
