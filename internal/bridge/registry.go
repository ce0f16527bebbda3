package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Outcome describes how a registered call ended.
// Err is nil when the sink accepted the payload.
type Outcome struct {
	ID       string
	Function string
	Data     json.RawMessage
	Err      error
	Elapsed  time.Duration
}

// Pending is one in-flight call owned by a Registry.
//
// Its sink fires at most once no matter how many of resolve and fail are
// attempted, so a late reply racing an eviction cannot complete a call
// twice.
type Pending struct {
	id       string
	function string
	started  time.Time
	sink     Sink
	once     sync.Once

	// done is called after the sink fired. Set before registration.
	done func(Outcome)
}

// NewPending creates a pending completion for id.
func NewPending(id, function string, sink Sink) *Pending {
	if sink == nil {
		sink = Discard
	}
	return &Pending{
		id:       id,
		function: function,
		started:  time.Now(),
		sink:     sink,
	}
}

// ID returns the correlation id.
func (p *Pending) ID() string {
	return p.id
}

// Function returns the script function the call targets.
func (p *Pending) Function() string {
	return p.function
}

// resolve hands data to the sink. A sink decode failure is converted into
// a DECODE_ERROR delivered through Fail. Returns false if the pending had
// already fired.
func (p *Pending) resolve(data json.RawMessage) bool {
	fired := false
	p.once.Do(func() {
		fired = true
		out := Outcome{ID: p.id, Function: p.function, Data: data}
		if err := p.sink.Resolve(data); err != nil {
			out.Err = &Error{
				Code:          ErrCodeDecode,
				Message:       "payload does not match expected result",
				CorrelationID: p.id,
				Err:           err,
			}
			p.sink.Fail(out.Err)
		}
		p.finish(out)
	})
	return fired
}

// fail hands err to the sink. Returns false if the pending had already fired.
func (p *Pending) fail(err error) bool {
	fired := false
	p.once.Do(func() {
		fired = true
		p.sink.Fail(err)
		p.finish(Outcome{ID: p.id, Function: p.function, Err: err})
	})
	return fired
}

func (p *Pending) finish(out Outcome) {
	if p.done == nil {
		return
	}
	out.Elapsed = time.Since(p.started)
	p.done(out)
}

// Registry maps correlation ids to pending completions.
//
// One mutex covers every operation, so an entry is removed by exactly one
// of Take, Evict or DrainAll. Sinks are always fired after the lock is
// released, which lets a sink dispatch new calls.
type Registry struct {
	mu      sync.Mutex
	pending map[string]*Pending
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]*Pending)}
}

// Register adds p under id. A duplicate id is rejected and leaves the
// existing entry in place.
func (r *Registry) Register(id string, p *Pending) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[id]; exists {
		return fmt.Errorf("correlation id %q already registered", id)
	}
	r.pending[id] = p
	return nil
}

// Take removes and returns the entry for id.
// Returns (nil, false) if id is unknown or was already taken.
func (r *Registry) Take(id string) (*Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return p, ok
}

// Evict removes the entry for id and fails it with err.
// Returns false if there was no entry.
func (r *Registry) Evict(id string, err error) bool {
	p, ok := r.Take(id)
	if !ok {
		return false
	}
	p.fail(err)
	return true
}

// DrainAll removes every entry and fails each with reason.
// Returns the number of entries drained.
func (r *Registry) DrainAll(reason error) int {
	r.mu.Lock()
	drained := make([]*Pending, 0, len(r.pending))
	for id, p := range r.pending {
		drained = append(drained, p)
		delete(r.pending, id)
	}
	r.mu.Unlock()

	for _, p := range drained {
		p.fail(reason)
	}
	return len(drained)
}

// Len returns the number of pending entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// IDs returns the pending ids in no particular order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	return ids
}
