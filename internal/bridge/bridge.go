package bridge

import (
	"log/slog"
)

// Submission is one rendered call handed to the transport.
// ID lets the transport report a failure for this call on its own.
type Submission struct {
	ID     string
	Script string
}

// Transport is the script environment the bridge drives.
//
// Submit must not block on script execution; it queues. Replies and resets
// are reported to the attached Inbound, possibly before Submit returns.
type Transport interface {
	Ready() bool
	Submit(s Submission) error
	Attach(in Inbound)
}

// Inbound receives what the script environment reports back.
// *Bridge implements it.
type Inbound interface {
	HandleMessage(raw string)
	HandleReset()
}

// Observer is notified about every registered call.
// Implemented by the call journal and the metrics collector.
//
// Callbacks run synchronously on the dispatching or routing goroutine and
// must not block.
type Observer interface {
	CallDispatched(id, function, script string)
	CallResolved(o Outcome)
	ProtocolError(kind string, err error)
}

// Bridge correlates calls into a Transport with the replies coming back.
type Bridge struct {
	transport Transport
	registry  *Registry
	ids       IDGenerator
	observers []Observer
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithIDGenerator replaces the default SequentialIDs.
func WithIDGenerator(g IDGenerator) Option {
	return func(b *Bridge) {
		b.ids = g
	}
}

// WithObserver adds an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(b *Bridge) {
		b.observers = append(b.observers, o)
	}
}

// New creates a Bridge over t and attaches itself as t's Inbound.
func New(t Transport, opts ...Option) *Bridge {
	b := &Bridge{
		transport: t,
		registry:  NewRegistry(),
		ids:       NewSequentialIDs(),
	}
	for _, opt := range opts {
		opt(b)
	}
	t.Attach(b)
	return b
}

// Pending returns the number of calls awaiting a reply.
func (b *Bridge) Pending() int {
	return b.registry.Len()
}

// PendingIDs returns the ids of calls awaiting a reply.
func (b *Bridge) PendingIDs() []string {
	return b.registry.IDs()
}

// Evict fails the call id with err, typically a TIMEOUT from
// NewTimeoutError. Returns false if the call already completed.
func (b *Bridge) Evict(id string, err error) bool {
	ok := b.registry.Evict(id, err)
	if ok {
		slog.Debug("call evicted", "id", id, "error", err)
	}
	return ok
}

func (b *Bridge) observeDispatch(id, function, script string) {
	for _, o := range b.observers {
		o.CallDispatched(id, function, script)
	}
}

func (b *Bridge) observeOutcome(out Outcome) {
	for _, o := range b.observers {
		o.CallResolved(out)
	}
}

func (b *Bridge) observeProtocolError(kind string, err error) {
	for _, o := range b.observers {
		o.ProtocolError(kind, err)
	}
}
