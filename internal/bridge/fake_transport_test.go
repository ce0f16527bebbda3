package bridge

import (
	"encoding/json"
	"errors"
	"sync"
)

// fakeTransport records submissions and lets tests reply from inside Submit.
type fakeTransport struct {
	mu        sync.Mutex
	ready     bool
	submitErr error
	submitted []Submission
	inbound   Inbound

	// onSubmit runs synchronously inside Submit, like a script that
	// replies in the same tick.
	onSubmit func(s Submission, in Inbound)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{ready: true}
}

func (f *fakeTransport) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeTransport) Submit(s Submission) error {
	f.mu.Lock()
	if f.submitErr != nil {
		err := f.submitErr
		f.mu.Unlock()
		return err
	}
	f.submitted = append(f.submitted, s)
	hook, in := f.onSubmit, f.inbound
	f.mu.Unlock()

	if hook != nil {
		hook(s, in)
	}
	return nil
}

func (f *fakeTransport) Attach(in Inbound) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = in
}

func (f *fakeTransport) Submissions() []Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Submission(nil), f.submitted...)
}

var errQueueClosed = errors.New("queue closed")

// recordingObserver keeps every observer callback for assertions.
type recordingObserver struct {
	mu         sync.Mutex
	dispatched []string
	outcomes   []Outcome
	protocol   []string
}

func (r *recordingObserver) CallDispatched(id, function, script string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched = append(r.dispatched, id)
}

func (r *recordingObserver) CallResolved(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingObserver) ProtocolError(kind string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.protocol = append(r.protocol, kind)
}

// captureSink records what it was given.
type captureSink struct {
	mu       sync.Mutex
	resolved []string
	failed   []error
}

func (c *captureSink) Resolve(data json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = append(c.resolved, string(data))
	return nil
}

func (c *captureSink) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = append(c.failed, err)
}

func (c *captureSink) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resolved) + len(c.failed)
}
