package bridge

import (
	"fmt"
	"log/slog"
)

// Call describes one script function call.
//
// Function is a dotted path such as "bladeSdk.getBalance". Args are
// rendered by RenderValue. Tag prefixes the correlation id; it defaults to
// the last segment of Function.
type Call struct {
	Function string
	Args     []any
	Tag      string
}

func (c Call) tag() string {
	if c.Tag != "" {
		return c.Tag
	}
	return DefaultTag(c.Function)
}

// Dispatch submits call and arranges for sink to receive its outcome.
//
// The steps run in a fixed order:
//  1. A transport that is not ready fails the call at once.
//  2. Arguments are rendered; an ENCODING_ERROR fails the call before
//     anything is registered.
//  3. A fresh correlation id is allocated and registered.
//  4. The id is appended as the last argument and the call is submitted.
//
// Registration happens before submission because the transport may deliver
// the reply before Submit returns. If Submit fails, the entry is taken back
// and the call fails with TRANSPORT_NOT_READY.
//
// Returns the correlation id, or "" when the call failed before one was
// allocated. The sink may already have fired when Dispatch returns.
func (b *Bridge) Dispatch(call Call, sink Sink) string {
	if sink == nil {
		sink = Discard
	}

	if !b.transport.Ready() {
		sink.Fail(notReadyError("", nil))
		return ""
	}

	if !functionPath.MatchString(call.Function) {
		sink.Fail(encodingError(fmt.Sprintf("invalid function path %q", call.Function), nil))
		return ""
	}
	args, err := renderArgs(call.Args)
	if err != nil {
		sink.Fail(err)
		return ""
	}

	id := b.ids.Next(call.tag())
	p := NewPending(id, call.Function, sink)
	p.done = b.observeOutcome
	if err := b.registry.Register(id, p); err != nil {
		sink.Fail(desyncError(id, "duplicate correlation id", err))
		return ""
	}

	script := joinCall(call.Function, append(args, Quote(id)))
	b.observeDispatch(id, call.Function, script)
	slog.Debug("dispatching call", "id", id, "function", call.Function)

	if err := b.transport.Submit(Submission{ID: id, Script: script}); err != nil {
		if p, ok := b.registry.Take(id); ok {
			p.fail(notReadyError(id, err))
		}
	}
	return id
}
