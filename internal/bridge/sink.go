package bridge

import (
	"context"
	"encoding/json"
)

// Sink receives the outcome of one call. Exactly one of Resolve or Fail is
// called, and at most once.
//
// Resolve gets the envelope's "data" field, or nil when it was absent or
// null. If Resolve returns an error it must not have delivered a result;
// the bridge then calls Fail with a DECODE_ERROR wrapping it.
type Sink interface {
	Resolve(data json.RawMessage) error
	Fail(err error)
}

// Discard is a Sink that ignores every outcome.
var Discard Sink = discard{}

type discard struct{}

func (discard) Resolve(json.RawMessage) error { return nil }
func (discard) Fail(error)                    {}

// Expect returns a Sink that unmarshals the payload into T.
//
// An absent payload yields the zero T. A payload that does not unmarshal
// into T is reported to onFailure as a DECODE_ERROR. Either callback may
// be nil.
func Expect[T any](onSuccess func(T), onFailure func(error)) Sink {
	return &expectSink[T]{onSuccess: onSuccess, onFailure: onFailure}
}

type expectSink[T any] struct {
	onSuccess func(T)
	onFailure func(error)
}

func (s *expectSink[T]) Resolve(data json.RawMessage) error {
	var v T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
	}
	if s.onSuccess != nil {
		s.onSuccess(v)
	}
	return nil
}

func (s *expectSink[T]) Fail(err error) {
	if s.onFailure != nil {
		s.onFailure(err)
	}
}

// Invoke dispatches call and blocks until its outcome, decoding the payload
// into T.
//
// When ctx ends first the call is evicted with a TIMEOUT error wrapping
// ctx.Err(). A reply racing the eviction wins if it was taken first; either
// way Invoke returns the one outcome the sink received.
func Invoke[T any](ctx context.Context, b *Bridge, call Call) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)

	id := b.Dispatch(call, Expect(
		func(v T) { ch <- result{v: v} },
		func(err error) { ch <- result{err: err} },
	))

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		if id != "" {
			b.Evict(id, NewTimeoutError(id, ctx.Err()))
		}
		r := <-ch
		return r.v, r.err
	}
}
