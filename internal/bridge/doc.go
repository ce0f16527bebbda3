// Package bridge turns a one-way string channel into a script runtime into a
// typed request/response protocol.
//
// A host call is rendered into a single script expression whose last
// argument is a correlation id. The script side eventually posts back one
// JSON envelope carrying that id:
//
//	{"completionKey":"getBalance-7","data":{...}}
//	{"completionKey":"getBalance-7","error":{"name":"Error","reason":"..."}}
//
// The Bridge keeps every in-flight call in a Registry until exactly one of
// these happens: a matching envelope arrives, the caller evicts it, or the
// transport resets. The caller's Sink is fired exactly once in every case.
//
// Thread-safety model:
//   - Dispatch, Evict and Invoke: safe from any goroutine
//   - HandleMessage and HandleReset: called by the transport, usually from
//     its own loop goroutine, possibly before Dispatch has returned
//
// A Bridge holds no global state; hosts may run several side by side.
package bridge
