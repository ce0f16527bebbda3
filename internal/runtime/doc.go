// Package runtime hosts the script side of the bridge in an embedded goja
// JavaScript VM and exposes it as a bridge.Transport.
//
// goja is not safe for concurrent use, so the VM is owned by one loop
// goroutine (Run). Everything that touches it, including submissions,
// timer callbacks and resets, is queued as a job and executed in FIFO order
// on that goroutine.
//
// The bootstrap script sees these globals:
//
//	bridge.postMessage(text)        // post one JSON envelope to the host
//	bridge.projectParams(wire)      // WireForm -> '{"types":[..],"values":[..]}'
//	window.webkit.messageHandlers.<handler>.postMessage(text)
//	console.log/info/warn/error(...)
//	setTimeout(fn, ms, ...args) / clearTimeout(id)
//
// A script exception thrown while running a submission is turned into an
// error envelope for that submission's id, so the caller is never left
// waiting on a call that can no longer reply.
package runtime
