package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/roach88/ledgerbridge/internal/abi"
)

// installGlobals defines the host functions the bootstrap may use.
func (r *Runtime) installGlobals(vm *goja.Runtime) error {
	post := func(call goja.FunctionCall) goja.Value {
		r.deliver(r.messageText(call.Argument(0)))
		return goja.Undefined()
	}

	host := vm.NewObject()
	if err := host.Set("postMessage", post); err != nil {
		return err
	}
	if err := host.Set("projectParams", func(call goja.FunctionCall) goja.Value {
		p, err := abi.ProjectWire(call.Argument(0).String())
		if err != nil {
			panic(vm.NewGoError(err))
		}
		raw, err := p.MarshalJSON()
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(string(raw))
	}); err != nil {
		return err
	}
	if err := vm.Set("bridge", host); err != nil {
		return err
	}

	// window.webkit.messageHandlers.<handler>.postMessage, for scripts
	// written against a WebKit host.
	handler := vm.NewObject()
	if err := handler.Set("postMessage", post); err != nil {
		return err
	}
	handlers := vm.NewObject()
	if err := handlers.Set(r.opts.HandlerName, handler); err != nil {
		return err
	}
	webkit := vm.NewObject()
	if err := webkit.Set("messageHandlers", handlers); err != nil {
		return err
	}
	global := vm.GlobalObject()
	if err := global.Set("webkit", webkit); err != nil {
		return err
	}
	if err := vm.Set("window", global); err != nil {
		return err
	}

	console := vm.NewObject()
	for name, level := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		if err := console.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			slog.Log(context.Background(), level, "script console", "source", "script", "text", strings.Join(parts, " "))
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	if err := vm.Set("console", console); err != nil {
		return err
	}

	if err := vm.Set("setTimeout", r.setTimeout); err != nil {
		return err
	}
	return vm.Set("clearTimeout", r.clearTimeout)
}

// messageText accepts a JSON string, as WebKit hosts expect, or any other
// value, which is marshalled to JSON.
func (r *Runtime) messageText(v goja.Value) string {
	if s, ok := v.Export().(string); ok {
		return s
	}
	raw, err := json.Marshal(v.Export())
	if err != nil {
		panic(r.vm.NewGoError(err))
	}
	return string(raw)
}

// setTimeout schedules fn on the loop goroutine after the delay.
// Timers belong to one environment and never fire after a reset.
func (r *Runtime) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("setTimeout: callback is not a function"))
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	r.nextTimer++
	id := r.nextTimer
	epoch := r.epoch.Load()

	r.timers[id] = time.AfterFunc(delay, func() {
		r.queue.Enqueue(job{kind: jobCallback, epoch: epoch, callback: func() {
			if _, live := r.timers[id]; !live {
				return
			}
			delete(r.timers, id)
			if _, err := fn(goja.Undefined(), args...); err != nil {
				name, reason := scriptFault(err)
				slog.Warn("timer callback raised an exception", "name", name, "reason", reason)
			}
		}})
	})
	return r.vm.ToValue(id)
}

func (r *Runtime) clearTimeout(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
	return goja.Undefined()
}
