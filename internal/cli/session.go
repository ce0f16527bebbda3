package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/config"
	"github.com/roach88/ledgerbridge/internal/journal"
	"github.com/roach88/ledgerbridge/internal/ledger"
	"github.com/roach88/ledgerbridge/internal/metrics"
	"github.com/roach88/ledgerbridge/internal/runtime"
)

const bootTimeout = 30 * time.Second

// Session is a running script environment with its bridge and observers.
type Session struct {
	Runtime *runtime.Runtime
	Bridge  *bridge.Bridge
	Client  *ledger.Client
	Journal *journal.Journal // nil when journaling is off
	Metrics *metrics.Collector

	metricsAddr string
	server      *http.Server
	cancel      context.CancelFunc
	done        chan error
}

// SessionOptions overrides config values from command flags.
type SessionOptions struct {
	Script      string // overrides cfg.Script when set
	JournalPath string // overrides cfg.JournalPath when set
	SkipInit    bool   // do not call the SDK's init on boot
}

// StartSession boots the script named by the config and wires the journal
// and metrics observers into a new bridge.
//
// When the config carries an SDK api key, init is dispatched on every boot
// so a reset environment is initialised again before it takes new calls.
func StartSession(ctx context.Context, cfg config.Config, so SessionOptions) (*Session, error) {
	script := cfg.Script
	if so.Script != "" {
		script = so.Script
	}
	if script == "" {
		return nil, NewExitError(ExitCommandError, "no script: set script in the config or pass --script")
	}
	src, err := os.ReadFile(script)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read script", err)
	}

	s := &Session{Metrics: metrics.New(prometheus.NewRegistry())}
	bridgeOpts := []bridge.Option{bridge.WithObserver(s.Metrics)}

	journalPath := cfg.JournalPath
	if so.JournalPath != "" {
		journalPath = so.JournalPath
	}
	if journalPath != "" {
		s.Journal, err = journal.Open(journalPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		bridgeOpts = append(bridgeOpts, bridge.WithObserver(s.Journal))
		slog.Info("journal ready", "path", journalPath, "session", s.Journal.Session())
	}

	var onReady func(int64)
	rtOpts := runtime.Options{
		Bootstrap:     string(src),
		BootstrapName: filepath.Base(script),
		HandlerName:   cfg.HandlerName,
		SubmitRate:    cfg.SubmitRate,
		SubmitBurst:   cfg.SubmitBurst,
		ScriptTimeout: cfg.ScriptTimeoutDuration(),
		OnReady: func(epoch int64) {
			if onReady != nil {
				onReady(epoch)
			}
		},
	}
	s.Runtime = runtime.New(rtOpts)
	s.Bridge = bridge.New(s.Runtime, bridgeOpts...)
	s.Client = ledger.NewClient(s.Bridge, ledger.WithCallTimeout(cfg.CallTimeoutDuration()))

	if cfg.SDK.APIKey != "" && !so.SkipInit {
		onReady = s.Client.Reinitializer(ledger.InitParams{
			APIKey:      cfg.SDK.APIKey,
			Network:     cfg.SDK.Network,
			DAppCode:    cfg.SDK.DAppCode,
			Fingerprint: cfg.SDK.Fingerprint,
		})
	}

	if cfg.MetricsAddr != "" {
		if err := s.serveMetrics(cfg.MetricsAddr); err != nil {
			s.closeJournal()
			return nil, WrapExitError(ExitCommandError, "failed to start metrics listener", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan error, 1)
	go func() { s.done <- s.Runtime.Run(runCtx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, bootTimeout)
	defer waitCancel()
	if err := s.Runtime.WaitReady(waitCtx); err != nil {
		s.Close()
		return nil, WrapExitError(ExitCommandError, "script failed to boot", err)
	}
	return s, nil
}

// MetricsAddr returns the address the metrics listener is bound to, or "".
func (s *Session) MetricsAddr() string {
	return s.metricsAddr
}

func (s *Session) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Metrics.Handler())
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.metricsAddr = ln.Addr().String()

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics listener failed", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", s.metricsAddr)
	return nil
}

// Close stops the runtime, fails every pending call and closes the journal.
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
		if err := <-s.done; err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("script runtime exited with error", "error", err)
		}
		s.cancel = nil
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			slog.Warn("metrics listener shutdown", "error", err)
		}
		s.server = nil
	}
	return s.closeJournal()
}

func (s *Session) closeJournal() error {
	if s.Journal == nil {
		return nil
	}
	err := s.Journal.Close()
	s.Journal = nil
	if err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}

// Call dispatches one call and waits for its outcome. It returns the
// correlation id ("" when the call failed before one was allocated).
func (s *Session) Call(ctx context.Context, call bridge.Call, timeout time.Duration) (string, json.RawMessage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		data json.RawMessage
		err  error
	}
	ch := make(chan result, 1)
	id := s.Bridge.Dispatch(call, bridge.Expect(
		func(data json.RawMessage) { ch <- result{data: data} },
		func(err error) { ch <- result{err: err} },
	))

	select {
	case r := <-ch:
		return id, r.data, r.err
	case <-ctx.Done():
		if id != "" {
			s.Bridge.Evict(id, bridge.NewTimeoutError(id, ctx.Err()))
		}
		r := <-ch
		return id, r.data, r.err
	}
}
