package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/harness"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Script  string
	Journal string
}

// ServeRequest is one line of serve input.
type ServeRequest struct {
	Function string `json:"function"`
	Args     []any  `json:"args,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

// ServeResponse is one line of serve output. Line is the 1-based input
// line the response answers; responses are written in completion order.
type ServeResponse struct {
	Line   int       `json:"line"`
	CallID string    `json:"call_id,omitempty"`
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run calls read as JSON lines from stdin",
		Long: `Boot the configured script once and serve calls read from stdin.

Each input line is a JSON object {"function": ..., "args": [...],
"timeout": "5s"}. Calls run concurrently; every outcome is written to
stdout as one JSON line tagged with its input line number. At end of input
serve waits for outstanding calls and exits. Ctrl-C evicts them.

When metrics_addr is configured, Prometheus metrics are served on
/metrics for the lifetime of the command.

Example:
  printf '{"function":"getBalance","args":["0.0.1001"]}\n' | ledgerbridge serve -c ledgerbridge.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Script, "script", "", "bootstrap script (overrides config)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal database path (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sess, err := StartSession(ctx, cfg, SessionOptions{Script: opts.Script, JournalPath: opts.Journal})
	if err != nil {
		return err
	}
	defer sess.Close()

	failed := serveLines(ctx, sess, cmd.InOrStdin(), cmd.OutOrStdout(), cfg.CallTimeoutDuration())
	slog.Info("serve finished", "failed", failed)
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d call(s) failed", failed))
	}
	return nil
}

// serveLines dispatches every request line and blocks until all outcomes
// are written. It returns the number of failed lines.
func serveLines(ctx context.Context, sess *Session, in io.Reader, out io.Writer, defaultTimeout time.Duration) int {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	enc := json.NewEncoder(out)
	write := func(resp ServeResponse) {
		mu.Lock()
		defer mu.Unlock()
		if resp.Status != "ok" {
			failed++
		}
		if err := enc.Encode(resp); err != nil {
			slog.Error("write response", "line", resp.Line, "error", err)
		}
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		call, timeout, err := parseServeRequest(sess, text, defaultTimeout)
		if err != nil {
			write(ServeResponse{Line: line, Status: "error", Error: &CLIError{Code: ErrCodeBadInput, Message: err.Error()}})
			continue
		}

		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			id, data, err := sess.Call(ctx, call, timeout)
			if err != nil {
				write(ServeResponse{Line: line, CallID: id, Status: "error", Error: &CLIError{
					Code:    ErrorCodeOf(err),
					Message: err.Error(),
					Details: callErrorDetails(err),
				}})
				return
			}
			resp := ServeResponse{Line: line, CallID: id, Status: "ok"}
			if len(data) > 0 {
				resp.Data = data
			}
			write(resp)
		}(line)
	}
	if err := scanner.Err(); err != nil {
		slog.Error("read requests", "error", err)
	}

	wg.Wait()
	return failed
}

func parseServeRequest(sess *Session, text string, defaultTimeout time.Duration) (bridge.Call, time.Duration, error) {
	var req ServeRequest
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return bridge.Call{}, 0, fmt.Errorf("invalid request: %w", err)
	}
	if req.Function == "" {
		return bridge.Call{}, 0, fmt.Errorf("invalid request: function is required")
	}

	timeout := defaultTimeout
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil {
			return bridge.Call{}, 0, fmt.Errorf("invalid request: timeout: %w", err)
		}
		timeout = d
	}

	args, err := harness.ConvertArgs(req.Args)
	if err != nil {
		return bridge.Call{}, 0, fmt.Errorf("invalid request: %w", err)
	}

	function := req.Function
	if !strings.Contains(function, ".") {
		function = sess.Client.Function(function)
	}
	return bridge.Call{Function: function, Args: args}, timeout, nil
}
