package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgerbridge/internal/bridge"
	"github.com/roach88/ledgerbridge/internal/harness"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Script  string
	Journal string
	Timeout time.Duration
	Raw     bool // pass every argument as a string
	NoInit  bool
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <function> [args...]",
		Short: "Call one SDK function and print its result",
		Long: `Boot the configured script, call one function and print the payload.

A function without a dot is looked up on the SDK object, so "getBalance"
calls "bladeSdk.getBalance". Each argument is parsed as a YAML value:
numbers and booleans stay unquoted, [a, b] is a string list and
'{params: [...]}' is a typed parameter list sent as its wire form. Use
--raw to pass every argument as a string.

When the config has an SDK api key, init runs before the call.

Exit codes:
  0 - The call succeeded
  1 - The call failed (remote error, timeout, ...)
  2 - Command error (bad config, missing script, bad arguments)

Examples:
  ledgerbridge call getBalance 0.0.1001 -c ledgerbridge.yaml
  ledgerbridge call transferHbars 0.0.1001 302e 0.0.2002 '"1.5"' -c ledgerbridge.yaml
  ledgerbridge call getParamsSignature '{params: [{type: uint64, value: 7}]}' 302e`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, cmd, args[0], args[1:])
		},
	}

	cmd.Flags().StringVar(&opts.Script, "script", "", "bootstrap script (overrides config)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal database path (overrides config)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "call timeout (defaults to call_timeout from config)")
	cmd.Flags().BoolVar(&opts.Raw, "raw", false, "pass every argument as a string")
	cmd.Flags().BoolVar(&opts.NoInit, "no-init", false, "skip the SDK init call")

	return cmd
}

func runCall(opts *CallOptions, cmd *cobra.Command, function string, rawArgs []string) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	args, err := parseCallArgs(rawArgs, opts.Raw)
	if err != nil {
		_ = out.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}

	ctx := commandContext(cmd)
	sess, err := StartSession(ctx, cfg, SessionOptions{Script: opts.Script, JournalPath: opts.Journal, SkipInit: opts.NoInit})
	if err != nil {
		return err
	}
	defer sess.Close()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = cfg.CallTimeoutDuration()
	}
	if !strings.Contains(function, ".") {
		function = sess.Client.Function(function)
	}

	out.VerboseLog("calling %s with %d arguments", function, len(args))
	id, data, err := sess.Call(ctx, bridge.Call{Function: function, Args: args}, timeout)
	if err != nil {
		_ = out.ErrorWithID(ErrorCodeOf(err), err.Error(), callErrorDetails(err), id)
		return WrapExitError(ExitFailure, "call failed", err)
	}
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return out.SuccessWithID(data, id)
}

// parseCallArgs turns command-line words into bridge arguments.
func parseCallArgs(words []string, raw bool) ([]any, error) {
	values := make([]any, len(words))
	for i, w := range words {
		if raw {
			values[i] = w
			continue
		}
		var v any
		if err := yaml.Unmarshal([]byte(w), &v); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		values[i] = v
	}
	return harness.ConvertArgs(values)
}

// callErrorDetails extracts the remote error fields, if any.
func callErrorDetails(err error) map[string]string {
	var be *bridge.Error
	if !errors.As(err, &be) || (be.Name == "" && be.Reason == "") {
		return nil
	}
	return map[string]string{"name": be.Name, "reason": be.Reason}
}
