package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ledgerbridge/internal/abi"
	"github.com/roach88/ledgerbridge/internal/params"
)

// EncodeResult is the JSON payload of the encode command.
type EncodeResult struct {
	Wire  string           `json:"wire"`
	Types []params.TypeTag `json:"types"`
}

// ProjectResult is the JSON payload of the project command.
type ProjectResult struct {
	Signature string   `json:"signature"`
	Types     []string `json:"types"`
	Values    []any    `json:"values"`
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encode [file]",
		Short: "Encode typed parameters into their wire form",
		Long: `Encode a typed parameter list into the base64 wire form passed to
contract calls.

The input is a YAML or JSON list of {type, value} entries, read from the
file or from stdin when the file is omitted or "-".

Examples:
  ledgerbridge encode params.yaml
  echo '[{"type":"string","value":"hi"}]' | ledgerbridge encode
  ledgerbridge encode params.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(rootOpts, cmd, args)
		},
	}
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode [wire]",
		Short: "Decode a wire form into typed parameters",
		Long: `Decode a base64 wire form back into its typed parameter list.
Nested tuples are expanded and bytes32 values are shown as 0x hex.

The wire form is read from stdin when omitted or "-".

Examples:
  ledgerbridge decode W3sidHlwZSI6InN0cmluZyIsInZhbHVlIjpbImhpIl19XQ==`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(rootOpts, cmd, args)
		},
	}
}

// NewProjectCommand creates the project command.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "project [wire]",
		Short: "Project a wire form into ABI types and values",
		Long: `Project a base64 wire form into the ABI type strings and values an
encoder consumes. Account ids become long-zero EVM addresses.

Examples:
  ledgerbridge project W3sidHlwZSI6ImFkZHJlc3MiLCJ2YWx1ZSI6WyIwLjAuMSJdfV0=`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(rootOpts, cmd, args)
		},
	}
}

func runEncode(opts *RootOptions, cmd *cobra.Command, args []string) error {
	out := opts.formatter(cmd)

	data, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	items, err := parseTyped(data)
	if err != nil {
		_ = out.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid typed parameters", err)
	}

	l, err := params.FromTyped(items)
	if err != nil {
		_ = out.Error(ErrorCodeOf(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "encode failed", err)
	}
	wire, err := params.Encode(l)
	if err != nil {
		_ = out.Error(ErrorCodeOf(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "encode failed", err)
	}

	out.VerboseLog("encoded %d parameters", l.Len())
	if opts.Format == "json" {
		return out.Success(EncodeResult{Wire: wire, Types: l.TagSequence()})
	}
	return out.Success(wire)
}

func runDecode(opts *RootOptions, cmd *cobra.Command, args []string) error {
	out := opts.formatter(cmd)

	wire, err := readWire(cmd, args)
	if err != nil {
		return err
	}
	l, err := params.Decode(wire)
	if err != nil {
		_ = out.Error(ErrorCodeOf(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "decode failed", err)
	}
	typed, err := params.ToTyped(l)
	if err != nil {
		_ = out.Error(ErrorCodeOf(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "decode failed", err)
	}

	raw, err := json.Marshal(typed)
	if err != nil {
		return err
	}
	return out.Success(json.RawMessage(raw))
}

func runProject(opts *RootOptions, cmd *cobra.Command, args []string) error {
	out := opts.formatter(cmd)

	wire, err := readWire(cmd, args)
	if err != nil {
		return err
	}
	p, err := abi.ProjectWire(wire)
	if err != nil {
		_ = out.Error(ErrorCodeOf(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "projection failed", err)
	}

	result := ProjectResult{Signature: p.Signature(), Types: p.Types(), Values: p.Values()}
	if opts.Format == "json" {
		return out.Success(result)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return out.Success(json.RawMessage(raw))
}

// readInput returns the file named by args[0], or stdin.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to read %s", args[0]), err)
	}
	return data, nil
}

// readWire returns args[0] or the trimmed contents of stdin.
func readWire(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := readInput(cmd, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTyped decodes a YAML or JSON list of {type, value} entries.
// JSON is valid YAML, so one decoder serves both.
func parseTyped(data []byte) ([]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	var items []any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse typed parameters: %w", err)
	}
	if items == nil {
		return nil, fmt.Errorf("typed parameters must be a list")
	}
	return items, nil
}
