package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ledgerbridge/internal/journal"
)

// JournalOptions holds flags shared by the journal subcommands.
type JournalOptions struct {
	*RootOptions
	Database string
	Session  string
	Status   string
	Function string
	Limit    int
}

// NewJournalCommand creates the journal command and its subcommands.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the call journal",
		Long: `Inspect a call journal written by call or serve.

The database defaults to journal_path from the config. Inspecting never
starts a new session.

Examples:
  ledgerbridge journal sessions --db ./calls.db
  ledgerbridge journal list --db ./calls.db --status failed
  ledgerbridge journal show --db ./calls.db <session> getBalance-3
  ledgerbridge journal errors --db ./calls.db --format json`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to journal database (defaults to journal_path)")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List journaled calls",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalList(opts, cmd)
		},
	}
	list.Flags().StringVar(&opts.Session, "session", "", "only calls of this session")
	list.Flags().StringVar(&opts.Status, "status", "", "only calls with this status (pending|ok|failed|evicted)")
	list.Flags().StringVar(&opts.Function, "function", "", "only calls of this function")
	list.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of calls")

	show := &cobra.Command{
		Use:           "show <session> <id>",
		Short:         "Show one journaled call",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalShow(opts, cmd, args[0], args[1])
		},
	}

	errorsCmd := &cobra.Command{
		Use:           "errors",
		Short:         "List protocol errors",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalErrors(opts, cmd)
		},
	}
	errorsCmd.Flags().StringVar(&opts.Session, "session", "", "only errors of this session")

	sessions := &cobra.Command{
		Use:           "sessions",
		Short:         "List sessions, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalSessions(opts, cmd)
		},
	}

	cmd.AddCommand(list, show, errorsCmd, sessions)
	return cmd
}

func (o *JournalOptions) open(cmd *cobra.Command) (*journal.Journal, error) {
	path := o.Database
	if path == "" {
		cfg, err := o.loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.JournalPath
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no journal: pass --db or set journal_path in the config")
	}
	j, err := journal.OpenExisting(path)
	if err != nil {
		_ = o.formatter(cmd).Error(ErrCodeJournal, err.Error(), map[string]string{"path": path})
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

func runJournalList(opts *JournalOptions, cmd *cobra.Command) error {
	switch journal.Status(opts.Status) {
	case "", journal.StatusPending, journal.StatusOK, journal.StatusFailed, journal.StatusEvicted:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid status %q: must be pending, ok, failed or evicted", opts.Status))
	}

	j, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	records, err := j.List(commandContext(cmd), journal.Filter{
		Session:  opts.Session,
		Status:   journal.Status(opts.Status),
		Function: opts.Function,
		Limit:    opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list calls", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No calls found.")
		return nil
	}
	writeRecordTable(cmd.OutOrStdout(), records)
	return nil
}

func runJournalShow(opts *JournalOptions, cmd *cobra.Command, session, id string) error {
	j, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.Get(commandContext(cmd), session, id)
	if errors.Is(err, journal.ErrNotFound) {
		_ = opts.formatter(cmd).Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitFailure, "call not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read call", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).SuccessWithID(rec, rec.ID)
	}
	writeRecord(cmd.OutOrStdout(), rec)
	return nil
}

func runJournalErrors(opts *JournalOptions, cmd *cobra.Command) error {
	j, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	records, err := j.ProtocolErrors(commandContext(cmd), opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list protocol errors", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(records)
	}
	w := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(w, "No protocol errors.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSESSION\tKIND\tRECORDED\tMESSAGE")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.Seq, r.Session, r.Kind, r.RecordedAt.Format(time.RFC3339), r.Message)
	}
	return tw.Flush()
}

func runJournalSessions(opts *JournalOptions, cmd *cobra.Command) error {
	j, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	sessions, err := j.Sessions(commandContext(cmd))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	if opts.Format == "json" {
		return opts.formatter(cmd).Success(sessions)
	}
	for _, s := range sessions {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}

func writeRecordTable(w io.Writer, records []journal.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSESSION\tID\tFUNCTION\tSTATUS\tERROR\tDURATION")
	for _, r := range records {
		errText := r.ErrorCode
		if r.ErrorName != "" {
			errText += " " + r.ErrorName
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Seq, r.Session, r.ID, r.Function, r.Status, errText, r.Duration)
	}
	tw.Flush()
}

func writeRecord(w io.Writer, r journal.Record) {
	fmt.Fprintf(w, "Call: %s (session %s, seq %d)\n", r.ID, r.Session, r.Seq)
	fmt.Fprintf(w, "  Function:   %s\n", r.Function)
	fmt.Fprintf(w, "  Script:     %s\n", r.Script)
	fmt.Fprintf(w, "  Status:     %s\n", r.Status)
	fmt.Fprintf(w, "  Dispatched: %s\n", r.DispatchedAt.Format(time.RFC3339Nano))
	if r.ResolvedAt != nil {
		fmt.Fprintf(w, "  Resolved:   %s (%s)\n", r.ResolvedAt.Format(time.RFC3339Nano), r.Duration)
	}
	if r.ErrorCode != "" {
		fmt.Fprintf(w, "  Error:      %s\n", r.ErrorCode)
	}
	if r.ErrorName != "" || r.ErrorReason != "" {
		fmt.Fprintf(w, "  Remote:     %s: %s\n", r.ErrorName, r.ErrorReason)
	}
	if r.Payload != "" {
		fmt.Fprintf(w, "  Payload:    %s\n", r.Payload)
		fmt.Fprintf(w, "  Hash:       %s\n", r.PayloadHash)
	}
}
