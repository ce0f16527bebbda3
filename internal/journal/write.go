package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/ledgerbridge/internal/bridge"
)

// Status is the lifecycle state of a journaled call.
type Status string

const (
	StatusPending Status = "pending"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusEvicted Status = "evicted"
)

// StatusOf maps a call outcome error to its journal status.
// Timeouts are evictions; every other error is a failure.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case bridge.IsTimeout(err):
		return StatusEvicted
	default:
		return StatusFailed
	}
}

var _ bridge.Observer = (*Journal)(nil)

// RecordDispatch inserts a pending row for a call that was just submitted.
func (j *Journal) RecordDispatch(ctx context.Context, id, function, script string) error {
	if j.session == "" {
		return ErrNoSession
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO calls (session, id, seq, function, script, status, dispatched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, j.session, id, j.nextSeq(), function, script, StatusPending, j.timestamp())
	if err != nil {
		return fmt.Errorf("insert call %s: %w", id, err)
	}
	return nil
}

// RecordOutcome marks a pending call as completed.
//
// Only pending rows are updated, so a late duplicate outcome cannot
// overwrite the first one. Returns an error if no pending row matched.
func (j *Journal) RecordOutcome(ctx context.Context, o bridge.Outcome) error {
	if j.session == "" {
		return ErrNoSession
	}
	var (
		code, name, reason string
		payload            sql.NullString
		hash               string
	)

	if o.Err != nil {
		code = string(bridge.CodeOf(o.Err))
		reason = o.Err.Error()
		var be *bridge.Error
		if errors.As(o.Err, &be) && be.Code == bridge.ErrCodeRemote {
			name, reason = be.Name, be.Reason
		}
	}

	if len(o.Data) > 0 {
		canonical, err := Canonicalize(o.Data)
		if err != nil {
			return fmt.Errorf("payload of call %s: %w", o.ID, err)
		}
		payload = sql.NullString{String: string(canonical), Valid: true}
		hash = PayloadHash(canonical)
	}

	res, err := j.db.ExecContext(ctx, `
		UPDATE calls
		SET status = ?, error_code = ?, error_name = ?, error_reason = ?,
		    payload = ?, payload_hash = ?, resolved_at = ?, duration_ms = ?
		WHERE session = ? AND id = ? AND status = 'pending'
	`, StatusOf(o.Err), code, name, reason, payload, hash, j.timestamp(), o.Elapsed.Milliseconds(),
		j.session, o.ID)
	if err != nil {
		return fmt.Errorf("update call %s: %w", o.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update call %s: %w", o.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update call %s: no pending row", o.ID)
	}
	return nil
}

// RecordProtocolError stores a reply that could not be routed.
func (j *Journal) RecordProtocolError(ctx context.Context, kind string, cause error) error {
	if j.session == "" {
		return ErrNoSession
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO protocol_errors (session, kind, message, recorded_at)
		VALUES (?, ?, ?, ?)
	`, j.session, kind, msg, j.timestamp())
	if err != nil {
		return fmt.Errorf("insert protocol error: %w", err)
	}
	return nil
}

// CallDispatched implements bridge.Observer. Failures are logged, never
// surfaced to the caller of Dispatch.
func (j *Journal) CallDispatched(id, function, script string) {
	if err := j.RecordDispatch(context.Background(), id, function, script); err != nil {
		slog.Error("journal write failed", "op", "dispatch", "id", id, "error", err)
	}
}

// CallResolved implements bridge.Observer.
func (j *Journal) CallResolved(o bridge.Outcome) {
	if err := j.RecordOutcome(context.Background(), o); err != nil {
		slog.Error("journal write failed", "op", "resolve", "id", o.ID, "error", err)
	}
}

// ProtocolError implements bridge.Observer.
func (j *Journal) ProtocolError(kind string, err error) {
	if werr := j.RecordProtocolError(context.Background(), kind, err); werr != nil {
		slog.Error("journal write failed", "op", "protocol_error", "kind", kind, "error", werr)
	}
}
