package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record is one journaled call.
type Record struct {
	Session      string        `json:"session"`
	ID           string        `json:"id"`
	Seq          int64         `json:"seq"`
	Function     string        `json:"function"`
	Script       string        `json:"script"`
	Status       Status        `json:"status"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorName    string        `json:"error_name,omitempty"`
	ErrorReason  string        `json:"error_reason,omitempty"`
	Payload      string        `json:"payload,omitempty"`
	PayloadHash  string        `json:"payload_hash,omitempty"`
	DispatchedAt time.Time     `json:"dispatched_at"`
	ResolvedAt   *time.Time    `json:"resolved_at,omitempty"`
	Duration     time.Duration `json:"duration_ns,omitempty"`
}

// ProtocolRecord is one journaled protocol error.
type ProtocolRecord struct {
	Seq        int64     `json:"seq"`
	Session    string    `json:"session"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Session  string
	Status   Status
	Function string
	Limit    int
}

// ErrNotFound is returned by Get when no call matches.
var ErrNotFound = errors.New("call not found")

const callColumns = `session, id, seq, function, script, status, error_code, error_name,
	error_reason, payload, payload_hash, dispatched_at, resolved_at, duration_ms`

// Get returns a single call by session and correlation id.
func (j *Journal) Get(ctx context.Context, session, id string) (Record, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls WHERE session = ? AND id = ?`, session, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s/%s: %w", session, id, ErrNotFound)
	}
	return rec, err
}

// List returns calls matching f.
// Results are ordered deterministically: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (j *Journal) List(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Session != "" {
		where = append(where, "session = ?")
		args = append(args, f.Session)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Function != "" {
		where = append(where, "function = ?")
		args = append(args, f.Function)
	}

	query := `SELECT ` + callColumns + ` FROM calls`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC, id COLLATE BINARY ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return records, nil
}

// Pending returns calls of the current session still awaiting a reply.
func (j *Journal) Pending(ctx context.Context) ([]Record, error) {
	return j.List(ctx, Filter{Session: j.session, Status: StatusPending})
}

// ProtocolErrors returns protocol errors recorded for session, or for
// every session when session is empty.
func (j *Journal) ProtocolErrors(ctx context.Context, session string) ([]ProtocolRecord, error) {
	query := `SELECT seq, session, kind, message, recorded_at FROM protocol_errors`
	var args []any
	if session != "" {
		query += ` WHERE session = ?`
		args = append(args, session)
	}
	query += ` ORDER BY seq ASC`

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query protocol errors: %w", err)
	}
	defer rows.Close()

	out := []ProtocolRecord{}
	for rows.Next() {
		var (
			rec ProtocolRecord
			at  string
		)
		if err := rows.Scan(&rec.Seq, &rec.Session, &rec.Kind, &rec.Message, &at); err != nil {
			return nil, fmt.Errorf("scan protocol error: %w", err)
		}
		if rec.RecordedAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate protocol errors: %w", err)
	}
	return out, nil
}

// Sessions returns all session ids, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LastSeq returns the highest seq written so far, or 0 for an empty journal.
func (j *Journal) LastSeq() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec        Record
		status     string
		payload    sql.NullString
		dispatched string
		resolved   sql.NullString
		durationMS sql.NullInt64
	)
	err := s.Scan(&rec.Session, &rec.ID, &rec.Seq, &rec.Function, &rec.Script, &status,
		&rec.ErrorCode, &rec.ErrorName, &rec.ErrorReason, &payload, &rec.PayloadHash,
		&dispatched, &resolved, &durationMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan call: %w", err)
	}

	rec.Status = Status(status)
	rec.Payload = payload.String
	if rec.DispatchedAt, err = time.Parse(time.RFC3339Nano, dispatched); err != nil {
		return Record{}, fmt.Errorf("parse dispatched_at: %w", err)
	}
	if resolved.Valid {
		t, err := time.Parse(time.RFC3339Nano, resolved.String)
		if err != nil {
			return Record{}, fmt.Errorf("parse resolved_at: %w", err)
		}
		rec.ResolvedAt = &t
	}
	if durationMS.Valid {
		rec.Duration = time.Duration(durationMS.Int64) * time.Millisecond
	}
	return rec, nil
}
