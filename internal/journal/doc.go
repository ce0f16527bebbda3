// Package journal records every bridge call in SQLite.
//
// The journal is a bridge.Observer: a row is inserted when a call is
// dispatched and updated once when it completes. Protocol errors (replies
// that matched no pending call) are kept in a separate table.
//
// # Ordering
//
// Rows carry a journal-assigned seq. All queries order by
// seq ASC, id COLLATE BINARY ASC, so listings are stable regardless of
// wall-clock time.
//
// # Sessions
//
// Correlation ids restart with every process, so each Open starts a new
// session (a UUIDv7 by default) and rows are keyed by (session, id).
//
// # Payloads
//
// Payloads are stored as canonical JSON: object keys sorted by UTF-16 code
// units, strings NFC-normalized, no HTML escaping. payload_hash is a
// domain-separated SHA-256 of that text, so identical payloads hash
// identically across sessions.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package journal
