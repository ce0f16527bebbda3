package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added function index for per-function listings
const currentSchemaVersion = 1

// ErrNoSession is returned by writes to a journal opened with OpenExisting.
var ErrNoSession = errors.New("journal has no active session")

// SessionGenerator generates journal session ids.
// Implemented by UUIDv7Session (production) and testutil.FixedSession (tests).
type SessionGenerator interface {
	Generate() string
}

// UUIDv7Session generates time-sortable UUIDv7 session ids.
type UUIDv7Session struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Session) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Journal is the SQLite-backed call journal.
// Safe for concurrent use; writes are serialised by a single connection.
type Journal struct {
	db      *sql.DB
	session string
	now     func() time.Time

	mu  sync.Mutex
	seq int64
}

// Option configures a Journal.
type Option func(*Journal)

// WithSessions replaces the UUIDv7 session generator.
func WithSessions(g SessionGenerator) Option {
	return func(j *Journal) {
		j.session = g.Generate()
	}
}

// WithNow replaces time.Now for timestamps and durations.
func WithNow(now func() time.Time) Option {
	return func(j *Journal) {
		j.now = now
	}
}

// Open creates or opens a journal at path and starts a new session.
// Applies required pragmas and migrations automatically.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	j := &Journal{db: db, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	if j.session == "" {
		j.session = UUIDv7Session{}.Generate()
	}

	if err := db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM calls`).Scan(&j.seq); err != nil {
		db.Close()
		return nil, fmt.Errorf("read last seq: %w", err)
	}
	if _, err := db.Exec(`INSERT INTO sessions (id, started_at) VALUES (?, ?)`, j.session, j.timestamp()); err != nil {
		db.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}
	return j, nil
}

// OpenExisting opens a journal for inspection without starting a session.
// The file must already exist. Writes through the returned journal fail
// with ErrNoSession.
func OpenExisting(path string) (*Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal %s: %w", path, err)
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	j := &Journal{db: db, now: time.Now}
	if err := db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM calls`).Scan(&j.seq); err != nil {
		db.Close()
		return nil, fmt.Errorf("read last seq: %w", err)
	}
	return j, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Session returns the id of the session this journal writes to, or "" for
// a journal opened with OpenExisting.
func (j *Journal) Session() string {
	return j.session
}

func (j *Journal) nextSeq() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	return j.seq
}

func (j *Journal) timestamp() string {
	return j.now().UTC().Format(time.RFC3339Nano)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the per-function index.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_calls_function ON calls(function, seq)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// pragma returns the current value of a pragma. Used by tests.
func (j *Journal) pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := j.db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}
