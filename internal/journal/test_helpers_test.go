package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/ledgerbridge/internal/testutil"
)

var testEpoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestJournal opens a journal in a temp dir with a fixed session and
// a clock that advances 10ms per reading.
func createTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	clock := testutil.NewStepClock(testEpoch, 10*time.Millisecond)
	j, err := Open(path, WithSessions(testutil.FixedSession("s1")), WithNow(clock.Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j, path
}
