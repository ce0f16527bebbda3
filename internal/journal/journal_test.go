package journal

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/testutil"
)

func TestOpen_Pragmas(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx := context.Background()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			got, err := j.pragma(ctx, tt.pragma)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_DefaultSessionIsUUIDv7(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "j.db"))
	require.NoError(t, err)
	defer j.Close()

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`), j.Session())
}

func TestOpen_ReopenContinuesSeq(t *testing.T) {
	j, path := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordDispatch(ctx, "getInfo-1", "getInfo", "bladeSdk.getInfo('getInfo-1')"))
	require.NoError(t, j.RecordDispatch(ctx, "getInfo-2", "getInfo", "bladeSdk.getInfo('getInfo-2')"))
	require.NoError(t, j.Close())

	j2, err := Open(path, WithSessions(testutil.FixedSession("s2")))
	require.NoError(t, err)
	defer j2.Close()

	assert.Equal(t, int64(2), j2.LastSeq())

	// Correlation ids restart per process; the session keeps them apart.
	require.NoError(t, j2.RecordDispatch(ctx, "getInfo-1", "getInfo", "bladeSdk.getInfo('getInfo-1')"))

	all, err := j2.List(ctx, Filter{Function: "getInfo"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].Seq, all[1].Seq, all[2].Seq})
	assert.Equal(t, "s2", all[2].Session)

	sessions, err := j2.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, sessions)
}

func TestOpen_DuplicateSessionFails(t *testing.T) {
	j, path := createTestJournal(t)
	require.NoError(t, j.Close())

	_, err := Open(path, WithSessions(testutil.FixedSession("s1")))
	assert.Error(t, err)
}

func TestOpenExisting_ReadsWithoutStartingSession(t *testing.T) {
	j, path := createTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.RecordDispatch(ctx, "getInfo-1", "bladeSdk.getInfo", "bladeSdk.getInfo('getInfo-1')"))
	require.NoError(t, j.Close())

	ro, err := OpenExisting(path)
	require.NoError(t, err)
	defer ro.Close()

	assert.Equal(t, "", ro.Session())
	assert.Equal(t, int64(1), ro.LastSeq())

	sessions, err := ro.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, sessions)

	rec, err := ro.Get(ctx, "s1", "getInfo-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)

	err = ro.RecordDispatch(ctx, "getInfo-2", "bladeSdk.getInfo", "")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestOpenExisting_MissingFile(t *testing.T) {
	_, err := OpenExisting(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}
