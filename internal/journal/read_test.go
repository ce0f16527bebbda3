package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/bridge"
)

func TestGet_NotFound(t *testing.T) {
	j, _ := createTestJournal(t)

	_, err := j.Get(context.Background(), "s1", "missing-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_OrderingAndFilters(t *testing.T) {
	j, _ := createTestJournal(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("getBalance-%d", i)
		require.NoError(t, j.RecordDispatch(ctx, id, "getBalance", "bladeSdk.getBalance('0.0.1', '"+id+"')"))
	}
	require.NoError(t, j.RecordDispatch(ctx, "getInfo-4", "getInfo", "bladeSdk.getInfo('getInfo-4')"))
	require.NoError(t, j.RecordOutcome(ctx, bridge.Outcome{ID: "getBalance-2", Data: json.RawMessage(`{}`)}))

	all, err := j.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, rec := range all {
		assert.Equal(t, int64(i+1), rec.Seq)
	}

	balances, err := j.List(ctx, Filter{Function: "getBalance"})
	require.NoError(t, err)
	assert.Len(t, balances, 3)

	limited, err := j.List(ctx, Filter{Function: "getBalance", Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "getBalance-1", limited[0].ID)

	pending, err := j.Pending(ctx)
	require.NoError(t, err)
	ids := make([]string, len(pending))
	for i, rec := range pending {
		ids[i] = rec.ID
	}
	assert.Equal(t, []string{"getBalance-1", "getBalance-3", "getInfo-4"}, ids)

	ok, err := j.List(ctx, Filter{Session: "s1", Status: StatusOK})
	require.NoError(t, err)
	require.Len(t, ok, 1)
	assert.Equal(t, "{}", ok[0].Payload)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	j, _ := createTestJournal(t)

	recs, err := j.List(context.Background(), Filter{Session: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}
