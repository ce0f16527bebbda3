package bridge

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/params"
)

func TestDispatch_BeforeReady(t *testing.T) {
	tr := newFakeTransport()
	tr.ready = false
	b := New(tr)

	sink := &captureSink{}
	id := b.Dispatch(Call{Function: "bladeSdk.getBalance", Args: []any{"0.0.1"}}, sink)

	assert.Empty(t, id)
	require.Len(t, sink.failed, 1)
	assert.True(t, IsTransportNotReady(sink.failed[0]))
	assert.Equal(t, 0, b.Pending())
	assert.Empty(t, tr.Submissions())
}

func TestDispatch_AppendsCorrelationID(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)

	id := b.Dispatch(Call{Function: "bladeSdk.getBalance", Args: []any{"0.0.1"}}, nil)
	assert.Equal(t, "getBalance-1", id)
	assert.Equal(t, 1, b.Pending())

	subs := tr.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, id, subs[0].ID)
	assert.Equal(t, "bladeSdk.getBalance('0.0.1', 'getBalance-1')", subs[0].Script)
}

func TestDispatch_CustomTag(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)

	id := b.Dispatch(Call{Function: "bladeSdk.init", Tag: "boot"}, nil)
	assert.Equal(t, "boot-1", id)
	assert.Equal(t, "bladeSdk.init('boot-1')", tr.Submissions()[0].Script)
}

func TestDispatch_EncodingErrorRegistersNothing(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)

	sink := &captureSink{}
	id := b.Dispatch(Call{Function: "f", Args: []any{make(chan int)}}, sink)
	assert.Empty(t, id)
	require.Len(t, sink.failed, 1)
	assert.True(t, IsEncodingError(sink.failed[0]))

	sink = &captureSink{}
	id = b.Dispatch(Call{Function: "not a path"}, sink)
	assert.Empty(t, id)
	require.Len(t, sink.failed, 1)
	assert.True(t, IsEncodingError(sink.failed[0]))

	assert.Equal(t, 0, b.Pending())
	assert.Empty(t, tr.Submissions())

	// No id was consumed by the failed calls.
	assert.Equal(t, "f-1", b.Dispatch(Call{Function: "f"}, nil))
}

func TestDispatch_SubmitFailure(t *testing.T) {
	tr := newFakeTransport()
	tr.submitErr = errQueueClosed
	b := New(tr)

	sink := &captureSink{}
	id := b.Dispatch(Call{Function: "f"}, sink)
	assert.Equal(t, "f-1", id)

	require.Len(t, sink.failed, 1)
	assert.True(t, IsTransportNotReady(sink.failed[0]))
	assert.ErrorIs(t, sink.failed[0], errQueueClosed)
	assert.Equal(t, 0, b.Pending())
}

func TestDispatch_SameTickReply(t *testing.T) {
	tr := newFakeTransport()
	tr.onSubmit = func(s Submission, in Inbound) {
		in.HandleMessage(fmt.Sprintf(`{"completionKey":%q,"data":{"status":"success"}}`, s.ID))
	}
	b := New(tr)

	sink := &captureSink{}
	b.Dispatch(Call{Function: "bladeSdk.init", Args: []any{"key", "testnet"}}, sink)

	assert.Equal(t, []string{`{"status":"success"}`}, sink.resolved)
	assert.Empty(t, sink.failed)
	assert.Equal(t, 0, b.Pending())
}

func TestDispatch_ParameterListArgument(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr)

	list := params.NewBuilder().String("Hello, Backend").MustBuild()
	b.Dispatch(Call{Function: "bladeSdk.contractCallFunction", Args: []any{"0.0.5", "set_message", list}}, nil)

	script := tr.Submissions()[0].Script
	assert.Contains(t, script, "'"+params.MustEncode(list)+"'")
	assert.True(t, strings.HasSuffix(script, ", 'contractCallFunction-1')"))
}

func TestDispatch_ConcurrentIDsUnique(t *testing.T) {
	tr := newFakeTransport()
	obs := &recordingObserver{}
	b := New(tr, WithObserver(obs))

	const n = 500
	var wg sync.WaitGroup
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = b.Dispatch(Call{Function: "bladeSdk.getBalance", Args: []any{i}}, nil)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, n, b.Pending())
	assert.Len(t, tr.Submissions(), n)
	assert.Len(t, obs.dispatched, n)
}

type constIDs string

func (c constIDs) Next(string) string { return string(c) }

func TestDispatch_DuplicateIDFromGenerator(t *testing.T) {
	tr := newFakeTransport()
	b := New(tr, WithIDGenerator(constIDs("same")))

	first := &captureSink{}
	second := &captureSink{}
	assert.Equal(t, "same", b.Dispatch(Call{Function: "f"}, first))
	assert.Empty(t, b.Dispatch(Call{Function: "f"}, second))

	assert.Empty(t, first.failed)
	require.Len(t, second.failed, 1)
	assert.True(t, IsProtocolDesync(second.failed[0]))
	assert.Len(t, tr.Submissions(), 1)
}
