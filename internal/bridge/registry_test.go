package bridge

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_TakeIsAtMostOnce(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("a-1", NewPending("a-1", "a", nil)))

	p, ok := r.Take("a-1")
	require.True(t, ok)
	assert.Equal(t, "a-1", p.ID())

	_, ok = r.Take("a-1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	first := NewPending("a-1", "a", nil)
	require.NoError(t, r.Register("a-1", first))

	err := r.Register("a-1", NewPending("a-1", "a", nil))
	require.Error(t, err)

	p, ok := r.Take("a-1")
	require.True(t, ok)
	assert.Same(t, first, p)
}

func TestRegistry_Evict(t *testing.T) {
	r := NewRegistry()
	sink := &captureSink{}
	require.NoError(t, r.Register("a-1", NewPending("a-1", "a", sink)))

	timeout := NewTimeoutError("a-1", nil)
	assert.True(t, r.Evict("a-1", timeout))
	assert.False(t, r.Evict("a-1", timeout))

	require.Len(t, sink.failed, 1)
	assert.True(t, IsTimeout(sink.failed[0]))
}

func TestRegistry_DrainAll(t *testing.T) {
	r := NewRegistry()
	sinks := make([]*captureSink, 5)
	for i := range sinks {
		sinks[i] = &captureSink{}
		id := fmt.Sprintf("x-%d", i)
		require.NoError(t, r.Register(id, NewPending(id, "x", sinks[i])))
	}

	n := r.DrainAll(NewResetError("reset"))
	assert.Equal(t, 5, n)
	assert.Equal(t, 0, r.Len())

	for _, s := range sinks {
		require.Len(t, s.failed, 1)
		assert.True(t, IsTransportReset(s.failed[0]))
		assert.Empty(t, s.resolved)
	}

	assert.Equal(t, 0, r.DrainAll(NewResetError("again")))
}

func TestRegistry_ConcurrentTakeSingleWinner(t *testing.T) {
	for round := 0; round < 50; round++ {
		r := NewRegistry()
		require.NoError(t, r.Register("race-1", NewPending("race-1", "race", nil)))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := r.Take("race-1"); ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	}
}

func TestPending_FiresOnce(t *testing.T) {
	sink := &captureSink{}
	var outcomes []Outcome
	p := NewPending("a-1", "a", sink)
	p.done = func(o Outcome) { outcomes = append(outcomes, o) }

	assert.True(t, p.resolve([]byte(`{"ok":true}`)))
	assert.False(t, p.fail(errors.New("late")))
	assert.False(t, p.resolve([]byte(`{}`)))

	assert.Equal(t, []string{`{"ok":true}`}, sink.resolved)
	assert.Empty(t, sink.failed)
	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, "a", outcomes[0].Function)
}

func TestPending_DecodeFailureBecomesFail(t *testing.T) {
	var got error
	sink := Expect(func(int) { t.Fatal("unexpected success") }, func(err error) { got = err })
	p := NewPending("n-1", "n", sink)

	assert.True(t, p.resolve([]byte(`"not a number"`)))
	require.Error(t, got)
	assert.True(t, IsDecodeError(got))

	var be *Error
	require.ErrorAs(t, got, &be)
	assert.Equal(t, "n-1", be.CorrelationID)
}

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDsFrom(NewClockAt(9))
	assert.Equal(t, "a1-10", g.Next("a1"))
	assert.Equal(t, "a-11", g.Next("a"))
	assert.Equal(t, int64(11), g.clock.Current())

	assert.Equal(t, "getBalance", DefaultTag("bladeSdk.getBalance"))
	assert.Equal(t, "init", DefaultTag("init"))
}
