package runtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgerbridge/internal/bridge"
)

func submitJob(id string) job {
	return job{kind: jobSubmit, submission: bridge.Submission{ID: id, Script: "f('" + id + "')"}}
}

func TestJobQueue_FIFO(t *testing.T) {
	q := newJobQueue()
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(submitJob(id)))
	}

	for _, want := range []string{"a", "b", "c"} {
		j, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, j.submission.ID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestJobQueue_DropSubmissionsKeepsControlJobs(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(submitJob("a"))
	q.Enqueue(job{kind: jobCallback, callback: func() {}})
	q.Enqueue(submitJob("b"))
	q.Enqueue(job{kind: jobReset})

	dropped := q.DropSubmissions()
	require.Len(t, dropped, 2)
	assert.Equal(t, "a", dropped[0].ID)
	assert.Equal(t, "b", dropped[1].ID)

	assert.Equal(t, 2, q.Len())
	j, _ := q.TryDequeue()
	assert.Equal(t, jobCallback, j.kind)
	j, _ = q.TryDequeue()
	assert.Equal(t, jobReset, j.kind)
}

func TestJobQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newJobQueue()
	q.Close()
	q.Close() // idempotent

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(submitJob("late")))

	select {
	case <-q.Wait():
	default:
		t.Fatal("closed queue should wake waiters")
	}
}

func TestJobQueue_ConcurrentEnqueue(t *testing.T) {
	q := newJobQueue()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(job{kind: jobCallback, callback: func() {}})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Len())
}
