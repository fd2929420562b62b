package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueProcessesSubmittedJobs(t *testing.T) {
	var mu sync.Mutex
	seen := make([]interface{}, 0)
	q := NewQueue("test", func(_ context.Context, job Job) error {
		mu.Lock()
		seen = append(seen, job.Payload)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())

	for i := 0; i < 5; i++ {
		id, err := q.Submit("notify", i)
		require.NoError(t, err)
		require.NotEmpty(t, id)
	}
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 5)
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var calls int32
	gaveUp := make(chan Job, 1)
	q := NewQueue("test", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("chat api down")
	}, QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnGiveUp:   func(j Job, _ error) { gaveUp <- j },
	})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Submit("notify", "hello")
	require.NoError(t, err)

	select {
	case job := <-gaveUp:
		require.Equal(t, 3, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never gave up")
	}
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestQueueRecoversOnRetry(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	q := NewQueue("test", func(context.Context, Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	_, err := q.Submit("notify", "hello")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
}

func TestQueueRejectsWhenNotStarted(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	_, err := q.Submit("notify", "x")
	require.ErrorIs(t, err, ErrNotStarted)

	q.Start(context.Background())
	q.Stop()
	_, err = q.Submit("notify", "x")
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestQueueBackoffCaps(t *testing.T) {
	q := NewQueue("test", nil, QueueConfig{RetryDelay: time.Second, MaxRetryDelay: 5 * time.Second})
	require.Equal(t, time.Second, q.backoff(1))
	require.Equal(t, 2*time.Second, q.backoff(2))
	require.Equal(t, 4*time.Second, q.backoff(3))
	require.Equal(t, 5*time.Second, q.backoff(4))
}
