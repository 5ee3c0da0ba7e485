package webtransport

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueuePushPop(t *testing.T) {
	q := newQueue[int]()
	q.push(1)
	q.push(2)

	ctx := context.Background()
	v, err := q.pop(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	v, err = q.pop(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := newQueue[int]()
	done := make(chan int, 1)
	go func() {
		v, err := q.pop(context.Background())
		require.NoError(t, err)
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	q.push(42)

	select {
	case v := <-done:
		require.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("pop did not unblock after push")
	}
}

// A canceled pop must never discard an item already pushed (spec §5
// "Cancellation"): it stays at the head of the queue for the next caller.
func TestQueueCancelDoesNotDropItem(t *testing.T) {
	q := newQueue[int]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.pop(ctx)
	require.ErrorIs(t, err, context.Canceled)

	q.push(7)

	v, err := q.pop(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestQueueCloseWithDrainsBeforeReturningErr(t *testing.T) {
	q := newQueue[int]()
	q.push(1)
	q.closeWith(fmt.Errorf("closed"))

	v, err := q.pop(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, err = q.pop(context.Background())
	require.Error(t, err)
}

func TestQueueConcurrentPushPop(t *testing.T) {
	q := newQueue[int]()
	const n = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.push(i)
		}
	}()

	got := make([]int, 0, n)
	for i := 0; i < n; i++ {
		v, err := q.pop(context.Background())
		require.NoError(t, err)
		got = append(got, v)
	}
	wg.Wait()

	require.Len(t, got, n)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}
