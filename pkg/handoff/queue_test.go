package handoff_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/silt/pkg/handoff"
)

func TestQueue_BufferThenDrain(t *testing.T) {
	ctx := context.Background()
	q := handoff.New[int]()

	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)
	assert.Equal(t, 3, q.Len())

	for want := 1; want <= 3; want++ {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ConsumerWaits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q := handoff.New[string]()

	done := make(chan string, 1)
	go func() {
		v, err := q.Dequeue(ctx)
		if err == nil {
			done <- v
		}
	}()

	// Give the consumer time to suspend before producing.
	time.Sleep(20 * time.Millisecond)
	q.Enqueue("late")

	select {
	case got := <-done:
		assert.Equal(t, "late", got)
	case <-ctx.Done():
		t.Fatal("consumer never resumed")
	}
}

func TestQueue_FIFOAmongWaiters(t *testing.T) {
	ctx := context.Background()
	q := handoff.New[int]()

	var mu sync.Mutex
	got := make(map[int]int)
	var wg sync.WaitGroup
	ready := make(chan struct{})

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-ready
			// Stagger registration so waiter order is deterministic.
			time.Sleep(time.Duration(i*30) * time.Millisecond)
			v, err := q.Dequeue(ctx)
			require.NoError(t, err)
			mu.Lock()
			got[i] = v
			mu.Unlock()
		}(i)
	}
	close(ready)

	time.Sleep(150 * time.Millisecond)
	q.Enqueue(10)
	q.Enqueue(20)
	q.Enqueue(30)
	wg.Wait()

	// Oldest waiter gets the oldest item.
	assert.Equal(t, map[int]int{0: 10, 1: 20, 2: 30}, got)
}

func TestQueue_CancelledDequeue(t *testing.T) {
	q := handoff.New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The abandoned waiter must not swallow a later item.
	q.Enqueue(7)
	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestQueue_Clear(t *testing.T) {
	q := handoff.New[int]()
	q.Enqueue(1)
	q.Enqueue(2)
	q.Clear()
	assert.Equal(t, 0, q.Len())
}
