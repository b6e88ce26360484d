package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDrainKeepsPublishOrder(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Publish(i))
	}
	assert.Equal(t, 5, q.Len())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, q.Drain())
	assert.Nil(t, q.Drain())
}

func TestQueueNotifyOnPublish(t *testing.T) {
	q := NewQueue[string]()
	require.NoError(t, q.Publish("a"))
	require.NoError(t, q.Publish("b"))

	select {
	case <-q.C():
	case <-time.After(time.Second):
		t.Fatal("expected wake-up after publish")
	}
	assert.Equal(t, []string{"a", "b"}, q.Drain())
}

func TestQueuePopResignalsWhenItemsRemain(t *testing.T) {
	q := NewQueue[int]()
	require.NoError(t, q.Publish(1))
	require.NoError(t, q.Publish(2))
	<-q.C()

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	select {
	case <-q.C():
	default:
		t.Fatal("expected re-signal while items remain")
	}
}

func TestQueueWait(t *testing.T) {
	q := NewQueue[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Publish(7)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := q.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestQueueWaitContextDone(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueueClose(t *testing.T) {
	q := NewQueue[int]()
	require.NoError(t, q.Publish(1))
	q.Close()
	assert.ErrorIs(t, q.Publish(2), ErrQueueClosed)

	v, err := q.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = q.Wait(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = q.Publish(i)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, q.Drain(), 800)
}
