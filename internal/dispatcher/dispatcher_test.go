package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gbstd/std-crawler/internal/crawler"
	memoryqueue "github.com/gbstd/std-crawler/internal/queue/memory"
)

func TestEnqueueProxiesToQueue(t *testing.T) {
	t.Parallel()

	queue := memoryqueue.NewQueue(2)
	defer queue.Close()
	d := New(queue, nil, zap.NewNop())

	require.NoError(t, d.Enqueue(context.Background(), crawler.QueueItem{TaskID: "t1"}))

	item, err := queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "t1", item.TaskID)
}

func TestEnqueueSurfacesQueueErrors(t *testing.T) {
	t.Parallel()

	queue := memoryqueue.NewQueue(0)
	defer queue.Close()
	d := New(queue, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Enqueue(ctx, crawler.QueueItem{TaskID: "t1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "queue enqueue")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	queue := memoryqueue.NewQueue(1)
	defer queue.Close()
	d := New(queue, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
