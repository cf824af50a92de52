// Package memory implements the submission queue on a bounded channel.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gbstd/std-crawler/internal/crawler"
)

// ErrClosed is returned from Dequeue after Close drains the queue.
var ErrClosed = errors.New("queue closed")

// Queue buffers submitted crawl tasks between the API and the worker pool.
// Capacity bounds how many submissions can sit waiting; a full queue makes
// Enqueue block until a worker catches up or the caller gives up.
type Queue struct {
	ch      chan crawler.QueueItem
	closeMu sync.Mutex
	closed  bool
}

// NewQueue returns a queue holding at most capacity pending tasks.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan crawler.QueueItem, capacity),
	}
}

// Enqueue hands a submitted task to the worker pool. Blocks while the queue
// is full; the context bounds the wait.
func (q *Queue) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- item:
		return nil
	}
}

// Dequeue blocks until a task is available, the queue closes, or the
// context ends.
func (q *Queue) Dequeue(ctx context.Context) (crawler.QueueItem, error) {
	select {
	case <-ctx.Done():
		return crawler.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.ch:
		if !ok {
			return crawler.QueueItem{}, ErrClosed
		}
		return item, nil
	}
}

// Depth reports how many tasks are currently waiting.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Close stops accepting tasks. Safe to call more than once.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
