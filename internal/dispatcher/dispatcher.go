// Package dispatcher fans queued crawl tasks out to the worker pool.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/gbstd/std-crawler/internal/crawler"
	"github.com/gbstd/std-crawler/internal/runner"
)

// Dispatcher owns the worker pool. The API enqueues through it; Run keeps
// the workers draining the queue until shutdown.
type Dispatcher struct {
	queue   crawler.Queue
	workers []*runner.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher over the queue and worker pool.
func New(queue crawler.Queue, workers []*runner.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger,
	}
}

// Run starts every worker and blocks until the context finishes and all
// workers have drained out.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher starting", zap.Int("workers", len(d.workers)))
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *runner.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// Enqueue submits a task to the pool.
func (d *Dispatcher) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	d.logger.Debug("task enqueued", zap.String("task_id", item.TaskID))
	return nil
}
