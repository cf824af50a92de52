// Package runner executes crawl tasks pulled from the submission queue.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gbstd/std-crawler/internal/crawler"
	"github.com/gbstd/std-crawler/internal/metrics"
)

// History mirrors terminal task transitions into durable storage. Optional.
type History interface {
	RecordTerminal(ctx context.Context, task crawler.Task, finishedAt time.Time) error
}

// Config controls Worker behavior.
type Config struct {
	Topic          string
	SnapshotPrefix string
	Paginator      crawler.PaginatorConfig
	Enricher       crawler.EnricherConfig
}

// Worker consumes queued tasks and drives each through the crawl pipeline.
// Every task gets its own browser session, used strictly sequentially and
// released on every terminating path.
type Worker struct {
	queue     crawler.Queue
	store     crawler.TaskStore
	blobStore crawler.BlobStore
	publisher crawler.Publisher
	sessions  crawler.SessionFactory
	pacer     crawler.Pacer
	clock     crawler.Clock
	history   History
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. history may be nil.
func New(
	queue crawler.Queue,
	store crawler.TaskStore,
	blobStore crawler.BlobStore,
	publisher crawler.Publisher,
	sessions crawler.SessionFactory,
	pacer crawler.Pacer,
	clock crawler.Clock,
	history History,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		queue:     queue,
		store:     store,
		blobStore: blobStore,
		publisher: publisher,
		sessions:  sessions,
		pacer:     pacer,
		clock:     clock,
		history:   history,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queued tasks until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued task", zap.String("task_id", item.TaskID))
		w.execute(ctx, item)
	}
}

// execute runs one task to a terminal state. Orchestration errors fail the
// task; partial results from a failed run are dropped.
func (w *Worker) execute(ctx context.Context, item crawler.QueueItem) {
	metrics.IncActiveTasks()
	defer metrics.DecActiveTasks()

	session, err := w.sessions.NewSession(ctx)
	if err != nil {
		w.fail(ctx, item.TaskID, fmt.Sprintf("browser start failed: %v", err))
		return
	}
	defer session.Close()

	if err := w.store.UpdateProgress(ctx, item.TaskID, 0, progressMessage(item.Params)); err != nil {
		w.logger.Error("progress update failed", zap.String("task_id", item.TaskID), zap.Error(err))
	}

	coordinator := w.buildCoordinator(ctx, session, item.TaskID)
	records, err := coordinator.Run(ctx, item.Params)
	if err != nil {
		w.fail(ctx, item.TaskID, fmt.Sprintf("crawl failed: %v", err))
		return
	}

	fileURI, err := w.writeSnapshot(ctx, item.TaskID, records)
	if err != nil {
		w.fail(ctx, item.TaskID, fmt.Sprintf("snapshot write failed: %v", err))
		return
	}

	message := fmt.Sprintf("crawl finished, %d records", len(records))
	if err := w.store.CompleteTask(ctx, item.TaskID, records, message, fileURI); err != nil {
		w.logger.Error("completion write failed", zap.String("task_id", item.TaskID), zap.Error(err))
		return
	}
	metrics.ObserveTask(string(crawler.TaskStatusCompleted))
	w.logger.Info("task completed",
		zap.String("task_id", item.TaskID),
		zap.Int("records", len(records)),
		zap.String("file", fileURI),
	)

	w.publishCompletion(ctx, item, len(records), fileURI)
	w.recordHistory(ctx, item.TaskID)
}

func (w *Worker) buildCoordinator(ctx context.Context, session crawler.Session, taskID string) *crawler.Coordinator {
	progress := func(percent int, message string) {
		if percent > 99 {
			percent = 99
		}
		if err := w.store.UpdateProgress(ctx, taskID, percent, message); err != nil {
			w.logger.Warn("progress update failed", zap.String("task_id", taskID), zap.Error(err))
		}
	}
	logger := w.logger.With(zap.String("task_id", taskID))
	paginator := crawler.NewPaginator(session, w.pacer, w.cfg.Paginator, logger.Named("paginator"))
	enricher := crawler.NewEnricher(session, w.pacer, w.cfg.Enricher, logger.Named("enricher"))
	return crawler.NewCoordinator(paginator, enricher, w.pacer, logger, progress)
}

func (w *Worker) writeSnapshot(ctx context.Context, taskID string, records []crawler.Record) (string, error) {
	payload, err := crawler.ExportJSON(records)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	path := fmt.Sprintf("results_%s.json", taskID)
	if prefix := strings.Trim(w.cfg.SnapshotPrefix, "/"); prefix != "" {
		path = prefix + "/" + path
	}
	uri, err := w.blobStore.PutObject(ctx, path, "application/json", payload)
	if err != nil {
		return "", fmt.Errorf("put snapshot: %w", err)
	}
	return uri, nil
}

func (w *Worker) publishCompletion(ctx context.Context, item crawler.QueueItem, total int, fileURI string) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	payload := map[string]any{
		"task_id":   item.TaskID,
		"keywords":  item.Params.Keywords,
		"total":     total,
		"file":      fileURI,
		"timestamp": w.clock.Now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		w.logger.Warn("completion publish failed", zap.String("task_id", item.TaskID), zap.Error(err))
	}
}

func (w *Worker) fail(ctx context.Context, taskID, message string) {
	if err := w.store.FailTask(ctx, taskID, message); err != nil {
		w.logger.Error("failure write failed", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	metrics.ObserveTask(string(crawler.TaskStatusFailed))
	w.logger.Warn("task failed", zap.String("task_id", taskID), zap.String("message", message))
	w.recordHistory(ctx, taskID)
}

func (w *Worker) recordHistory(ctx context.Context, taskID string) {
	if w.history == nil {
		return
	}
	task, err := w.store.GetTask(ctx, taskID)
	if err != nil {
		w.logger.Warn("history lookup failed", zap.String("task_id", taskID), zap.Error(err))
		return
	}
	if err := w.history.RecordTerminal(ctx, task, w.clock.Now()); err != nil {
		w.logger.Warn("history write failed", zap.String("task_id", taskID), zap.Error(err))
	}
}

func progressMessage(params crawler.TaskParams) string {
	if len(params.Keywords) == 1 {
		return fmt.Sprintf("starting crawl for %q", params.Keywords[0])
	}
	return fmt.Sprintf("starting batch crawl for %d keywords", len(params.Keywords))
}
