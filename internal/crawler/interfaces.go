package crawler

import (
	"context"
	"errors"
	"time"
)

// ErrTaskNotFound is returned for unknown task IDs.
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskNotCompleted is returned when export is requested before the task
// reaches its completed state.
var ErrTaskNotCompleted = errors.New("task not completed")

// Session is one exclusively-owned browser page used sequentially by a
// single crawl execution. Implementations live in internal/browser.
type Session interface {
	// Navigate loads url and waits for the document to settle.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitIdle blocks until in-flight work on the page has quiesced.
	WaitIdle(ctx context.Context) error
	// PageHTML returns the rendered HTML of the top-level document.
	PageHTML(ctx context.Context) (string, error)
	// FrameHTML returns the rendered HTML of the first iframe document,
	// falling back to the top-level document when no iframe exists.
	FrameHTML(ctx context.Context) (string, error)
	// ClickText clicks the first element whose text matches exactly,
	// searching the top-level document and any same-origin iframes.
	ClickText(ctx context.Context, text string) error
	// ObserveTab clicks the element matching text and returns the URL of
	// the browser tab the click spawned. The tab is closed afterwards.
	ObserveTab(ctx context.Context, text string) (string, error)
	// Close releases the page and its browser resources.
	Close()
}

// SessionFactory opens browser sessions. Each task gets its own.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// TaskStore holds the task registry.
type TaskStore interface {
	CreateTask(ctx context.Context, task Task) error
	UpdateProgress(ctx context.Context, taskID string, progress int, message string) error
	CompleteTask(ctx context.Context, taskID string, records []Record, message, file string) error
	FailTask(ctx context.Context, taskID string, message string) error
	GetTask(ctx context.Context, taskID string) (Task, error)
	// ResultPage returns a fixed-size page of a completed-or-running
	// task's records; the offset is clipped to the record count.
	ResultPage(ctx context.Context, taskID string, page, pageSize int) (ResultPage, error)
	// Records returns the full record set for export.
	Records(ctx context.Context, taskID string) ([]Record, error)
	// ListTasks returns all known tasks, newest first.
	ListTasks(ctx context.Context) ([]Task, error)
}

// BlobStore persists result snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes task-completion events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for submitted tasks.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Pacer spaces out requests against the target site.
type Pacer interface {
	// Pause waits the inter-page politeness interval.
	Pause(ctx context.Context)
	// PauseEnrich waits the shorter between-enrichments interval.
	PauseEnrich(ctx context.Context)
	// Sleep waits a caller-chosen duration (retry backoff, settle delays).
	Sleep(ctx context.Context, d time.Duration)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task identifiers.
type IDGenerator interface {
	NewTaskID(now time.Time) (string, error)
}
