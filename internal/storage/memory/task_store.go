// Package memory provides in-memory stores backing the service by default.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/gbstd/std-crawler/internal/crawler"
)

// TaskStore holds the process-scoped task registry. Entries are added on
// submission and never evicted; each task is written by its own execution
// and read concurrently by status/result queries.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]crawler.Task
	order []string
}

// NewTaskStore constructs a TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]crawler.Task),
	}
}

// CreateTask registers a newly submitted task.
func (s *TaskStore) CreateTask(_ context.Context, task crawler.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return errors.New("task already exists")
	}
	s.tasks[task.ID] = task
	s.order = append(s.order, task.ID)
	return nil
}

// UpdateProgress replaces the progress and message of a running task.
func (s *TaskStore) UpdateProgress(_ context.Context, taskID string, progress int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return crawler.ErrTaskNotFound
	}
	task.Progress = progress
	task.Message = message
	s.tasks[taskID] = task
	return nil
}

// CompleteTask transitions a task to completed, storing its full record set,
// summary message and snapshot file reference.
func (s *TaskStore) CompleteTask(_ context.Context, taskID string, records []crawler.Record, message, file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return crawler.ErrTaskNotFound
	}
	task.Status = crawler.TaskStatusCompleted
	task.Progress = 100
	task.Message = message
	task.Records = records
	task.Total = len(records)
	task.File = file
	s.tasks[taskID] = task
	return nil
}

// FailTask transitions a task to failed. Partial results accumulated before
// the failure are dropped, never stored.
func (s *TaskStore) FailTask(_ context.Context, taskID string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return crawler.ErrTaskNotFound
	}
	task.Status = crawler.TaskStatusFailed
	task.Message = message
	task.Records = nil
	task.Total = 0
	s.tasks[taskID] = task
	return nil
}

// GetTask fetches a task snapshot by ID.
func (s *TaskStore) GetTask(_ context.Context, taskID string) (crawler.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return crawler.Task{}, crawler.ErrTaskNotFound
	}
	return task, nil
}

// ResultPage returns one fixed-size page of a task's records. The offset is
// clipped to the record count; page and pageSize are normalized to minimums.
func (s *TaskStore) ResultPage(_ context.Context, taskID string, page, pageSize int) (crawler.ResultPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return crawler.ResultPage{}, crawler.ErrTaskNotFound
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	total := len(task.Records)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	results := make([]crawler.Record, 0, end-start)
	for _, rec := range task.Records[start:end] {
		results = append(results, rec.Clone())
	}
	return crawler.ResultPage{
		TaskID:     taskID,
		Status:     task.Status,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
		Results:    results,
	}, nil
}

// Records returns the full record set of a completed task.
func (s *TaskStore) Records(_ context.Context, taskID string) ([]crawler.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil, crawler.ErrTaskNotFound
	}
	if task.Status != crawler.TaskStatusCompleted {
		return nil, crawler.ErrTaskNotCompleted
	}
	out := make([]crawler.Record, len(task.Records))
	for i, rec := range task.Records {
		out[i] = rec.Clone()
	}
	return out, nil
}

// ListTasks returns all known tasks, newest first by creation time.
func (s *TaskStore) ListTasks(_ context.Context) ([]crawler.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
