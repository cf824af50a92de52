package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gbstd/std-crawler/internal/crawler"
)

func newRunningTask(id string, createdAt time.Time) crawler.Task {
	return crawler.Task{
		ID:        id,
		Status:    crawler.TaskStatusRunning,
		Message:   "task submitted",
		Params:    crawler.TaskParams{Keywords: []string{"传感器"}, MaxPages: 3},
		CreatedAt: createdAt,
	}
}

func makeRecords(n int) []crawler.Record {
	out := make([]crawler.Record, n)
	for i := range out {
		out[i] = crawler.Record{crawler.FieldStdCode: fmt.Sprintf("GB/T %04d", i)}
	}
	return out
}

func TestTaskStoreLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewTaskStore()

	task := newRunningTask("t1", time.Now())
	require.NoError(t, store.CreateTask(ctx, task))
	require.Error(t, store.CreateTask(ctx, task))

	require.NoError(t, store.UpdateProgress(ctx, "t1", 40, "searching"))
	got, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, crawler.TaskStatusRunning, got.Status)
	require.Equal(t, 40, got.Progress)
	require.Equal(t, "searching", got.Message)

	records := makeRecords(2)
	require.NoError(t, store.CompleteTask(ctx, "t1", records, "crawl finished, 2 records", "file:///data/results_t1.json"))
	got, err = store.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, crawler.TaskStatusCompleted, got.Status)
	require.Equal(t, 100, got.Progress)
	require.Equal(t, 2, got.Total)
	require.Equal(t, "file:///data/results_t1.json", got.File)
}

func TestTaskStoreUnknownTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewTaskStore()

	_, err := store.GetTask(ctx, "missing")
	require.ErrorIs(t, err, crawler.ErrTaskNotFound)
	require.ErrorIs(t, store.UpdateProgress(ctx, "missing", 1, ""), crawler.ErrTaskNotFound)
	require.ErrorIs(t, store.CompleteTask(ctx, "missing", nil, "", ""), crawler.ErrTaskNotFound)
	require.ErrorIs(t, store.FailTask(ctx, "missing", ""), crawler.ErrTaskNotFound)
	_, err = store.Records(ctx, "missing")
	require.ErrorIs(t, err, crawler.ErrTaskNotFound)
	_, err = store.ResultPage(ctx, "missing", 1, 20)
	require.ErrorIs(t, err, crawler.ErrTaskNotFound)
}

func TestTaskStoreFailDropsRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewTaskStore()

	require.NoError(t, store.CreateTask(ctx, newRunningTask("t1", time.Now())))
	require.NoError(t, store.FailTask(ctx, "t1", "crawl failed: browser crashed"))

	got, err := store.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, crawler.TaskStatusFailed, got.Status)
	require.Zero(t, got.Total)
	require.Nil(t, got.Records)
}

func TestTaskStoreRecordsRequiresCompletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewTaskStore()

	require.NoError(t, store.CreateTask(ctx, newRunningTask("t1", time.Now())))
	_, err := store.Records(ctx, "t1")
	require.ErrorIs(t, err, crawler.ErrTaskNotCompleted)

	require.NoError(t, store.FailTask(ctx, "t1", "boom"))
	_, err = store.Records(ctx, "t1")
	require.ErrorIs(t, err, crawler.ErrTaskNotCompleted)

	require.NoError(t, store.CreateTask(ctx, newRunningTask("t2", time.Now())))
	require.NoError(t, store.CompleteTask(ctx, "t2", makeRecords(1), "done", ""))
	records, err := store.Records(ctx, "t2")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestTaskStoreRecordsReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewTaskStore()

	require.NoError(t, store.CreateTask(ctx, newRunningTask("t1", time.Now())))
	require.NoError(t, store.CompleteTask(ctx, "t1", makeRecords(1), "done", ""))

	records, err := store.Records(ctx, "t1")
	require.NoError(t, err)
	records[0][crawler.FieldStdCode] = "mutated"

	again, err := store.Records(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "GB/T 0000", again[0][crawler.FieldStdCode])
}

func TestTaskStoreResultPagePagination(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewTaskStore()

	require.NoError(t, store.CreateTask(ctx, newRunningTask("t1", time.Now())))
	require.NoError(t, store.CompleteTask(ctx, "t1", makeRecords(45), "done", ""))

	page, err := store.ResultPage(ctx, "t1", 2, 20)
	require.NoError(t, err)
	require.Equal(t, 45, page.Total)
	require.Equal(t, 2, page.Page)
	require.Equal(t, 20, page.PageSize)
	require.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Results, 20)
	require.Equal(t, "GB/T 0020", page.Results[0][crawler.FieldStdCode])
	require.Equal(t, "GB/T 0039", page.Results[19][crawler.FieldStdCode])
}

func TestTaskStoreResultPagePastEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewTaskStore()

	require.NoError(t, store.CreateTask(ctx, newRunningTask("t1", time.Now())))
	require.NoError(t, store.CompleteTask(ctx, "t1", makeRecords(5), "done", ""))

	page, err := store.ResultPage(ctx, "t1", 9, 20)
	require.NoError(t, err)
	require.Empty(t, page.Results)
	require.Equal(t, 5, page.Total)
	require.Equal(t, 1, page.TotalPages)
}

func TestTaskStoreResultPageNormalizesInputs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewTaskStore()

	require.NoError(t, store.CreateTask(ctx, newRunningTask("t1", time.Now())))
	require.NoError(t, store.CompleteTask(ctx, "t1", makeRecords(5), "done", ""))

	page, err := store.ResultPage(ctx, "t1", 0, -1)
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 20, page.PageSize)
	require.Len(t, page.Results, 5)
}

func TestTaskStoreListTasksNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewTaskStore()

	base := time.Now()
	require.NoError(t, store.CreateTask(ctx, newRunningTask("old", base.Add(-2*time.Hour))))
	require.NoError(t, store.CreateTask(ctx, newRunningTask("new", base)))
	require.NoError(t, store.CreateTask(ctx, newRunningTask("mid", base.Add(-time.Hour))))

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	require.Equal(t, "new", tasks[0].ID)
	require.Equal(t, "mid", tasks[1].ID)
	require.Equal(t, "old", tasks[2].ID)
}
