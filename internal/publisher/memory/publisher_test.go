package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "task-completions", map[string]any{"task_id": "t1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	messages := p.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "task-completions", messages[0].Topic)

	payload, ok := messages[0].Payload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "t1", payload["task_id"])
}
