// Package uuid provides task ID generation helpers.
package uuid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// taskIDLayout matches the timestamp format task IDs have always used.
const taskIDLayout = "20060102_150405"

// Generator creates time-derived task identifiers.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewTaskID returns a timestamp-based ID with a random suffix so that two
// submissions in the same second stay distinct.
func (Generator) NewTaskID(now time.Time) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id suffix: %w", err)
	}
	return fmt.Sprintf("%s_%s", now.Format(taskIDLayout), id.String()[:8]), nil
}
