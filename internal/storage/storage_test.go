package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/recallforge/recallforge/internal/domain"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedObjective(t *testing.T, db *DB) domain.LearningObjective {
	t.Helper()
	lo := domain.LearningObjective{
		ID:        uuid.New(),
		Title:     "Go concurrency",
		Priority:  domain.PriorityMedium,
		Tags:      []string{"go"},
		CreatedAt: baseTime,
	}
	require.NoError(t, db.InsertObjective(context.Background(), lo, 0))
	return lo
}

func seedQuestion(t *testing.T, db *DB, objectiveID uuid.UUID) domain.Question {
	t.Helper()
	id := uuid.New()
	q := domain.Question{
		ID:          id,
		ObjectiveID: objectiveID,
		Text:        fmt.Sprintf("What does question %s test?", id),
		Options:     []string{"channels", "mutexes", "goroutines", "waitgroups"},
		Answer:      "channels",
		Explanation: "Channels are the answer here.",
		Hash:        fmt.Sprintf("hash-%s", id),
		CreatedAt:   baseTime,
	}
	require.NoError(t, db.InsertQuestion(context.Background(), q, 0))
	return q
}
