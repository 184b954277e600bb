// Package scoring derives worker performance metrics from the issue store.
// Metrics are never stored as ground truth; every report is recomputed from
// the issue counts at read time.
package scoring

import (
	"context"
	"math"

	"github.com/civic-gov/platform/internal/shared/errors"
	"github.com/civic-gov/platform/internal/shared/types"
)

const pointsPerTask = 100
const pointsPerLevel = 1000

// TaskCounter is the slice of the issue store the engine reads.
// Implemented by the issue repository.
type TaskCounter interface {
	CountByAssignee(ctx context.Context, workerID types.ID) (assigned int, completed int, err error)
}

// ScoreReport is the derived performance snapshot for one worker
type ScoreReport struct {
	WorkerID          types.ID `json:"worker_id"`
	TasksAssigned     int      `json:"tasks_assigned"`
	TasksCompleted    int      `json:"tasks_completed"`
	CompletionRate    int      `json:"completion_rate"`
	CivicScore        int      `json:"civic_score"`
	Level             int      `json:"level"`
	PointsToNextLevel int      `json:"points_to_next_level"`
}

// Engine computes score reports from issue counts
type Engine struct {
	counter TaskCounter
}

// NewEngine creates a scoring engine over the given issue store
func NewEngine(counter TaskCounter) *Engine {
	return &Engine{counter: counter}
}

// Score computes the full score report for a worker. A store failure
// surfaces as-is so callers distinguish "no data" from "zero score".
func (e *Engine) Score(ctx context.Context, workerID types.ID) (*ScoreReport, error) {
	if workerID.IsZero() {
		return nil, errors.Validation("worker id is required", map[string]string{"worker_id": "required"})
	}

	assigned, completed, err := e.counter.CountByAssignee(ctx, workerID)
	if err != nil {
		return nil, err
	}

	return Compute(workerID, assigned, completed), nil
}

// Compute derives a score report from raw counts. Pure function; the zero
// denominator yields a zero rate, not a perfect one.
func Compute(workerID types.ID, assigned, completed int) *ScoreReport {
	rate := 0
	if assigned > 0 {
		rate = int(math.Round(100 * float64(completed) / float64(assigned)))
	}

	score := completed*pointsPerTask + rate*2

	return &ScoreReport{
		WorkerID:          workerID,
		TasksAssigned:     assigned,
		TasksCompleted:    completed,
		CompletionRate:    rate,
		CivicScore:        score,
		Level:             score/pointsPerLevel + 1,
		PointsToNextLevel: pointsPerLevel - score%pointsPerLevel,
	}
}
