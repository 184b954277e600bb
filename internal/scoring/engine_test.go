package scoring

import (
	"context"
	"testing"

	"github.com/civic-gov/platform/internal/shared/errors"
	"github.com/civic-gov/platform/internal/shared/types"
)

type stubCounter struct {
	assigned  int
	completed int
	err       error
}

func (s stubCounter) CountByAssignee(ctx context.Context, workerID types.ID) (int, int, error) {
	return s.assigned, s.completed, s.err
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		assigned  int
		completed int

		wantRate  int
		wantScore int
		wantLevel int
		wantNext  int
	}{
		{
			name:     "no assignments yields zero rate not a perfect one",
			assigned: 0, completed: 0,
			wantRate: 0, wantScore: 0, wantLevel: 1, wantNext: 1000,
		},
		{
			name:     "single completed task",
			assigned: 1, completed: 1,
			wantRate: 100, wantScore: 300, wantLevel: 1, wantNext: 700,
		},
		{
			name:     "rate rounds to nearest",
			assigned: 3, completed: 2,
			// 66.67 rounds to 67
			wantRate: 67, wantScore: 334, wantLevel: 1, wantNext: 666,
		},
		{
			name:     "half rounds up",
			assigned: 8, completed: 1,
			// 12.5 rounds to 13
			wantRate: 13, wantScore: 126, wantLevel: 1, wantNext: 874,
		},
		{
			name:     "level boundary",
			assigned: 10, completed: 8,
			// score = 800 + 160 = 960
			wantRate: 80, wantScore: 960, wantLevel: 1, wantNext: 40,
		},
		{
			name:     "crosses into level two",
			assigned: 10, completed: 10,
			// score = 1000 + 200 = 1200
			wantRate: 100, wantScore: 1200, wantLevel: 2, wantNext: 800,
		},
		{
			name:     "completed with nothing assigned still scores tasks",
			assigned: 20, completed: 0,
			wantRate: 0, wantScore: 0, wantLevel: 1, wantNext: 1000,
		},
		{
			name:     "large history",
			assigned: 500, completed: 500,
			// score = 50000 + 200 = 50200
			wantRate: 100, wantScore: 50200, wantLevel: 51, wantNext: 800,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Compute("worker-1", tt.assigned, tt.completed)

			if report.CompletionRate != tt.wantRate {
				t.Errorf("rate = %d, want %d", report.CompletionRate, tt.wantRate)
			}
			if report.CivicScore != tt.wantScore {
				t.Errorf("score = %d, want %d", report.CivicScore, tt.wantScore)
			}
			if report.Level != tt.wantLevel {
				t.Errorf("level = %d, want %d", report.Level, tt.wantLevel)
			}
			if report.PointsToNextLevel != tt.wantNext {
				t.Errorf("points to next level = %d, want %d", report.PointsToNextLevel, tt.wantNext)
			}
		})
	}
}

func TestScoreSurfacesStoreFailure(t *testing.T) {
	engine := NewEngine(stubCounter{err: errors.Unavailable(context.DeadlineExceeded, "query failed")})

	_, err := engine.Score(context.Background(), types.NewID())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, errors.ErrUnavailable) {
		t.Errorf("expected data unavailable error, got %v", err)
	}
}

func TestScoreRejectsEmptyWorkerID(t *testing.T) {
	engine := NewEngine(stubCounter{})

	_, err := engine.Score(context.Background(), "")
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestScoreUsesStoreCounts(t *testing.T) {
	engine := NewEngine(stubCounter{assigned: 4, completed: 3})

	report, err := engine.Score(context.Background(), types.NewID())
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if report.TasksAssigned != 4 || report.TasksCompleted != 3 {
		t.Errorf("counts = %d/%d, want 4/3", report.TasksAssigned, report.TasksCompleted)
	}
	if report.CompletionRate != 75 {
		t.Errorf("rate = %d, want 75", report.CompletionRate)
	}
}
