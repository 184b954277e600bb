// Package ranking orders active workers by civic score to produce stable
// leaderboard ranks. Ranks are recomputed from the issue store on each
// read; there is no incrementally maintained standing.
package ranking

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/civic-gov/platform/internal/scoring"
	"github.com/civic-gov/platform/internal/shared/types"
)

// Member is a ranking candidate. Only active workers are members; an
// inactive worker keeps their metrics but never appears in the standings.
type Member struct {
	ID         types.ID `json:"id"`
	Name       string   `json:"name"`
	Department string   `json:"department"`
}

// MemberSource lists the workers eligible for ranking
type MemberSource interface {
	ActiveMembers(ctx context.Context) ([]Member, error)
}

// Scorer computes a worker's score report
type Scorer interface {
	Score(ctx context.Context, workerID types.ID) (*scoring.ScoreReport, error)
}

// Entry is one leaderboard row
type Entry struct {
	Rank           int      `json:"rank"`
	WorkerID       types.ID `json:"worker_id"`
	Name           string   `json:"name"`
	Department     string   `json:"department"`
	CivicScore     int      `json:"civic_score"`
	TasksCompleted int      `json:"tasks_completed"`
	CompletionRate int      `json:"completion_rate"`
	Band           Band     `json:"band"`
}

// Band groups scores into the performance tiers shown on the public
// leaderboard.
type Band string

const (
	BandHigh         Band = "high-performers"
	BandAverage      Band = "average-performers"
	BandImproving    Band = "improving"
	BandNeedsSupport Band = "needs-support"
)

// BandFor maps a civic score to its performance tier
func BandFor(score int) Band {
	switch {
	case score >= 4500:
		return BandHigh
	case score >= 3500:
		return BandAverage
	case score >= 2500:
		return BandImproving
	default:
		return BandNeedsSupport
	}
}

// Engine aggregates scores over the active worker set
type Engine struct {
	source MemberSource
	scorer Scorer

	// maxConcurrent bounds the score fan-out so a large roster cannot
	// exhaust the store's connection pool.
	maxConcurrent int
}

// NewEngine creates a ranking engine
func NewEngine(source MemberSource, scorer Scorer, maxConcurrent int) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Engine{source: source, scorer: scorer, maxConcurrent: maxConcurrent}
}

// Leaderboard computes the full standings. Ties on score break by worker id
// ascending so the ordering is deterministic, and ranks are contiguous 1..N.
func (e *Engine) Leaderboard(ctx context.Context) ([]Entry, error) {
	members, err := e.source.ActiveMembers(ctx)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []Entry{}, nil
	}

	entries := make([]Entry, len(members))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)
	for idx, m := range members {
		g.Go(func() error {
			report, err := e.scorer.Score(gctx, m.ID)
			if err != nil {
				return err
			}
			entries[idx] = Entry{
				WorkerID:       m.ID,
				Name:           m.Name,
				Department:     m.Department,
				CivicScore:     report.CivicScore,
				TasksCompleted: report.TasksCompleted,
				CompletionRate: report.CompletionRate,
				Band:           BandFor(report.CivicScore),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CivicScore != entries[j].CivicScore {
			return entries[i].CivicScore > entries[j].CivicScore
		}
		return entries[i].WorkerID < entries[j].WorkerID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	return entries, nil
}

// Top returns the first n standings
func (e *Engine) Top(ctx context.Context, n int) ([]Entry, error) {
	entries, err := e.Leaderboard(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

// RankOf returns a worker's standing even when they fall outside the
// visible top-N. The second return is false for workers not in the
// standings, which includes every inactive worker.
func (e *Engine) RankOf(ctx context.Context, workerID types.ID) (Entry, bool, error) {
	entries, err := e.Leaderboard(ctx)
	if err != nil {
		return Entry{}, false, err
	}

	for _, entry := range entries {
		if entry.WorkerID == workerID {
			return entry, true, nil
		}
	}

	return Entry{}, false, nil
}
