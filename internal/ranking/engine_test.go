package ranking

import (
	"context"
	"fmt"
	"testing"

	"github.com/civic-gov/platform/internal/scoring"
	"github.com/civic-gov/platform/internal/shared/errors"
	"github.com/civic-gov/platform/internal/shared/types"
)

type fakeSource struct {
	members []Member
	err     error
}

func (f fakeSource) ActiveMembers(ctx context.Context) ([]Member, error) {
	return f.members, f.err
}

type fakeScorer struct {
	counts map[types.ID][2]int // assigned, completed
	err    error
}

func (f fakeScorer) Score(ctx context.Context, workerID types.ID) (*scoring.ScoreReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := f.counts[workerID]
	return scoring.Compute(workerID, c[0], c[1]), nil
}

func member(id string) Member {
	return Member{ID: types.ID(id), Name: "Worker " + id, Department: "pwd"}
}

func TestLeaderboardOrdersByScoreDescending(t *testing.T) {
	source := fakeSource{members: []Member{member("a"), member("b"), member("c")}}
	scorer := fakeScorer{counts: map[types.ID][2]int{
		"a": {10, 5},
		"b": {10, 10},
		"c": {10, 1},
	}}

	engine := NewEngine(source, scorer, 4)
	entries, err := engine.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}

	wantOrder := []types.ID{"b", "a", "c"}
	for i, want := range wantOrder {
		if entries[i].WorkerID != want {
			t.Errorf("position %d = %s, want %s", i, entries[i].WorkerID, want)
		}
	}
}

func TestLeaderboardTieBreaksByWorkerID(t *testing.T) {
	// All zero scores. Ranks must follow worker id ascending regardless of
	// the order the source returns members in.
	source := fakeSource{members: []Member{member("c"), member("a"), member("b")}}
	scorer := fakeScorer{counts: map[types.ID][2]int{}}

	engine := NewEngine(source, scorer, 4)
	entries, err := engine.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}

	wantOrder := []types.ID{"a", "b", "c"}
	for i, want := range wantOrder {
		if entries[i].WorkerID != want {
			t.Errorf("position %d = %s, want %s", i, entries[i].WorkerID, want)
		}
	}
}

func TestLeaderboardRanksAreContiguous(t *testing.T) {
	var members []Member
	counts := map[types.ID][2]int{}
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("w%02d", i)
		members = append(members, member(id))
		// Clusters of equal scores to force tie-breaking
		counts[types.ID(id)] = [2]int{10, i % 5}
	}

	engine := NewEngine(fakeSource{members: members}, fakeScorer{counts: counts}, 3)
	entries, err := engine.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}

	if len(entries) != 25 {
		t.Fatalf("got %d entries, want 25", len(entries))
	}
	for i, entry := range entries {
		if entry.Rank != i+1 {
			t.Errorf("entry %d has rank %d, want %d", i, entry.Rank, i+1)
		}
	}
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.CivicScore > prev.CivicScore {
			t.Errorf("scores out of order at %d: %d before %d", i, prev.CivicScore, cur.CivicScore)
		}
		if cur.CivicScore == prev.CivicScore && cur.WorkerID < prev.WorkerID {
			t.Errorf("tie at %d not broken by worker id: %s before %s", i, prev.WorkerID, cur.WorkerID)
		}
	}
}

func TestLeaderboardDeterministic(t *testing.T) {
	var members []Member
	counts := map[types.ID][2]int{}
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("w%02d", i)
		members = append(members, member(id))
		counts[types.ID(id)] = [2]int{8, 4}
	}

	engine := NewEngine(fakeSource{members: members}, fakeScorer{counts: counts}, 4)

	first, err := engine.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	for run := 0; run < 5; run++ {
		again, err := engine.Leaderboard(context.Background())
		if err != nil {
			t.Fatalf("Leaderboard: %v", err)
		}
		for i := range first {
			if again[i].WorkerID != first[i].WorkerID || again[i].Rank != first[i].Rank {
				t.Fatalf("run %d: position %d differs", run, i)
			}
		}
	}
}

func TestLeaderboardEmptyRoster(t *testing.T) {
	engine := NewEngine(fakeSource{}, fakeScorer{}, 4)

	entries, err := engine.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestLeaderboardPropagatesScoreFailure(t *testing.T) {
	source := fakeSource{members: []Member{member("a"), member("b")}}
	scorer := fakeScorer{err: errors.Unavailable(context.DeadlineExceeded, "query failed")}

	engine := NewEngine(source, scorer, 2)
	_, err := engine.Leaderboard(context.Background())
	if !errors.Is(err, errors.ErrUnavailable) {
		t.Errorf("expected data unavailable error, got %v", err)
	}
}

func TestTopTruncates(t *testing.T) {
	var members []Member
	counts := map[types.ID][2]int{}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("w%02d", i)
		members = append(members, member(id))
		counts[types.ID(id)] = [2]int{10, 10 - i}
	}

	engine := NewEngine(fakeSource{members: members}, fakeScorer{counts: counts}, 4)
	top, err := engine.Top(context.Background(), 3)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("got %d entries, want 3", len(top))
	}
	if top[0].WorkerID != "w00" || top[0].Rank != 1 {
		t.Errorf("top entry = %s rank %d, want w00 rank 1", top[0].WorkerID, top[0].Rank)
	}
}

func TestRankOfFindsWorkerOutsideTopN(t *testing.T) {
	var members []Member
	counts := map[types.ID][2]int{}
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("w%02d", i)
		members = append(members, member(id))
		counts[types.ID(id)] = [2]int{100, 99 - i}
	}

	engine := NewEngine(fakeSource{members: members}, fakeScorer{counts: counts}, 8)

	entry, ok, err := engine.RankOf(context.Background(), "w59")
	if err != nil {
		t.Fatalf("RankOf: %v", err)
	}
	if !ok {
		t.Fatal("expected w59 to be ranked")
	}
	if entry.Rank != 60 {
		t.Errorf("rank = %d, want 60", entry.Rank)
	}
}

func TestBandFor(t *testing.T) {
	tests := []struct {
		score int
		want  Band
	}{
		{0, BandNeedsSupport},
		{2499, BandNeedsSupport},
		{2500, BandImproving},
		{3499, BandImproving},
		{3500, BandAverage},
		{4499, BandAverage},
		{4500, BandHigh},
		{9000, BandHigh},
	}
	for _, tt := range tests {
		if got := BandFor(tt.score); got != tt.want {
			t.Errorf("BandFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestLeaderboardEntriesCarryBand(t *testing.T) {
	source := fakeSource{members: []Member{member("a"), member("b")}}
	scorer := fakeScorer{counts: map[types.ID][2]int{
		"a": {50, 48}, // 4992
		"b": {10, 3},  // 360
	}}

	engine := NewEngine(source, scorer, 2)
	entries, err := engine.Leaderboard(context.Background())
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if entries[0].Band != BandHigh {
		t.Errorf("top band = %s, want %s", entries[0].Band, BandHigh)
	}
	if entries[1].Band != BandNeedsSupport {
		t.Errorf("bottom band = %s, want %s", entries[1].Band, BandNeedsSupport)
	}
}

func TestRankOfUnknownWorker(t *testing.T) {
	engine := NewEngine(fakeSource{members: []Member{member("a")}}, fakeScorer{counts: map[types.ID][2]int{}}, 2)

	_, ok, err := engine.RankOf(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("RankOf: %v", err)
	}
	if ok {
		t.Error("unlisted worker should not be ranked")
	}
}
