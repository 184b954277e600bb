package scoring

import "testing"

func earnedIDs(m BadgeMetrics) map[string]bool {
	ids := make(map[string]bool)
	for _, b := range EvaluateBadges(m) {
		ids[b.ID] = true
	}
	return ids
}

func TestMilestoneBadges(t *testing.T) {
	tests := []struct {
		completed int
		want      []string
	}{
		{0, nil},
		{1, []string{"first-response"}},
		{5, []string{"first-response", "getting-started"}},
		{25, []string{"first-response", "getting-started", "problem-solver"}},
		{100, []string{"first-response", "getting-started", "problem-solver", "neighborhood-fixer", "city-champion"}},
		{500, []string{"first-response", "getting-started", "problem-solver", "neighborhood-fixer", "city-champion", "civic-legend"}},
	}

	for _, tt := range tests {
		earned := earnedIDs(BadgeMetrics{TasksCompleted: tt.completed})
		for _, id := range tt.want {
			if !earned[id] {
				t.Errorf("completed=%d: missing badge %s", tt.completed, id)
			}
		}
		milestoneCount := 0
		for _, b := range EvaluateBadges(BadgeMetrics{TasksCompleted: tt.completed}) {
			if b.Category == CategoryMilestone {
				milestoneCount++
			}
		}
		if milestoneCount != len(tt.want) {
			t.Errorf("completed=%d: %d milestone badges, want %d", tt.completed, milestoneCount, len(tt.want))
		}
	}
}

func TestFlawlessRequiresVolumeNotJustRate(t *testing.T) {
	// 20 of 20 earns it
	if !earnedIDs(BadgeMetrics{TasksCompleted: 20, CompletionRate: 100})["flawless"] {
		t.Error("20/20 at rate 100 should earn flawless")
	}

	// 19 of 20 does not, even though 95 rounds up in display elsewhere
	if earnedIDs(BadgeMetrics{TasksCompleted: 19, CompletionRate: 95})["flawless"] {
		t.Error("19/20 should not earn flawless")
	}

	// The no-assignment edge: rate is computed as 0 for 0/0, so a worker
	// with no history never sees the top performance badge
	if earnedIDs(BadgeMetrics{TasksCompleted: 0, CompletionRate: 0})["flawless"] {
		t.Error("worker with no assignments should not earn flawless")
	}

	// A perfect rate on a short history is still not enough
	if earnedIDs(BadgeMetrics{TasksCompleted: 5, CompletionRate: 100})["flawless"] {
		t.Error("5/5 should not earn flawless, volume floor is 20")
	}
}

func TestPerformanceBadgeTiers(t *testing.T) {
	tests := []struct {
		rate int
		want map[string]bool
	}{
		{69, map[string]bool{}},
		{70, map[string]bool{"reliable": true}},
		{85, map[string]bool{"reliable": true, "dependable": true}},
		{95, map[string]bool{"reliable": true, "dependable": true, "outstanding": true}},
	}

	for _, tt := range tests {
		earned := earnedIDs(BadgeMetrics{CompletionRate: tt.rate})
		for _, id := range []string{"reliable", "dependable", "outstanding"} {
			if earned[id] != tt.want[id] {
				t.Errorf("rate=%d badge %s: earned=%v, want %v", tt.rate, id, earned[id], tt.want[id])
			}
		}
	}
}

func TestRankBadges(t *testing.T) {
	tests := []struct {
		rank int
		want []string
	}{
		{0, nil}, // unranked
		{1, []string{"top-fifty", "top-ten", "top-five", "number-one"}},
		{2, []string{"top-fifty", "top-ten", "top-five"}},
		{5, []string{"top-fifty", "top-ten", "top-five"}},
		{6, []string{"top-fifty", "top-ten"}},
		{10, []string{"top-fifty", "top-ten"}},
		{11, []string{"top-fifty"}},
		{50, []string{"top-fifty"}},
		{51, nil},
	}

	for _, tt := range tests {
		earned := earnedIDs(BadgeMetrics{Rank: tt.rank})
		rankCount := 0
		for _, b := range EvaluateBadges(BadgeMetrics{Rank: tt.rank}) {
			if b.Category == CategoryRank {
				rankCount++
			}
		}
		if rankCount != len(tt.want) {
			t.Errorf("rank=%d: %d rank badges, want %d", tt.rank, rankCount, len(tt.want))
		}
		for _, id := range tt.want {
			if !earned[id] {
				t.Errorf("rank=%d: missing badge %s", tt.rank, id)
			}
		}
	}
}

func TestBadgesCanRegress(t *testing.T) {
	strong := earnedIDs(BadgeMetrics{TasksCompleted: 25, CompletionRate: 90})
	if !strong["problem-solver"] || !strong["dependable"] {
		t.Fatal("expected problem-solver and dependable at 25 completed, rate 90")
	}

	// Eligibility is a pure predicate over current metrics; a regressed
	// rate loses the performance badge while milestones stand
	weaker := earnedIDs(BadgeMetrics{TasksCompleted: 25, CompletionRate: 60})
	if weaker["dependable"] {
		t.Error("dependable should be lost when rate regresses below 85")
	}
	if !weaker["problem-solver"] {
		t.Error("milestone badge should survive a rate regression")
	}
}
