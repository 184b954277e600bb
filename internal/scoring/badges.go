package scoring

// Tier is the rarity tier of a badge
type Tier string

const (
	TierCommon    Tier = "common"
	TierRare      Tier = "rare"
	TierEpic      Tier = "epic"
	TierLegendary Tier = "legendary"
)

// BadgeCategory groups badges by the metric they reward
type BadgeCategory string

const (
	CategoryMilestone   BadgeCategory = "milestone"
	CategoryPerformance BadgeCategory = "performance"
	CategoryRank        BadgeCategory = "rank"
)

// Badge is a named achievement. Eligibility is a predicate over current
// metrics, re-evaluated on every read; there is no persisted earned state,
// so a badge is lost if the metrics regress below its threshold.
type Badge struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Tier        Tier          `json:"tier"`
	Category    BadgeCategory `json:"category"`

	eligible func(m BadgeMetrics) bool
}

// BadgeMetrics is the input to badge eligibility evaluation. Rank is the
// worker's leaderboard position from the ranking engine, 0 when unranked.
type BadgeMetrics struct {
	TasksCompleted int
	CompletionRate int
	Rank           int
}

func milestone(id, name, desc string, tier Tier, threshold int) Badge {
	return Badge{
		ID: id, Name: name, Description: desc, Tier: tier, Category: CategoryMilestone,
		eligible: func(m BadgeMetrics) bool { return m.TasksCompleted >= threshold },
	}
}

func performance(id, name, desc string, tier Tier, threshold int) Badge {
	return Badge{
		ID: id, Name: name, Description: desc, Tier: tier, Category: CategoryPerformance,
		eligible: func(m BadgeMetrics) bool { return m.CompletionRate >= threshold },
	}
}

func rankBadge(id, name, desc string, tier Tier, eligible func(rank int) bool) Badge {
	return Badge{
		ID: id, Name: name, Description: desc, Tier: tier, Category: CategoryRank,
		eligible: func(m BadgeMetrics) bool { return m.Rank > 0 && eligible(m.Rank) },
	}
}

// Catalog is the full badge catalog, ordered for display
var Catalog = []Badge{
	milestone("first-response", "First Response", "Complete your first task", TierCommon, 1),
	milestone("getting-started", "Getting Started", "Complete 5 tasks", TierCommon, 5),
	milestone("problem-solver", "Problem Solver", "Complete 25 tasks", TierRare, 25),
	milestone("neighborhood-fixer", "Neighborhood Fixer", "Complete 50 tasks", TierRare, 50),
	milestone("city-champion", "City Champion", "Complete 100 tasks", TierEpic, 100),
	milestone("civic-legend", "Civic Legend", "Complete 500 tasks", TierLegendary, 500),

	performance("reliable", "Reliable", "Keep a completion rate of 70% or better", TierCommon, 70),
	performance("dependable", "Dependable", "Keep a completion rate of 85% or better", TierRare, 85),
	performance("outstanding", "Outstanding", "Keep a completion rate of 95% or better", TierEpic, 95),
	{
		ID:          "flawless",
		Name:        "Flawless",
		Description: "Complete every one of 20 or more assigned tasks",
		Tier:        TierLegendary,
		Category:    CategoryPerformance,
		// The completed floor keeps a worker with no assignments (rate 0)
		// and tiny sample sizes out of the top performance badge.
		eligible: func(m BadgeMetrics) bool {
			return m.CompletionRate >= 100 && m.TasksCompleted >= 20
		},
	},

	rankBadge("top-fifty", "Top 50", "Rank in the top 50 on the leaderboard", TierCommon,
		func(rank int) bool { return rank <= 50 }),
	rankBadge("top-ten", "Top 10", "Rank in the top 10 on the leaderboard", TierRare,
		func(rank int) bool { return rank <= 10 }),
	rankBadge("top-five", "Top 5", "Rank in the top 5 on the leaderboard", TierEpic,
		func(rank int) bool { return rank <= 5 }),
	rankBadge("number-one", "Number One", "Hold the top leaderboard position", TierLegendary,
		func(rank int) bool { return rank == 1 }),
}

// EvaluateBadges returns the badges the worker currently holds
func EvaluateBadges(m BadgeMetrics) []Badge {
	var earned []Badge
	for _, b := range Catalog {
		if b.eligible(m) {
			earned = append(earned, b)
		}
	}
	return earned
}
