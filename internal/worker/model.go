package worker

import (
	"time"

	"github.com/civic-gov/platform/internal/shared/types"
)

// Worker represents a municipal field worker who receives routed issues
type Worker struct {
	ID    types.ID `json:"uid"`
	Name  string   `json:"name"`
	Email string   `json:"email,omitempty"`
	Phone string   `json:"phone,omitempty"`
	Role  string   `json:"role,omitempty"`

	DepartmentID   *types.ID `json:"department_id,omitempty"`
	DepartmentName string    `json:"department_name"`
	Zone           string    `json:"zone,omitempty"`

	// Active controls leaderboard eligibility. An inactive worker keeps
	// their issues and metrics but is never ranked.
	Active bool `json:"active"`

	// Cached derived metrics, refreshed after scoring runs. Presentation
	// only; the scoring engine always recomputes from the issue store.
	CivicScore      int        `json:"civic_score"`
	TasksCompleted  int        `json:"tasks_completed"`
	EarnedBadges    int        `json:"earned_badges"`
	MetricsCachedAt *time.Time `json:"metrics_cached_at,omitempty"`

	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateWorkerRequest is the request to register a worker
type CreateWorkerRequest struct {
	Name           string    `json:"name" validate:"required,min=1,max=255"`
	Email          string    `json:"email" validate:"omitempty,email"`
	Phone          string    `json:"phone"`
	Role           string    `json:"role"`
	DepartmentID   *types.ID `json:"department_id,omitempty"`
	DepartmentName string    `json:"department_name" validate:"required"`
	Zone           string    `json:"zone"`
}

// UpdateWorkerRequest is the request to update a worker's profile
type UpdateWorkerRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Role  *string `json:"role,omitempty"`
	Zone  *string `json:"zone,omitempty"`
}

// SetActiveRequest toggles a worker's leaderboard eligibility
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// ListFilter defines filters for listing workers
type ListFilter struct {
	Department *string `json:"department,omitempty"`
	Active     *bool   `json:"active,omitempty"`
	Search     string  `json:"search,omitempty"`
	Limit      int     `json:"limit,omitempty"`
	Offset     int     `json:"offset,omitempty"`
}

// MetricsSnapshot is the cached view written back after a scoring run
type MetricsSnapshot struct {
	CivicScore     int
	TasksCompleted int
	EarnedBadges   int
}
