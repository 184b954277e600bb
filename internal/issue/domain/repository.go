package domain

import (
	"context"

	"github.com/civic-gov/platform/internal/shared/types"
)

// Repository defines the store contract the lifecycle and scoring engines
// depend on. Writes are field-scoped: UpdateFields persists exactly the
// staged changes of a transition under compare-and-set on the version
// column, so concurrent transitions on the same issue are linearized by the
// store and the losing writer surfaces Conflict.
type Repository interface {
	Save(ctx context.Context, i *Issue) error
	FindByID(ctx context.Context, id types.ID) (*Issue, error)

	// UpdateFields applies a partial update when the stored version still
	// matches expectedVersion. Returns Conflict when a concurrent writer got
	// there first, NotFound when the issue does not exist.
	UpdateFields(ctx context.Context, id types.ID, fields map[string]any, expectedVersion int64) error

	FindByAssignee(ctx context.Context, workerID types.ID) ([]Issue, error)
	FindByAssigneeAndProofStatus(ctx context.Context, workerID types.ID, status ProofStatus) ([]Issue, error)
	FindByDepartment(ctx context.Context, department Department) ([]Issue, error)

	// CountByAssignee returns the assigned-set and completed-set sizes the
	// scoring engine derives metrics from.
	CountByAssignee(ctx context.Context, workerID types.ID) (assigned int, completed int, err error)

	List(ctx context.Context, filter ListFilter) ([]Issue, int, error)
}

// ListFilter defines filters for listing issues
type ListFilter struct {
	Department *Department `json:"department,omitempty"`
	Status     *Status     `json:"status,omitempty"`
	Priority   *Priority   `json:"priority,omitempty"`
	Assignee   *types.ID   `json:"assignee,omitempty"`
	Search     string      `json:"search,omitempty"`
	Limit      int         `json:"limit,omitempty"`
	Offset     int         `json:"offset,omitempty"`
}
