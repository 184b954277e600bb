package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civic-gov/platform/internal/shared/errors"
	"github.com/civic-gov/platform/internal/shared/types"
)

// Repository provides database operations for workers
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new worker repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const workerColumns = `
	uid, name, email, phone, role,
	department_id, department_name, zone, active,
	civic_score, tasks_completed, earned_badges, metrics_cached_at,
	joined_at, updated_at`

// Create registers a new worker
func (r *Repository) Create(ctx context.Context, w *Worker) error {
	query := `
		INSERT INTO civic.workers (
			uid, name, email, phone, role,
			department_id, department_name, zone, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.Name, w.Email, w.Phone, w.Role,
		w.DepartmentID, w.DepartmentName, w.Zone, w.Active,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("worker already exists")
		}
		return errors.Wrap(err, "failed to create worker")
	}

	return nil
}

// Get retrieves a worker by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Worker, error) {
	query := `SELECT` + workerColumns + ` FROM civic.workers WHERE uid = $1`

	w := &Worker{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.Name, &w.Email, &w.Phone, &w.Role,
		&w.DepartmentID, &w.DepartmentName, &w.Zone, &w.Active,
		&w.CivicScore, &w.TasksCompleted, &w.EarnedBadges, &w.MetricsCachedAt,
		&w.JoinedAt, &w.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("worker", id.String())
	}
	if err != nil {
		return nil, errors.Unavailable(err, "failed to get worker")
	}

	return w, nil
}

// Update updates a worker's profile
func (r *Repository) Update(ctx context.Context, w *Worker) error {
	query := `
		UPDATE civic.workers SET
			name = $2, email = $3, phone = $4, role = $5, zone = $6,
			updated_at = NOW()
		WHERE uid = $1`

	result, err := r.pool.Exec(ctx, query, w.ID, w.Name, w.Email, w.Phone, w.Role, w.Zone)
	if err != nil {
		return errors.Wrap(err, "failed to update worker")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("worker", w.ID.String())
	}

	return nil
}

// SetActive toggles a worker's leaderboard eligibility
func (r *Repository) SetActive(ctx context.Context, id types.ID, active bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE civic.workers SET active = $2, updated_at = NOW() WHERE uid = $1`,
		id, active,
	)
	if err != nil {
		return errors.Wrap(err, "failed to set worker active flag")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("worker", id.String())
	}

	return nil
}

// FindActive returns all workers eligible for ranking
func (r *Repository) FindActive(ctx context.Context) ([]Worker, error) {
	query := `SELECT` + workerColumns + ` FROM civic.workers WHERE active ORDER BY uid`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Unavailable(err, "failed to list active workers")
	}
	defer rows.Close()

	return scanWorkers(rows)
}

// List lists workers with optional filters
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Worker, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.Department != nil {
		conditions = append(conditions, fmt.Sprintf("department_name = $%d", argNum))
		args = append(args, *filter.Department)
		argNum++
	}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argNum))
		args = append(args, *filter.Active)
		argNum++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM civic.workers %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Unavailable(err, "failed to count workers")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT`+workerColumns+`
		FROM civic.workers
		%s
		ORDER BY name
		LIMIT $%d OFFSET $%d`, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Unavailable(err, "failed to list workers")
	}
	defer rows.Close()

	workers, err := scanWorkers(rows)
	if err != nil {
		return nil, 0, err
	}

	return workers, total, nil
}

// CacheMetrics writes back the derived metrics from a scoring run. Write
// only; reads always recompute from the issue store.
func (r *Repository) CacheMetrics(ctx context.Context, id types.ID, m MetricsSnapshot) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE civic.workers SET
			civic_score = $2, tasks_completed = $3, earned_badges = $4,
			metrics_cached_at = $5
		WHERE uid = $1`,
		id, m.CivicScore, m.TasksCompleted, m.EarnedBadges, time.Now(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to cache worker metrics")
	}

	return nil
}

func scanWorkers(rows pgx.Rows) ([]Worker, error) {
	var workers []Worker
	for rows.Next() {
		var w Worker
		err := rows.Scan(
			&w.ID, &w.Name, &w.Email, &w.Phone, &w.Role,
			&w.DepartmentID, &w.DepartmentName, &w.Zone, &w.Active,
			&w.CivicScore, &w.TasksCompleted, &w.EarnedBadges, &w.MetricsCachedAt,
			&w.JoinedAt, &w.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Unavailable(err, "failed to scan worker")
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable(err, "failed to read workers")
	}

	return workers, nil
}
