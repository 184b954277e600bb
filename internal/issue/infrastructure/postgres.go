package infrastructure

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civic-gov/platform/internal/issue/domain"
	"github.com/civic-gov/platform/internal/shared/errors"
	"github.com/civic-gov/platform/internal/shared/types"
)

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const issueColumns = `
	id, title, description, category, department, priority,
	status, proof_status,
	assigned_personnel, reported_by,
	location_address, location_zone, location_lat, location_lng,
	proof_media_url, proof_media_type, proof_notes,
	proof_geo_lat, proof_geo_lng, proof_geo_accuracy_m,
	escalation_reason, escalation_by, escalation_at, escalation_status,
	original_post_id, version,
	reported_at, assigned_at, submitted_at, last_updated`

// updatableColumns is the whitelist for field-scoped updates. Anything
// outside it is a programming error, not caller input.
var updatableColumns = map[string]bool{
	"status":               true,
	"proof_status":         true,
	"assigned_personnel":   true,
	"assigned_at":          true,
	"submitted_at":         true,
	"last_updated":         true,
	"proof_media_url":      true,
	"proof_media_type":     true,
	"proof_notes":          true,
	"proof_geo_lat":        true,
	"proof_geo_lng":        true,
	"proof_geo_accuracy_m": true,
	"escalation_reason":    true,
	"escalation_by":        true,
	"escalation_at":        true,
	"escalation_status":    true,
	"priority":             true,
}

// Save inserts a new issue
func (r *PostgresRepository) Save(ctx context.Context, i *domain.Issue) error {
	query := `
		INSERT INTO civic.issues (` + issueColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29, $30
		)`

	var (
		proofURL, proofType, proofNotes *string
		proofLat, proofLng, proofAcc    *float64
		escReason, escStatus            *string
		escBy                           *types.ID
		escAt                           *time.Time
	)
	if i.Proof != nil {
		proofURL = &i.Proof.MediaURL
		mt := string(i.Proof.MediaType)
		proofType = &mt
		proofNotes = &i.Proof.Notes
		if i.Proof.Geo != nil {
			proofLat = &i.Proof.Geo.Lat
			proofLng = &i.Proof.Geo.Lng
			proofAcc = &i.Proof.Geo.AccuracyMeters
		}
	}
	if i.Escalation != nil {
		escReason = &i.Escalation.Reason
		escBy = &i.Escalation.EscalatedBy
		escAt = &i.Escalation.EscalatedAt
		st := string(i.Escalation.Status)
		escStatus = &st
	}

	_, err := r.pool.Exec(ctx, query,
		i.ID, i.Title, i.Description, i.Category, i.Department, i.Priority,
		i.Status, i.ProofStatus,
		i.AssignedPersonnel, i.ReportedBy,
		i.Location.Address, i.Location.Zone, i.Location.Lat, i.Location.Lng,
		proofURL, proofType, proofNotes,
		proofLat, proofLng, proofAcc,
		escReason, escBy, escAt, escStatus,
		i.OriginalPostID, i.Version,
		i.ReportedAt, i.AssignedAt, i.SubmittedAt, i.LastUpdated,
	)

	if err != nil {
		if isTimeout(err) {
			return errors.Timeout("save issue")
		}
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("issue already exists")
		}
		return errors.Wrap(err, "failed to save issue")
	}

	return nil
}

// FindByID finds an issue by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Issue, error) {
	query := `SELECT` + issueColumns + ` FROM civic.issues WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	i, err := scanIssue(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("issue", id.String())
	}
	if err != nil {
		if isTimeout(err) {
			return nil, errors.Timeout("find issue")
		}
		return nil, errors.Unavailable(err, "failed to load issue")
	}

	return i, nil
}

// UpdateFields applies a field-scoped partial update under compare-and-set
// on the version column. A losing writer gets Conflict and must re-read.
func (r *PostgresRepository) UpdateFields(ctx context.Context, id types.ID, fields map[string]any, expectedVersion int64) error {
	if len(fields) == 0 {
		return nil
	}

	// Deterministic column order for the generated statement.
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !updatableColumns[col] {
			return errors.Internal(fmt.Errorf("column %q is not updatable", col))
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var sb strings.Builder
	args := make([]any, 0, len(cols)+2)
	sb.WriteString("UPDATE civic.issues SET version = version + 1")
	for _, col := range cols {
		args = append(args, fields[col])
		fmt.Fprintf(&sb, ", %s = $%d", col, len(args))
	}
	args = append(args, id)
	fmt.Fprintf(&sb, " WHERE id = $%d", len(args))
	args = append(args, expectedVersion)
	fmt.Fprintf(&sb, " AND version = $%d", len(args))

	tag, err := r.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		if isTimeout(err) {
			return errors.Timeout("update issue")
		}
		return errors.Unavailable(err, "failed to update issue")
	}

	if tag.RowsAffected() == 0 {
		// Distinguish a lost race from a missing issue.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM civic.issues WHERE id = $1)`, id).Scan(&exists); err != nil {
			return errors.Unavailable(err, "failed to verify issue")
		}
		if !exists {
			return errors.NotFound("issue", id.String())
		}
		return errors.Conflict("issue was modified by a concurrent update")
	}

	return nil
}

// FindByAssignee returns all issues assigned to a worker
func (r *PostgresRepository) FindByAssignee(ctx context.Context, workerID types.ID) ([]domain.Issue, error) {
	query := `SELECT` + issueColumns + `
		FROM civic.issues
		WHERE assigned_personnel = $1
		ORDER BY reported_at DESC`

	return r.queryIssues(ctx, query, workerID)
}

// FindByAssigneeAndProofStatus returns a worker's issues filtered by proof status
func (r *PostgresRepository) FindByAssigneeAndProofStatus(ctx context.Context, workerID types.ID, status domain.ProofStatus) ([]domain.Issue, error) {
	query := `SELECT` + issueColumns + `
		FROM civic.issues
		WHERE assigned_personnel = $1 AND proof_status = $2
		ORDER BY reported_at DESC`

	return r.queryIssues(ctx, query, workerID, status)
}

// FindByDepartment returns a department's issue queue, newest first
func (r *PostgresRepository) FindByDepartment(ctx context.Context, department domain.Department) ([]domain.Issue, error) {
	query := `SELECT` + issueColumns + `
		FROM civic.issues
		WHERE department = $1
		ORDER BY reported_at DESC`

	return r.queryIssues(ctx, query, department)
}

// CountByAssignee returns the assigned-set and completed-set sizes for a worker
func (r *PostgresRepository) CountByAssignee(ctx context.Context, workerID types.ID) (int, int, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE proof_status = $2)
		FROM civic.issues
		WHERE assigned_personnel = $1`

	var assigned, completed int
	err := r.pool.QueryRow(ctx, query, workerID, domain.ProofApproved).Scan(&assigned, &completed)
	if err != nil {
		if isTimeout(err) {
			return 0, 0, errors.Timeout("count issues")
		}
		return 0, 0, errors.Unavailable(err, "failed to count issues")
	}

	return assigned, completed, nil
}

// List returns issues matching the filter with a total count
func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Issue, int, error) {
	where := []string{"1=1"}
	args := []any{}

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if filter.Department != nil {
		add("department = $%d", *filter.Department)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.Priority != nil {
		add("priority = $%d", *filter.Priority)
	}
	if filter.Assignee != nil {
		add("assigned_personnel = $%d", *filter.Assignee)
	}
	if filter.Search != "" {
		args = append(args, filter.Search)
		where = append(where, fmt.Sprintf(
			"(title ILIKE '%%' || $%d || '%%' OR description ILIKE '%%' || $%d || '%%')",
			len(args), len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM civic.issues WHERE " + whereClause
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		if isTimeout(err) {
			return nil, 0, errors.Timeout("count issues")
		}
		return nil, 0, errors.Unavailable(err, "failed to count issues")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitClause := fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	limitClause += fmt.Sprintf(" OFFSET $%d", len(args))

	query := `SELECT` + issueColumns + `
		FROM civic.issues WHERE ` + whereClause + `
		ORDER BY reported_at DESC` + limitClause

	issues, err := r.queryIssues(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return issues, total, nil
}

func (r *PostgresRepository) queryIssues(ctx context.Context, query string, args ...any) ([]domain.Issue, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		if isTimeout(err) {
			return nil, errors.Timeout("query issues")
		}
		return nil, errors.Unavailable(err, "failed to query issues")
	}
	defer rows.Close()

	var issues []domain.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, errors.Unavailable(err, "failed to scan issue")
		}
		issues = append(issues, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Unavailable(err, "failed to read issues")
	}

	return issues, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*domain.Issue, error) {
	i := &domain.Issue{}

	var (
		proofURL, proofType, proofNotes *string
		proofLat, proofLng, proofAcc    *float64
		escReason, escStatus            *string
		escBy                           *types.ID
		escAt                           *time.Time
	)

	err := row.Scan(
		&i.ID, &i.Title, &i.Description, &i.Category, &i.Department, &i.Priority,
		&i.Status, &i.ProofStatus,
		&i.AssignedPersonnel, &i.ReportedBy,
		&i.Location.Address, &i.Location.Zone, &i.Location.Lat, &i.Location.Lng,
		&proofURL, &proofType, &proofNotes,
		&proofLat, &proofLng, &proofAcc,
		&escReason, &escBy, &escAt, &escStatus,
		&i.OriginalPostID, &i.Version,
		&i.ReportedAt, &i.AssignedAt, &i.SubmittedAt, &i.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if proofURL != nil {
		proof := &domain.ProofOfWork{
			MediaURL: *proofURL,
			Notes:    derefString(proofNotes),
		}
		if proofType != nil {
			proof.MediaType = domain.MediaType(*proofType)
		}
		if proofLat != nil && proofLng != nil {
			proof.Geo = &types.GeoVerification{Lat: *proofLat, Lng: *proofLng}
			if proofAcc != nil {
				proof.Geo.AccuracyMeters = *proofAcc
			}
		}
		if i.SubmittedAt != nil {
			proof.Timestamp = *i.SubmittedAt
		}
		i.Proof = proof
	}

	if escReason != nil && escStatus != nil {
		esc := &domain.Escalation{
			Reason: *escReason,
			Status: domain.EscalationStatus(*escStatus),
		}
		if escBy != nil {
			esc.EscalatedBy = *escBy
		}
		if escAt != nil {
			esc.EscalatedAt = *escAt
		}
		i.Escalation = esc
	}

	return i, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isTimeout(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled)
}
