package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carddex/carddex-api/internal/models"
)

const submissionColumns = `id, entity_kind, submitter_id, status, proposed_fields, previous_fields,
       dedupe_key, target_entity_id, parent_entity_id, parent_submission_id, created_entity_id,
       reviewer_id, review_notes, created_at, reviewed_at`

// SubmissionRepository persists contribution records. The duplicate guard is
// a partial unique index on (submitter_id, entity_kind, dedupe_key) filtered
// to status='PENDING'; Create surfaces its violation unchanged so callers can
// classify it with IsUniqueViolation.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// DB exposes the underlying handle for transaction orchestration.
func (r *SubmissionRepository) DB() *sqlx.DB {
	return r.db
}

// Create inserts a new submission row using ext, which may be a transaction.
func (r *SubmissionRepository) Create(ctx context.Context, ext sqlx.ExtContext, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusPending
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions
	(id, entity_kind, submitter_id, status, proposed_fields, previous_fields, dedupe_key,
	 target_entity_id, parent_entity_id, parent_submission_id, created_entity_id,
	 reviewer_id, review_notes, created_at, reviewed_at)
	VALUES (:id, :entity_kind, :submitter_id, :status, :proposed_fields, :previous_fields, :dedupe_key,
	 :target_entity_id, :parent_entity_id, :parent_submission_id, :created_entity_id,
	 :reviewer_id, :review_notes, :created_at, :reviewed_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetByID fetches a submission by identifier.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1`, submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// GetByIDTx fetches a submission inside a transaction.
func (r *SubmissionRepository) GetByIDTx(ctx context.Context, ext sqlx.ExtContext, id string) (*models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE id = $1`, submissionColumns)
	var submission models.Submission
	if err := sqlx.GetContext(ctx, ext, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// List returns submissions matching the filter.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + submissionColumns + ` FROM submissions`)

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		conditions = append(conditions, fmt.Sprintf("entity_kind = $%d", len(args)))
	}
	if filter.SubmitterID != "" {
		args = append(args, filter.SubmitterID)
		conditions = append(conditions, fmt.Sprintf("submitter_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	if filter.OldestFirst {
		builder.WriteString(" ORDER BY created_at ASC")
	} else {
		builder.WriteString(" ORDER BY created_at DESC")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// ListQueue returns pending submissions oldest first, joined with the
// submitter's trust aggregate for reviewer context.
func (r *SubmissionRepository) ListQueue(ctx context.Context, kind models.EntityKind, limit, offset int) ([]models.ReviewQueueItem, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 2)
	builder.WriteString(`SELECT s.id, s.entity_kind, s.submitter_id, s.status, s.proposed_fields, s.previous_fields,
       s.dedupe_key, s.target_entity_id, s.parent_entity_id, s.parent_submission_id, s.created_entity_id,
       s.reviewer_id, s.review_notes, s.created_at, s.reviewed_at,
       COALESCE(cs.trust_points, 0) AS submitter_trust_points,
       COALESCE(cs.trust_level, 'novice') AS submitter_trust_level,
       COALESCE(cs.approval_rate, 0) AS submitter_approval_rate
	FROM submissions s
	LEFT JOIN contributor_stats cs ON cs.user_id = s.submitter_id
	WHERE s.status = 'PENDING'`)
	if kind != "" {
		args = append(args, kind)
		builder.WriteString(fmt.Sprintf(" AND s.entity_kind = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY s.created_at ASC")

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var items []models.ReviewQueueItem
	if err := r.db.SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list review queue: %w", err)
	}
	return items, nil
}

// ReviewUpdateParams groups the columns written by a review decision.
type ReviewUpdateParams struct {
	ID         string
	Status     models.SubmissionStatus
	ReviewerID string
	ReviewedAt time.Time
	Notes      *string
}

// MarkReviewed flips a pending submission to its terminal status. The update
// is conditional on status='PENDING'; zero affected rows means another caller
// reviewed it first and sql.ErrNoRows is returned.
func (r *SubmissionRepository) MarkReviewed(ctx context.Context, ext sqlx.ExtContext, params ReviewUpdateParams) error {
	const query = `UPDATE submissions
	SET status = :status, reviewer_id = :reviewer_id, reviewed_at = :reviewed_at, review_notes = :review_notes
	WHERE id = :id AND status = 'PENDING'`
	result, err := sqlx.NamedExecContext(ctx, ext, query, map[string]interface{}{
		"id":           params.ID,
		"status":       params.Status,
		"reviewer_id":  params.ReviewerID,
		"reviewed_at":  params.ReviewedAt,
		"review_notes": params.Notes,
	})
	if err != nil {
		return fmt.Errorf("mark submission reviewed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check review rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetCreatedEntity records the catalog row produced by an approval.
func (r *SubmissionRepository) SetCreatedEntity(ctx context.Context, ext sqlx.ExtContext, id string, entityID int64) error {
	const query = `UPDATE submissions SET created_entity_id = $1 WHERE id = $2`
	if _, err := ext.ExecContext(ctx, query, entityID, id); err != nil {
		return fmt.Errorf("set created entity: %w", err)
	}
	return nil
}
