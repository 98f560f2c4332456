package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carddex/carddex-api/internal/models"
)

const contributorColumns = `user_id, total_submissions, pending_submissions, approved_submissions,
       rejected_submissions, kind_counts, trust_points, trust_level, approval_rate,
       first_submission_at, last_submission_at`

// ContributorRepository persists per-user trust aggregates.
type ContributorRepository struct {
	db *sqlx.DB
}

// NewContributorRepository constructs the repository.
func NewContributorRepository(db *sqlx.DB) *ContributorRepository {
	return &ContributorRepository{db: db}
}

// Ensure creates a zero-value stats row when none exists yet.
func (r *ContributorRepository) Ensure(ctx context.Context, ext sqlx.ExtContext, userID string) error {
	const query = `INSERT INTO contributor_stats
	(user_id, total_submissions, pending_submissions, approved_submissions, rejected_submissions,
	 kind_counts, trust_points, trust_level, approval_rate)
	VALUES ($1, 0, 0, 0, 0, '{}', 0, 'novice', 0)
	ON CONFLICT (user_id) DO NOTHING`
	if _, err := ext.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("ensure contributor stats: %w", err)
	}
	return nil
}

// Get fetches the aggregate for a user, sql.ErrNoRows when absent.
func (r *ContributorRepository) Get(ctx context.Context, userID string) (*models.ContributorStats, error) {
	query := fmt.Sprintf(`SELECT %s FROM contributor_stats WHERE user_id = $1`, contributorColumns)
	var stats models.ContributorStats
	if err := r.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *ContributorRepository) lockForUpdate(ctx context.Context, tx *sqlx.Tx, userID string) (*models.ContributorStats, error) {
	query := fmt.Sprintf(`SELECT %s FROM contributor_stats WHERE user_id = $1 FOR UPDATE`, contributorColumns)
	var stats models.ContributorStats
	if err := tx.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, fmt.Errorf("lock contributor stats: %w", err)
	}
	return &stats, nil
}

func (r *ContributorRepository) write(ctx context.Context, tx *sqlx.Tx, stats *models.ContributorStats) error {
	const query = `UPDATE contributor_stats
	SET total_submissions = :total_submissions,
	    pending_submissions = :pending_submissions,
	    approved_submissions = :approved_submissions,
	    rejected_submissions = :rejected_submissions,
	    kind_counts = :kind_counts,
	    trust_points = :trust_points,
	    trust_level = :trust_level,
	    approval_rate = :approval_rate,
	    first_submission_at = :first_submission_at,
	    last_submission_at = :last_submission_at
	WHERE user_id = :user_id`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, stats); err != nil {
		return fmt.Errorf("update contributor stats: %w", err)
	}
	return nil
}

// RecordSubmit bumps the submit-side counters. The row must already exist
// (Ensure runs earlier in the same transaction).
func (r *ContributorRepository) RecordSubmit(ctx context.Context, tx *sqlx.Tx, userID string, kind models.EntityKind) (*models.ContributorStats, error) {
	stats, err := r.lockForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	stats.TotalSubmissions++
	stats.PendingSubmissions++
	if stats.KindCounts == nil {
		stats.KindCounts = models.KindCounts{}
	}
	stats.KindCounts[kind]++
	if stats.FirstSubmissionAt == nil {
		stats.FirstSubmissionAt = &now
	}
	stats.LastSubmissionAt = &now
	if err := r.write(ctx, tx, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// RecordReview applies a review outcome to the aggregate: pending drops,
// the decision counter rises, trust points move +5/-2 floored at zero, and
// the approval rate and level are recomputed.
func (r *ContributorRepository) RecordReview(ctx context.Context, tx *sqlx.Tx, userID string, approved bool) (*models.ContributorStats, error) {
	stats, err := r.lockForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if stats.PendingSubmissions > 0 {
		stats.PendingSubmissions--
	}
	if approved {
		stats.ApprovedSubmissions++
		stats.TrustPoints += models.TrustPointsApproved
	} else {
		stats.RejectedSubmissions++
		stats.TrustPoints += models.TrustPointsRejected
	}
	if stats.TrustPoints < 0 {
		stats.TrustPoints = 0
	}
	reviewed := stats.ApprovedSubmissions + stats.RejectedSubmissions
	if reviewed > 0 {
		stats.ApprovalRate = float64(stats.ApprovedSubmissions) / float64(reviewed) * 100
	}
	stats.TrustLevel = models.TrustLevelFor(stats.TrustPoints)
	if err := r.write(ctx, tx, stats); err != nil {
		return nil, err
	}
	return stats, nil
}
