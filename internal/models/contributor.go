package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TrustLevel is the tier derived from accumulated trust points.
type TrustLevel string

const (
	TrustNovice      TrustLevel = "novice"
	TrustContributor TrustLevel = "contributor"
	TrustTrusted     TrustLevel = "trusted"
	TrustExpert      TrustLevel = "expert"
	TrustMaster      TrustLevel = "master"
)

// Trust point deltas applied on review outcomes.
const (
	TrustPointsApproved = 5
	TrustPointsRejected = -2
)

// TrustLevelFor maps trust points onto the fixed tier thresholds.
func TrustLevelFor(points int) TrustLevel {
	switch {
	case points < 50:
		return TrustNovice
	case points < 150:
		return TrustContributor
	case points < 300:
		return TrustTrusted
	case points < 500:
		return TrustExpert
	default:
		return TrustMaster
	}
}

// KindCounts keeps per-entity-kind submission counters as a JSONB column.
type KindCounts map[EntityKind]int

// Value implements driver.Valuer.
func (k KindCounts) Value() (driver.Value, error) {
	if k == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(k)
}

// Scan implements sql.Scanner.
func (k *KindCounts) Scan(src interface{}) error {
	if src == nil {
		*k = KindCounts{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported kind counts type %T", src)
	}
	if len(raw) == 0 {
		*k = KindCounts{}
		return nil
	}
	return json.Unmarshal(raw, k)
}

// ContributorStats is the per-user trust aggregate, created lazily on the
// first submission and never deleted.
type ContributorStats struct {
	UserID              string     `db:"user_id" json:"userId"`
	TotalSubmissions    int        `db:"total_submissions" json:"totalSubmissions"`
	PendingSubmissions  int        `db:"pending_submissions" json:"pendingSubmissions"`
	ApprovedSubmissions int        `db:"approved_submissions" json:"approvedSubmissions"`
	RejectedSubmissions int        `db:"rejected_submissions" json:"rejectedSubmissions"`
	KindCounts          KindCounts `db:"kind_counts" json:"kindCounts"`
	TrustPoints         int        `db:"trust_points" json:"trustPoints"`
	TrustLevel          TrustLevel `db:"trust_level" json:"trustLevel"`
	ApprovalRate        float64    `db:"approval_rate" json:"approvalRate"`
	FirstSubmissionAt   *time.Time `db:"first_submission_at" json:"firstSubmissionAt,omitempty"`
	LastSubmissionAt    *time.Time `db:"last_submission_at" json:"lastSubmissionAt,omitempty"`
}

// ZeroContributorStats returns the default aggregate for users who have
// never submitted anything.
func ZeroContributorStats(userID string) *ContributorStats {
	return &ContributorStats{
		UserID:     userID,
		KindCounts: KindCounts{},
		TrustLevel: TrustNovice,
	}
}
