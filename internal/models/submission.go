package models

import "time"

// EntityKind identifies what catalog object a submission targets.
type EntityKind string

const (
	KindSet         EntityKind = "SET"
	KindSeries      EntityKind = "SERIES"
	KindCard        EntityKind = "CARD"
	KindCardEdit    EntityKind = "CARD_EDIT"
	KindPlayer      EntityKind = "PLAYER"
	KindPlayerEdit  EntityKind = "PLAYER_EDIT"
	KindPlayerAlias EntityKind = "PLAYER_ALIAS"
	KindPlayerTeam  EntityKind = "PLAYER_TEAM"
	KindTeam        EntityKind = "TEAM"
	KindTeamEdit    EntityKind = "TEAM_EDIT"
)

// Valid reports whether the kind is one of the supported variants.
func (k EntityKind) Valid() bool {
	switch k {
	case KindSet, KindSeries, KindCard, KindCardEdit, KindPlayer,
		KindPlayerEdit, KindPlayerAlias, KindPlayerTeam, KindTeam, KindTeamEdit:
		return true
	}
	return false
}

// IsEdit reports whether the kind patches an existing catalog entity.
func (k EntityKind) IsEdit() bool {
	switch k {
	case KindCardEdit, KindPlayerEdit, KindTeamEdit:
		return true
	}
	return false
}

// IsCreation reports whether an approval produces a new catalog row.
func (k EntityKind) IsCreation() bool {
	return k.Valid() && !k.IsEdit()
}

// SubmissionStatus captures the review lifecycle. Transitions are one-way:
// PENDING moves to APPROVED or REJECTED and stays there.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "PENDING"
	SubmissionStatusApproved SubmissionStatus = "APPROVED"
	SubmissionStatusRejected SubmissionStatus = "REJECTED"
)

// Submission is a durable record of a proposed catalog change.
type Submission struct {
	ID                 string           `db:"id" json:"id"`
	EntityKind         EntityKind       `db:"entity_kind" json:"entityKind"`
	SubmitterID        string           `db:"submitter_id" json:"submitterId"`
	Status             SubmissionStatus `db:"status" json:"status"`
	ProposedFields     []byte           `db:"proposed_fields" json:"proposedFields"`
	PreviousFields     []byte           `db:"previous_fields" json:"previousFields,omitempty"`
	DedupeKey          string           `db:"dedupe_key" json:"-"`
	TargetEntityID     *int64           `db:"target_entity_id" json:"targetEntityId,omitempty"`
	ParentEntityID     *int64           `db:"parent_entity_id" json:"parentEntityId,omitempty"`
	ParentSubmissionID *string          `db:"parent_submission_id" json:"parentSubmissionId,omitempty"`
	CreatedEntityID    *int64           `db:"created_entity_id" json:"createdEntityId,omitempty"`
	ReviewerID         *string          `db:"reviewer_id" json:"reviewerId,omitempty"`
	ReviewNotes        *string          `db:"review_notes" json:"reviewNotes,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	ReviewedAt         *time.Time       `db:"reviewed_at" json:"reviewedAt,omitempty"`
}

// SubmissionFilter constrains listing queries.
type SubmissionFilter struct {
	Kind        EntityKind
	Status      []SubmissionStatus
	SubmitterID string
	OldestFirst bool
	Limit       int
	Offset      int
}

// ReviewQueueItem decorates a pending submission with submitter trust info
// so reviewers can weigh the source without a second lookup.
type ReviewQueueItem struct {
	Submission
	SubmitterTrustPoints  int        `db:"submitter_trust_points" json:"submitterTrustPoints"`
	SubmitterTrustLevel   TrustLevel `db:"submitter_trust_level" json:"submitterTrustLevel"`
	SubmitterApprovalRate float64    `db:"submitter_approval_rate" json:"submitterApprovalRate"`
}
