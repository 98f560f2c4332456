package dto

import (
	"encoding/json"

	"github.com/carddex/carddex-api/internal/models"
)

// CreateSubmissionRequest is the payload for proposing a catalog change.
// Fields is a sparse per-kind object; keys absent from it mean "no change".
type CreateSubmissionRequest struct {
	EntityKind         models.EntityKind `json:"entityKind" binding:"required"`
	Fields             json.RawMessage   `json:"fields" binding:"required"`
	TargetEntityID     *int64            `json:"targetEntityId,omitempty"`
	ParentEntityID     *int64            `json:"parentEntityId,omitempty"`
	ParentSubmissionID *string           `json:"parentSubmissionId,omitempty"`
}

// CreateSubmissionResponse reports the stored submission and whether the
// auto-approval gate applied it immediately.
type CreateSubmissionResponse struct {
	Submission   *models.Submission `json:"submission"`
	AutoApproved bool               `json:"autoApproved"`
}

// ReviewRequest carries the reviewer's notes. Notes are required for
// rejections and optional for approvals.
type ReviewRequest struct {
	Notes string `json:"notes"`
}

// ReviewResponse reports the outcome of an approval.
type ReviewResponse struct {
	Submission      *models.Submission `json:"submission"`
	CreatedEntityID *int64             `json:"createdEntityId,omitempty"`
}

// SubmissionQuery mirrors supported listing filters.
type SubmissionQuery struct {
	Kind   models.EntityKind
	Status []models.SubmissionStatus
	Page   int
}
