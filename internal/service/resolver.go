package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/carddex/carddex-api/internal/models"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
)

type resolverStore interface {
	GetByIDTx(ctx context.Context, ext sqlx.ExtContext, id string) (*models.Submission, error)
}

// DependencyResolver maps a pending-submission parent reference onto the
// concrete entity id that parent produced when it was approved. Resolution is
// single-hop: each level of a dependency chain persists its created entity id
// at its own approval, so a chain flattens into independent lookups.
type DependencyResolver struct {
	subs resolverStore
}

// NewDependencyResolver constructs the resolver.
func NewDependencyResolver(subs resolverStore) *DependencyResolver {
	return &DependencyResolver{subs: subs}
}

// Resolve returns the entity id created by the parent submission's approval.
func (r *DependencyResolver) Resolve(ctx context.Context, ext sqlx.ExtContext, parentSubmissionID string) (*int64, error) {
	parent, err := r.subs.GetByIDTx(ctx, ext, parentSubmissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "parent submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent submission")
	}
	if parent.Status != models.SubmissionStatusApproved {
		return nil, appErrors.ErrParentNotReady
	}
	if parent.CreatedEntityID == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "approved parent submission has no created entity")
	}
	return parent.CreatedEntityID, nil
}
