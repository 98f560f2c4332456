package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/carddex/carddex-api/internal/models"
	"github.com/carddex/carddex-api/internal/repository"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
)

// SubmissionDraft carries a submission through kind-specific preparation at
// submit time. Prepare validates the fields, fills the dedupe key, and for
// edit kinds captures the previous-fields snapshot.
type SubmissionDraft struct {
	Kind               models.EntityKind
	Fields             json.RawMessage
	TargetEntityID     *int64
	ParentEntityID     *int64
	ParentSubmissionID *string

	DedupeKey      string
	PreviousFields []byte
}

// KindHandler implements the per-kind half of the pipeline: submit-time
// validation and review-time catalog application. Apply runs inside the
// review transaction and returns the created entity id for creation kinds.
type KindHandler interface {
	Prepare(ctx context.Context, draft *SubmissionDraft) error
	Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, parentID *int64) (*int64, error)
}

// KindRegistry dispatches submissions to their kind handler.
type KindRegistry struct {
	handlers map[models.EntityKind]KindHandler
}

// NewKindRegistry wires one handler per supported entity kind.
func NewKindRegistry(catalog *repository.CatalogRepository, subs *repository.SubmissionRepository, snapshotGuard bool) *KindRegistry {
	deps := &kindDeps{catalog: catalog, subs: subs, snapshotGuard: snapshotGuard}
	return &KindRegistry{handlers: map[models.EntityKind]KindHandler{
		models.KindSet:         &setKind{deps},
		models.KindSeries:      &seriesKind{deps},
		models.KindCard:        &cardKind{deps},
		models.KindCardEdit:    &cardEditKind{deps},
		models.KindPlayer:      &playerKind{deps},
		models.KindPlayerEdit:  &playerEditKind{deps},
		models.KindPlayerAlias: &playerAliasKind{deps},
		models.KindPlayerTeam:  &playerTeamKind{deps},
		models.KindTeam:        &teamKind{deps},
		models.KindTeamEdit:    &teamEditKind{deps},
	}}
}

// For returns the handler for a kind, nil when unsupported.
func (r *KindRegistry) For(kind models.EntityKind) KindHandler {
	return r.handlers[kind]
}

type kindDeps struct {
	catalog       *repository.CatalogRepository
	subs          *repository.SubmissionRepository
	snapshotGuard bool
}

func (d *kindDeps) db() sqlx.ExtContext {
	return d.catalog.DB()
}

// decodeStrict unmarshals raw JSON rejecting unknown keys, so typos in field
// names fail at submit time rather than silently dropping a change.
func decodeStrict(raw []byte, dest interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("malformed fields payload: %v", err))
	}
	return nil
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// requireNoParent rejects parent references on kinds that have no parent.
func requireNoParent(draft *SubmissionDraft) error {
	if draft.ParentEntityID != nil || draft.ParentSubmissionID != nil {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s submissions take no parent reference", draft.Kind))
	}
	return nil
}

// checkParentRef enforces that exactly one side of the parent reference is
// set and that it points at something real: an existing catalog entity
// (verified by exists) or a submission of the expected parent kind.
func (d *kindDeps) checkParentRef(ctx context.Context, draft *SubmissionDraft, parentKind models.EntityKind, exists func(ctx context.Context, id int64) error) error {
	if draft.ParentEntityID != nil && draft.ParentSubmissionID != nil {
		return appErrors.Clone(appErrors.ErrValidation, "parent reference must be an entity id or a submission id, not both")
	}
	if draft.ParentEntityID == nil && draft.ParentSubmissionID == nil {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s submissions require a parent reference", draft.Kind))
	}
	if draft.ParentEntityID != nil {
		return exists(ctx, *draft.ParentEntityID)
	}
	parent, err := d.subs.GetByIDTx(ctx, d.db(), *draft.ParentSubmissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "parent submission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent submission")
	}
	if parent.EntityKind != parentKind {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("parent submission must be a %s submission", parentKind))
	}
	if parent.Status == models.SubmissionStatusRejected {
		return appErrors.Clone(appErrors.ErrValidation, "parent submission was rejected")
	}
	return nil
}

// parentRefKey renders the parent reference for dedupe keys.
func parentRefKey(draft *SubmissionDraft) string {
	if draft.ParentEntityID != nil {
		return fmt.Sprintf("e%d", *draft.ParentEntityID)
	}
	if draft.ParentSubmissionID != nil {
		return "s" + *draft.ParentSubmissionID
	}
	return ""
}
