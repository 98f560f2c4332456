package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carddex/carddex-api/internal/dto"
	"github.com/carddex/carddex-api/internal/models"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
)

func requireEditTarget(draft *SubmissionDraft) (int64, error) {
	if err := requireNoParent(draft); err != nil {
		return 0, err
	}
	if draft.TargetEntityID == nil || *draft.TargetEntityID <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s submissions require a target entity id", draft.Kind))
	}
	return *draft.TargetEntityID, nil
}

func snapshotJSON(entity interface{}) ([]byte, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot entity")
	}
	return raw, nil
}

type cardEditKind struct{ *kindDeps }

func (k *cardEditKind) Prepare(ctx context.Context, draft *SubmissionDraft) error {
	targetID, err := requireEditTarget(draft)
	if err != nil {
		return err
	}
	var patch dto.CardEditPatch
	if err := decodeStrict(draft.Fields, &patch); err != nil {
		return err
	}
	if !patch.Number.Set && !patch.Title.Set && !patch.Rarity.Set && !patch.Variant.Set {
		return appErrors.Clone(appErrors.ErrValidation, "no card fields to change")
	}
	if patch.Number.Null || patch.Title.Null {
		return appErrors.Clone(appErrors.ErrValidation, "number and title cannot be null")
	}
	card, err := k.catalog.GetCard(ctx, k.db(), targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "card not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load card")
	}
	if draft.PreviousFields, err = snapshotJSON(card); err != nil {
		return err
	}
	draft.DedupeKey = fmt.Sprintf("%d", targetID)
	return nil
}

func (k *cardEditKind) Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, _ *int64) (*int64, error) {
	var patch dto.CardEditPatch
	if err := decodeStrict(sub.ProposedFields, &patch); err != nil {
		return nil, err
	}
	if k.snapshotGuard {
		live, err := k.catalog.GetCard(ctx, tx, *sub.TargetEntityID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "card not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load card")
		}
		var prev models.Card
		if err := json.Unmarshal(sub.PreviousFields, &prev); err == nil {
			if (patch.Number.Set && prev.Number != live.Number) ||
				(patch.Title.Set && prev.Title != live.Title) ||
				(patch.Rarity.Set && prev.Rarity != live.Rarity) ||
				(patch.Variant.Set && prev.Variant != live.Variant) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "card changed since the submission was created")
			}
		}
	}
	if err := k.catalog.PatchCard(ctx, tx, *sub.TargetEntityID, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to patch card")
	}
	return nil, nil
}

type playerEditKind struct{ *kindDeps }

func (k *playerEditKind) Prepare(ctx context.Context, draft *SubmissionDraft) error {
	targetID, err := requireEditTarget(draft)
	if err != nil {
		return err
	}
	var patch dto.PlayerEditPatch
	if err := decodeStrict(draft.Fields, &patch); err != nil {
		return err
	}
	if !patch.FullName.Set && !patch.Position.Set && !patch.BirthDate.Set {
		return appErrors.Clone(appErrors.ErrValidation, "no player fields to change")
	}
	if patch.FullName.Null {
		return appErrors.Clone(appErrors.ErrValidation, "fullName cannot be null")
	}
	if patch.BirthDate.Set && !patch.BirthDate.Null {
		if _, err := time.Parse(birthDateLayout, patch.BirthDate.Value); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "birthDate must be YYYY-MM-DD")
		}
	}
	player, err := k.catalog.GetPlayer(ctx, k.db(), targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "player not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load player")
	}
	if draft.PreviousFields, err = snapshotJSON(player); err != nil {
		return err
	}
	draft.DedupeKey = fmt.Sprintf("%d", targetID)
	return nil
}

func (k *playerEditKind) Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, _ *int64) (*int64, error) {
	var patch dto.PlayerEditPatch
	if err := decodeStrict(sub.ProposedFields, &patch); err != nil {
		return nil, err
	}
	if k.snapshotGuard {
		live, err := k.catalog.GetPlayer(ctx, tx, *sub.TargetEntityID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "player not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load player")
		}
		var prev models.Player
		if err := json.Unmarshal(sub.PreviousFields, &prev); err == nil {
			if (patch.FullName.Set && prev.FullName != live.FullName) ||
				(patch.Position.Set && prev.Position != live.Position) ||
				(patch.BirthDate.Set && !birthDatesEqual(prev.BirthDate, live.BirthDate)) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "player changed since the submission was created")
			}
		}
	}
	if err := k.catalog.PatchPlayer(ctx, tx, *sub.TargetEntityID, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "player not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to patch player")
	}
	return nil, nil
}

func birthDatesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

type teamEditKind struct{ *kindDeps }

func (k *teamEditKind) Prepare(ctx context.Context, draft *SubmissionDraft) error {
	targetID, err := requireEditTarget(draft)
	if err != nil {
		return err
	}
	var patch dto.TeamEditPatch
	if err := decodeStrict(draft.Fields, &patch); err != nil {
		return err
	}
	if !patch.Name.Set && !patch.City.Set && !patch.Sport.Set {
		return appErrors.Clone(appErrors.ErrValidation, "no team fields to change")
	}
	if patch.Name.Null || patch.Sport.Null {
		return appErrors.Clone(appErrors.ErrValidation, "name and sport cannot be null")
	}
	team, err := k.catalog.GetTeam(ctx, k.db(), targetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	if draft.PreviousFields, err = snapshotJSON(team); err != nil {
		return err
	}
	draft.DedupeKey = fmt.Sprintf("%d", targetID)
	return nil
}

func (k *teamEditKind) Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, _ *int64) (*int64, error) {
	var patch dto.TeamEditPatch
	if err := decodeStrict(sub.ProposedFields, &patch); err != nil {
		return nil, err
	}
	if k.snapshotGuard {
		live, err := k.catalog.GetTeam(ctx, tx, *sub.TargetEntityID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
		}
		var prev models.Team
		if err := json.Unmarshal(sub.PreviousFields, &prev); err == nil {
			if (patch.Name.Set && prev.Name != live.Name) ||
				(patch.City.Set && prev.City != live.City) ||
				(patch.Sport.Set && prev.Sport != live.Sport) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "team changed since the submission was created")
			}
		}
	}
	if err := k.catalog.PatchTeam(ctx, tx, *sub.TargetEntityID, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to patch team")
	}
	return nil, nil
}
