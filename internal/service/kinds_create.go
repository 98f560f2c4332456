package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carddex/carddex-api/internal/dto"
	"github.com/carddex/carddex-api/internal/models"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
)

const birthDateLayout = "2006-01-02"

type setKind struct{ *kindDeps }

func (k *setKind) Prepare(ctx context.Context, draft *SubmissionDraft) error {
	if err := requireNoParent(draft); err != nil {
		return err
	}
	var payload dto.SetPayload
	if err := decodeStrict(draft.Fields, &payload); err != nil {
		return err
	}
	if payload.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "set name is required")
	}
	if payload.Year < 1900 || payload.Year > 2100 {
		return appErrors.Clone(appErrors.ErrValidation, "set year is out of range")
	}
	if payload.Sport == "" {
		return appErrors.Clone(appErrors.ErrValidation, "set sport is required")
	}
	draft.DedupeKey = fmt.Sprintf("%s:%d", normalizeName(payload.Name), payload.Year)
	return nil
}

func (k *setKind) Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, _ *int64) (*int64, error) {
	var payload dto.SetPayload
	if err := decodeStrict(sub.ProposedFields, &payload); err != nil {
		return nil, err
	}
	set := &models.CardSet{Name: payload.Name, Year: payload.Year, Sport: payload.Sport, Brand: payload.Brand}
	id, err := k.catalog.InsertSet(ctx, tx, set)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create set")
	}
	return &id, nil
}

type seriesKind struct{ *kindDeps }

func (k *seriesKind) Prepare(ctx context.Context, draft *SubmissionDraft) error {
	var payload dto.SeriesPayload
	if err := decodeStrict(draft.Fields, &payload); err != nil {
		return err
	}
	if payload.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "series name is required")
	}
	if err := k.checkParentRef(ctx, draft, models.KindSet, func(ctx context.Context, id int64) error {
		if _, err := k.catalog.GetSet(ctx, k.db(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "parent set not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent set")
		}
		return nil
	}); err != nil {
		return err
	}
	draft.DedupeKey = normalizeName(payload.Name)
	return nil
}

func (k *seriesKind) Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, parentID *int64) (*int64, error) {
	if parentID == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "series approval requires a resolved parent set")
	}
	var payload dto.SeriesPayload
	if err := decodeStrict(sub.ProposedFields, &payload); err != nil {
		return nil, err
	}
	series := &models.CardSeries{SetID: *parentID, Name: payload.Name}
	id, err := k.catalog.InsertSeries(ctx, tx, series)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create series")
	}
	return &id, nil
}

type cardKind struct{ *kindDeps }

func (k *cardKind) Prepare(ctx context.Context, draft *SubmissionDraft) error {
	var payload dto.CardPayload
	if err := decodeStrict(draft.Fields, &payload); err != nil {
		return err
	}
	if payload.Number == "" {
		return appErrors.Clone(appErrors.ErrValidation, "card number is required")
	}
	if payload.Title == "" {
		return appErrors.Clone(appErrors.ErrValidation, "card title is required")
	}
	if err := k.checkParentRef(ctx, draft, models.KindSeries, func(ctx context.Context, id int64) error {
		if _, err := k.catalog.GetSeries(ctx, k.db(), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "parent series not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent series")
		}
		return nil
	}); err != nil {
		return err
	}
	draft.DedupeKey = fmt.Sprintf("%s:%s", normalizeName(payload.Title), normalizeName(payload.Number))
	return nil
}

func (k *cardKind) Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, parentID *int64) (*int64, error) {
	if parentID == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "card approval requires a resolved parent series")
	}
	var payload dto.CardPayload
	if err := decodeStrict(sub.ProposedFields, &payload); err != nil {
		return nil, err
	}
	card := &models.Card{SeriesID: *parentID, Number: payload.Number, Title: payload.Title, Rarity: payload.Rarity, Variant: payload.Variant}
	id, err := k.catalog.InsertCard(ctx, tx, card)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create card")
	}
	return &id, nil
}

type playerKind struct{ *kindDeps }

func (k *playerKind) Prepare(ctx context.Context, draft *SubmissionDraft) error {
	if err := requireNoParent(draft); err != nil {
		return err
	}
	var payload dto.PlayerPayload
	if err := decodeStrict(draft.Fields, &payload); err != nil {
		return err
	}
	if payload.FullName == "" {
		return appErrors.Clone(appErrors.ErrValidation, "player full name is required")
	}
	if payload.BirthDate != "" {
		if _, err := time.Parse(birthDateLayout, payload.BirthDate); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "birthDate must be YYYY-MM-DD")
		}
	}
	draft.DedupeKey = normalizeName(payload.FullName)
	return nil
}

func (k *playerKind) Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, _ *int64) (*int64, error) {
	var payload dto.PlayerPayload
	if err := decodeStrict(sub.ProposedFields, &payload); err != nil {
		return nil, err
	}
	player := &models.Player{FullName: payload.FullName, Position: payload.Position}
	if payload.BirthDate != "" {
		ts, err := time.Parse(birthDateLayout, payload.BirthDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "birthDate must be YYYY-MM-DD")
		}
		player.BirthDate = &ts
	}
	id, err := k.catalog.InsertPlayer(ctx, tx, player)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create player")
	}
	return &id, nil
}

type teamKind struct{ *kindDeps }

func (k *teamKind) Prepare(ctx context.Context, draft *SubmissionDraft) error {
	if err := requireNoParent(draft); err != nil {
		return err
	}
	var payload dto.TeamPayload
	if err := decodeStrict(draft.Fields, &payload); err != nil {
		return err
	}
	if payload.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "team name is required")
	}
	if payload.Sport == "" {
		return appErrors.Clone(appErrors.ErrValidation, "team sport is required")
	}
	draft.DedupeKey = normalizeName(payload.Name)
	return nil
}

func (k *teamKind) Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, _ *int64) (*int64, error) {
	var payload dto.TeamPayload
	if err := decodeStrict(sub.ProposedFields, &payload); err != nil {
		return nil, err
	}
	team := &models.Team{Name: payload.Name, City: payload.City, Sport: payload.Sport}
	id, err := k.catalog.InsertTeam(ctx, tx, team)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create team")
	}
	return &id, nil
}

type playerAliasKind struct{ *kindDeps }

func (k *playerAliasKind) Prepare(ctx context.Context, draft *SubmissionDraft) error {
	var payload dto.PlayerAliasPayload
	if err := decodeStrict(draft.Fields, &payload); err != nil {
		return err
	}
	if payload.Alias == "" {
		return appErrors.Clone(appErrors.ErrValidation, "alias is required")
	}
	if err := k.checkParentRef(ctx, draft, models.KindPlayer, k.playerExists); err != nil {
		return err
	}
	draft.DedupeKey = normalizeName(payload.Alias)
	return nil
}

func (k *playerAliasKind) Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, parentID *int64) (*int64, error) {
	if parentID == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "alias approval requires a resolved player")
	}
	var payload dto.PlayerAliasPayload
	if err := decodeStrict(sub.ProposedFields, &payload); err != nil {
		return nil, err
	}
	alias := &models.PlayerAlias{PlayerID: *parentID, Alias: payload.Alias}
	id, err := k.catalog.InsertPlayerAlias(ctx, tx, alias)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create alias")
	}
	return &id, nil
}

type playerTeamKind struct{ *kindDeps }

func (k *playerTeamKind) Prepare(ctx context.Context, draft *SubmissionDraft) error {
	var payload dto.PlayerTeamPayload
	if err := decodeStrict(draft.Fields, &payload); err != nil {
		return err
	}
	if payload.TeamID <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "teamId is required")
	}
	if payload.Action != models.PlayerTeamAdd && payload.Action != models.PlayerTeamRemove {
		return appErrors.Clone(appErrors.ErrValidation, "action must be ADD or REMOVE")
	}
	if _, err := k.catalog.GetTeam(ctx, k.db(), payload.TeamID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load team")
	}
	if err := k.checkParentRef(ctx, draft, models.KindPlayer, k.playerExists); err != nil {
		return err
	}
	// ADD and REMOVE for the same pair are distinct logical targets.
	draft.DedupeKey = fmt.Sprintf("%s:%d:%s", parentRefKey(draft), payload.TeamID, payload.Action)
	return nil
}

func (k *playerTeamKind) Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, parentID *int64) (*int64, error) {
	if parentID == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "player-team approval requires a resolved player")
	}
	var payload dto.PlayerTeamPayload
	if err := decodeStrict(sub.ProposedFields, &payload); err != nil {
		return nil, err
	}
	switch payload.Action {
	case models.PlayerTeamAdd:
		exists, err := k.catalog.PlayerTeamExists(ctx, tx, *parentID, payload.TeamID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check player-team link")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "player is already linked to this team")
		}
		link := &models.PlayerTeam{PlayerID: *parentID, TeamID: payload.TeamID}
		id, err := k.catalog.InsertPlayerTeam(ctx, tx, link)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link player to team")
		}
		return &id, nil
	case models.PlayerTeamRemove:
		if err := k.catalog.DeletePlayerTeam(ctx, tx, *parentID, payload.TeamID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "player-team link not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink player from team")
		}
		// A removal produces no catalog row.
		return nil, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be ADD or REMOVE")
	}
}

func (d *kindDeps) playerExists(ctx context.Context, id int64) error {
	if _, err := d.catalog.GetPlayer(ctx, d.db(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "player not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load player")
	}
	return nil
}
