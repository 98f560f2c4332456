package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/carddex/carddex-api/internal/models"
	"github.com/carddex/carddex-api/internal/repository"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
)

func newKindDeps(t *testing.T, snapshotGuard bool) (*kindDeps, sqlmock.Sqlmock, func()) {
	db, mock, cleanup := newServiceDB(t)
	deps := &kindDeps{
		catalog:       repository.NewCatalogRepository(db),
		subs:          repository.NewSubmissionRepository(db),
		snapshotGuard: snapshotGuard,
	}
	return deps, mock, cleanup
}

func requireValidationError(t *testing.T, err error) {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSetKindPrepareDedupeKey(t *testing.T) {
	deps, _, cleanup := newKindDeps(t, true)
	defer cleanup()
	kind := &setKind{deps}

	draft := &SubmissionDraft{
		Kind:   models.KindSet,
		Fields: []byte(`{"name":"  Topps   CHROME ","year":2023,"sport":"baseball"}`),
	}
	require.NoError(t, kind.Prepare(context.Background(), draft))
	require.Equal(t, "topps chrome:2023", draft.DedupeKey)
}

func TestSetKindPrepareValidation(t *testing.T) {
	deps, _, cleanup := newKindDeps(t, true)
	defer cleanup()
	kind := &setKind{deps}

	cases := map[string]string{
		"missing name":  `{"year":2023,"sport":"baseball"}`,
		"year too low":  `{"name":"Topps","year":1898,"sport":"baseball"}`,
		"unknown field": `{"name":"Topps","year":2023,"sport":"baseball","publisher":"x"}`,
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			err := kind.Prepare(context.Background(), &SubmissionDraft{Kind: models.KindSet, Fields: []byte(fields)})
			requireValidationError(t, err)
		})
	}

	parentID := int64(1)
	err := kind.Prepare(context.Background(), &SubmissionDraft{
		Kind:           models.KindSet,
		Fields:         []byte(`{"name":"Topps","year":2023,"sport":"baseball"}`),
		ParentEntityID: &parentID,
	})
	requireValidationError(t, err)
}

func TestPlayerKindPrepareBirthDate(t *testing.T) {
	deps, _, cleanup := newKindDeps(t, true)
	defer cleanup()
	kind := &playerKind{deps}

	draft := &SubmissionDraft{
		Kind:   models.KindPlayer,
		Fields: []byte(`{"fullName":"Mike  Trout","birthDate":"1991-08-07"}`),
	}
	require.NoError(t, kind.Prepare(context.Background(), draft))
	require.Equal(t, "mike trout", draft.DedupeKey)

	err := kind.Prepare(context.Background(), &SubmissionDraft{
		Kind:   models.KindPlayer,
		Fields: []byte(`{"fullName":"Mike Trout","birthDate":"07/08/1991"}`),
	})
	requireValidationError(t, err)
}

func TestSeriesKindPrepareParentRef(t *testing.T) {
	deps, mock, cleanup := newKindDeps(t, true)
	defer cleanup()
	kind := &seriesKind{deps}

	// Both sides of the parent reference is a client error.
	parentID := int64(3)
	parentSub := "sub-parent"
	err := kind.Prepare(context.Background(), &SubmissionDraft{
		Kind:               models.KindSeries,
		Fields:             []byte(`{"name":"Refractors"}`),
		ParentEntityID:     &parentID,
		ParentSubmissionID: &parentSub,
	})
	requireValidationError(t, err)

	// No parent at all is equally invalid.
	err = kind.Prepare(context.Background(), &SubmissionDraft{
		Kind:   models.KindSeries,
		Fields: []byte(`{"name":"Refractors"}`),
	})
	requireValidationError(t, err)

	// A pending parent submission of the right kind is accepted.
	rows := sqlmock.NewRows([]string{
		"id", "entity_kind", "submitter_id", "status", "proposed_fields", "previous_fields",
		"dedupe_key", "target_entity_id", "parent_entity_id", "parent_submission_id", "created_entity_id",
		"reviewer_id", "review_notes", "created_at", "reviewed_at",
	}).AddRow("sub-parent", "SET", "user-1", "PENDING", `{}`, nil, "topps:2023", nil, nil, nil, nil, nil, nil, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, entity_kind, submitter_id")).
		WithArgs("sub-parent").
		WillReturnRows(rows)

	draft := &SubmissionDraft{
		Kind:               models.KindSeries,
		Fields:             []byte(`{"name":"Refractors"}`),
		ParentSubmissionID: &parentSub,
	}
	require.NoError(t, kind.Prepare(context.Background(), draft))
	require.Equal(t, "refractors", draft.DedupeKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeriesKindPrepareRejectedParent(t *testing.T) {
	deps, mock, cleanup := newKindDeps(t, true)
	defer cleanup()
	kind := &seriesKind{deps}

	parentSub := "sub-parent"
	rows := sqlmock.NewRows([]string{
		"id", "entity_kind", "submitter_id", "status", "proposed_fields", "previous_fields",
		"dedupe_key", "target_entity_id", "parent_entity_id", "parent_submission_id", "created_entity_id",
		"reviewer_id", "review_notes", "created_at", "reviewed_at",
	}).AddRow("sub-parent", "SET", "user-1", "REJECTED", `{}`, nil, "topps:2023", nil, nil, nil, nil, nil, nil, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, entity_kind, submitter_id")).
		WithArgs("sub-parent").
		WillReturnRows(rows)

	err := kind.Prepare(context.Background(), &SubmissionDraft{
		Kind:               models.KindSeries,
		Fields:             []byte(`{"name":"Refractors"}`),
		ParentSubmissionID: &parentSub,
	})
	requireValidationError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCardEditKindPrepareSnapshots(t *testing.T) {
	deps, mock, cleanup := newKindDeps(t, true)
	defer cleanup()
	kind := &cardEditKind{deps}

	targetID := int64(42)
	rows := sqlmock.NewRows([]string{"id", "series_id", "number", "title", "rarity", "variant", "slug", "created_at"}).
		AddRow(42, 7, "101", "Mike Trout", "base", "", "mike-trout-101", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM cards")).
		WithArgs(targetID).
		WillReturnRows(rows)

	draft := &SubmissionDraft{
		Kind:           models.KindCardEdit,
		Fields:         []byte(`{"rarity":"refractor"}`),
		TargetEntityID: &targetID,
	}
	require.NoError(t, kind.Prepare(context.Background(), draft))
	require.Equal(t, "42", draft.DedupeKey)
	require.NotEmpty(t, draft.PreviousFields)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCardEditKindPrepareValidation(t *testing.T) {
	deps, _, cleanup := newKindDeps(t, true)
	defer cleanup()
	kind := &cardEditKind{deps}
	targetID := int64(42)

	// No target.
	err := kind.Prepare(context.Background(), &SubmissionDraft{
		Kind:   models.KindCardEdit,
		Fields: []byte(`{"rarity":"refractor"}`),
	})
	requireValidationError(t, err)

	// Empty patch.
	err = kind.Prepare(context.Background(), &SubmissionDraft{
		Kind:           models.KindCardEdit,
		Fields:         []byte(`{}`),
		TargetEntityID: &targetID,
	})
	requireValidationError(t, err)

	// Nulling a required column.
	err = kind.Prepare(context.Background(), &SubmissionDraft{
		Kind:           models.KindCardEdit,
		Fields:         []byte(`{"title":null}`),
		TargetEntityID: &targetID,
	})
	requireValidationError(t, err)
}

func TestPlayerTeamKindDedupeKeySeparatesActions(t *testing.T) {
	deps, mock, cleanup := newKindDeps(t, true)
	defer cleanup()
	kind := &playerTeamKind{deps}
	playerID := int64(5)

	teamRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name", "city", "sport", "slug", "created_at"}).
			AddRow(9, "Angels", "Anaheim", "baseball", "anaheim-angels", time.Now())
	}
	playerRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "full_name", "position", "birth_date", "slug", "created_at"}).
			AddRow(5, "Mike Trout", "CF", nil, "mike-trout", time.Now())
	}

	mock.ExpectQuery(regexp.QuoteMeta("FROM teams")).WithArgs(int64(9)).WillReturnRows(teamRows())
	mock.ExpectQuery(regexp.QuoteMeta("FROM players")).WithArgs(playerID).WillReturnRows(playerRows())

	addDraft := &SubmissionDraft{
		Kind:           models.KindPlayerTeam,
		Fields:         []byte(`{"teamId":9,"action":"ADD"}`),
		ParentEntityID: &playerID,
	}
	require.NoError(t, kind.Prepare(context.Background(), addDraft))
	require.Equal(t, "e5:9:ADD", addDraft.DedupeKey)

	mock.ExpectQuery(regexp.QuoteMeta("FROM teams")).WithArgs(int64(9)).WillReturnRows(teamRows())
	mock.ExpectQuery(regexp.QuoteMeta("FROM players")).WithArgs(playerID).WillReturnRows(playerRows())

	removeDraft := &SubmissionDraft{
		Kind:           models.KindPlayerTeam,
		Fields:         []byte(`{"teamId":9,"action":"REMOVE"}`),
		ParentEntityID: &playerID,
	}
	require.NoError(t, kind.Prepare(context.Background(), removeDraft))
	require.Equal(t, "e5:9:REMOVE", removeDraft.DedupeKey)
	require.NotEqual(t, addDraft.DedupeKey, removeDraft.DedupeKey)
	require.NoError(t, mock.ExpectationsWereMet())
}
