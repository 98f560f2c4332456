package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/carddex/carddex-api/internal/dto"
	"github.com/carddex/carddex-api/internal/models"
	"github.com/carddex/carddex-api/internal/repository"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
)

func newServiceDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

type submissionStoreStub struct {
	submissions map[string]*models.Submission
	createErr   error
	queueFilter models.EntityKind
}

func newSubmissionStoreStub() *submissionStoreStub {
	return &submissionStoreStub{submissions: make(map[string]*models.Submission)}
}

func (s *submissionStoreStub) Create(ctx context.Context, ext sqlx.ExtContext, submission *models.Submission) error {
	if s.createErr != nil {
		return s.createErr
	}
	if submission.ID == "" {
		submission.ID = "sub-" + submission.DedupeKey
	}
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusPending
	}
	copy := *submission
	s.submissions[submission.ID] = &copy
	return nil
}

func (s *submissionStoreStub) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	if sub, ok := s.submissions[id]; ok {
		copy := *sub
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *submissionStoreStub) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	result := make([]models.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		if filter.SubmitterID != "" && sub.SubmitterID != filter.SubmitterID {
			continue
		}
		result = append(result, *sub)
	}
	return result, nil
}

func (s *submissionStoreStub) ListQueue(ctx context.Context, kind models.EntityKind, limit, offset int) ([]models.ReviewQueueItem, error) {
	s.queueFilter = kind
	items := make([]models.ReviewQueueItem, 0, len(s.submissions))
	for _, sub := range s.submissions {
		if sub.Status != models.SubmissionStatusPending {
			continue
		}
		items = append(items, models.ReviewQueueItem{Submission: *sub})
	}
	return items, nil
}

func (s *submissionStoreStub) MarkReviewed(ctx context.Context, ext sqlx.ExtContext, params repository.ReviewUpdateParams) error {
	sub, ok := s.submissions[params.ID]
	if !ok || sub.Status != models.SubmissionStatusPending {
		return sql.ErrNoRows
	}
	sub.Status = params.Status
	sub.ReviewerID = &params.ReviewerID
	sub.ReviewedAt = &params.ReviewedAt
	sub.ReviewNotes = params.Notes
	return nil
}

func (s *submissionStoreStub) SetCreatedEntity(ctx context.Context, ext sqlx.ExtContext, id string, entityID int64) error {
	sub, ok := s.submissions[id]
	if !ok {
		return sql.ErrNoRows
	}
	sub.CreatedEntityID = &entityID
	return nil
}

type trustLedgerStub struct {
	ensured []string
	submits []string
	reviews []bool
}

func (l *trustLedgerStub) Ensure(ctx context.Context, ext sqlx.ExtContext, userID string) error {
	l.ensured = append(l.ensured, userID)
	return nil
}

func (l *trustLedgerStub) RecordSubmit(ctx context.Context, tx *sqlx.Tx, userID string, kind models.EntityKind) (*models.ContributorStats, error) {
	l.submits = append(l.submits, userID)
	return models.ZeroContributorStats(userID), nil
}

func (l *trustLedgerStub) RecordReview(ctx context.Context, tx *sqlx.Tx, userID string, approved bool) (*models.ContributorStats, error) {
	l.reviews = append(l.reviews, approved)
	return models.ZeroContributorStats(userID), nil
}

type kindHandlerStub struct {
	prepare func(draft *SubmissionDraft) error
	apply   func(sub *models.Submission, parentID *int64) (*int64, error)
}

func (h *kindHandlerStub) Prepare(ctx context.Context, draft *SubmissionDraft) error {
	if h.prepare != nil {
		return h.prepare(draft)
	}
	return nil
}

func (h *kindHandlerStub) Apply(ctx context.Context, tx *sqlx.Tx, sub *models.Submission, parentID *int64) (*int64, error) {
	if h.apply != nil {
		return h.apply(sub, parentID)
	}
	id := int64(1)
	return &id, nil
}

type kindsStub struct {
	handler KindHandler
}

func (k *kindsStub) For(kind models.EntityKind) KindHandler {
	return k.handler
}

type resolverStub struct {
	id  *int64
	err error
}

func (r *resolverStub) Resolve(ctx context.Context, ext sqlx.ExtContext, parentSubmissionID string) (*int64, error) {
	return r.id, r.err
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type invalidatorStub struct {
	users []string
}

func (i *invalidatorStub) Invalidate(ctx context.Context, userID string) {
	i.users = append(i.users, userID)
}

func memberClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "member-1", Role: models.RoleMember}
}

func moderatorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "mod-1", Role: models.RoleModerator}
}

func TestSubmissionServiceSubmitMemberStaysPending(t *testing.T) {
	db, mock, cleanup := newServiceDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	store := newSubmissionStoreStub()
	ledger := &trustLedgerStub{}
	audit := &auditStub{}
	handler := &kindHandlerStub{prepare: func(draft *SubmissionDraft) error {
		draft.DedupeKey = "topps chrome:2023"
		return nil
	}}
	svc := NewSubmissionService(db, store, ledger, &kindsStub{handler: handler}, &resolverStub{}, audit, &invalidatorStub{}, NewApprovalPolicy(nil), nil, nil, 25)

	result, err := svc.Submit(context.Background(), dto.CreateSubmissionRequest{
		EntityKind: models.KindSet,
		Fields:     []byte(`{"name":"Topps Chrome","year":2023,"sport":"baseball"}`),
	}, memberClaims())
	require.NoError(t, err)
	require.False(t, result.AutoApproved)
	require.Equal(t, models.SubmissionStatusPending, result.Submission.Status)
	require.Equal(t, []string{"member-1"}, ledger.ensured)
	require.Equal(t, []string{"member-1"}, ledger.submits)
	require.Empty(t, ledger.reviews)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionSubmissionCreate, audit.logs[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionServiceSubmitDuplicateDenied(t *testing.T) {
	db, mock, cleanup := newServiceDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	store := newSubmissionStoreStub()
	store.createErr = &pq.Error{Code: "23505"}
	svc := NewSubmissionService(db, store, &trustLedgerStub{}, &kindsStub{handler: &kindHandlerStub{}}, &resolverStub{}, nil, nil, NewApprovalPolicy(nil), nil, nil, 25)

	_, err := svc.Submit(context.Background(), dto.CreateSubmissionRequest{
		EntityKind: models.KindSet,
		Fields:     []byte(`{"name":"Topps Chrome","year":2023,"sport":"baseball"}`),
	}, memberClaims())
	require.ErrorIs(t, err, appErrors.ErrDuplicateSubmission)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionServiceSubmitModeratorAutoApproves(t *testing.T) {
	db, mock, cleanup := newServiceDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	store := newSubmissionStoreStub()
	ledger := &trustLedgerStub{}
	audit := &auditStub{}
	invalidator := &invalidatorStub{}
	created := int64(99)
	handler := &kindHandlerStub{apply: func(sub *models.Submission, parentID *int64) (*int64, error) {
		return &created, nil
	}}
	svc := NewSubmissionService(db, store, ledger, &kindsStub{handler: handler}, &resolverStub{}, audit, invalidator, NewApprovalPolicy(nil), nil, nil, 25)

	result, err := svc.Submit(context.Background(), dto.CreateSubmissionRequest{
		EntityKind: models.KindTeam,
		Fields:     []byte(`{"name":"Angels","sport":"baseball"}`),
	}, moderatorClaims())
	require.NoError(t, err)
	require.True(t, result.AutoApproved)
	require.Equal(t, models.SubmissionStatusApproved, result.Submission.Status)
	require.NotNil(t, result.Submission.CreatedEntityID)
	require.Equal(t, created, *result.Submission.CreatedEntityID)
	require.Equal(t, []bool{true}, ledger.reviews)
	require.Equal(t, []string{"mod-1"}, invalidator.users)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionSubmissionAutoApprove, audit.logs[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionServiceSubmitAutoApproveWaitsOnPendingParent(t *testing.T) {
	db, mock, cleanup := newServiceDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	store := newSubmissionStoreStub()
	ledger := &trustLedgerStub{}
	parentSub := "parent-sub"
	svc := NewSubmissionService(db, store, ledger, &kindsStub{handler: &kindHandlerStub{}},
		&resolverStub{err: appErrors.ErrParentNotReady}, nil, nil, NewApprovalPolicy(nil), nil, nil, 25)

	result, err := svc.Submit(context.Background(), dto.CreateSubmissionRequest{
		EntityKind:         models.KindSeries,
		Fields:             []byte(`{"name":"Refractors"}`),
		ParentSubmissionID: &parentSub,
	}, moderatorClaims())
	require.NoError(t, err)
	require.False(t, result.AutoApproved)
	require.Equal(t, models.SubmissionStatusPending, result.Submission.Status)
	require.Empty(t, ledger.reviews)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionServiceGetEnforcesOwnership(t *testing.T) {
	db, _, cleanup := newServiceDB(t)
	defer cleanup()

	store := newSubmissionStoreStub()
	store.submissions["sub-1"] = &models.Submission{
		ID:          "sub-1",
		SubmitterID: "someone-else",
		Status:      models.SubmissionStatusPending,
	}
	svc := NewSubmissionService(db, store, &trustLedgerStub{}, &kindsStub{handler: &kindHandlerStub{}}, &resolverStub{}, nil, nil, NewApprovalPolicy(nil), nil, nil, 25)

	_, err := svc.Get(context.Background(), "sub-1", memberClaims())
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	// Reviewers can read anything.
	found, err := svc.Get(context.Background(), "sub-1", moderatorClaims())
	require.NoError(t, err)
	require.Equal(t, "sub-1", found.ID)
}

func TestSubmissionServiceListScopesMembers(t *testing.T) {
	db, _, cleanup := newServiceDB(t)
	defer cleanup()

	store := newSubmissionStoreStub()
	store.submissions["sub-1"] = &models.Submission{ID: "sub-1", SubmitterID: "member-1"}
	store.submissions["sub-2"] = &models.Submission{ID: "sub-2", SubmitterID: "someone-else"}
	svc := NewSubmissionService(db, store, &trustLedgerStub{}, &kindsStub{handler: &kindHandlerStub{}}, &resolverStub{}, nil, nil, NewApprovalPolicy(nil), nil, nil, 25)

	list, err := svc.List(context.Background(), dto.SubmissionQuery{}, memberClaims())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "sub-1", list[0].ID)
}

func TestSubmissionServiceQueueRequiresReviewer(t *testing.T) {
	db, _, cleanup := newServiceDB(t)
	defer cleanup()

	store := newSubmissionStoreStub()
	store.submissions["sub-1"] = &models.Submission{
		ID:          "sub-1",
		SubmitterID: "member-1",
		Status:      models.SubmissionStatusPending,
		CreatedAt:   time.Now(),
	}
	svc := NewSubmissionService(db, store, &trustLedgerStub{}, &kindsStub{handler: &kindHandlerStub{}}, &resolverStub{}, nil, nil, NewApprovalPolicy(nil), nil, nil, 25)

	_, err := svc.Queue(context.Background(), "", 1, memberClaims())
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	items, err := svc.Queue(context.Background(), "", 1, moderatorClaims())
	require.NoError(t, err)
	require.Len(t, items, 1)
}
