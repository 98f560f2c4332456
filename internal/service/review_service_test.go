package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carddex/carddex-api/internal/dto"
	"github.com/carddex/carddex-api/internal/models"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
)

func pendingSubmission(id, submitter string, kind models.EntityKind) *models.Submission {
	return &models.Submission{
		ID:             id,
		EntityKind:     kind,
		SubmitterID:    submitter,
		Status:         models.SubmissionStatusPending,
		ProposedFields: []byte(`{}`),
	}
}

func TestReviewServiceApproveAppliesAndAwardsTrust(t *testing.T) {
	db, mock, cleanup := newServiceDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	store := newSubmissionStoreStub()
	store.submissions["sub-1"] = pendingSubmission("sub-1", "member-1", models.KindTeam)
	ledger := &trustLedgerStub{}
	audit := &auditStub{}
	invalidator := &invalidatorStub{}
	created := int64(7)
	handler := &kindHandlerStub{apply: func(sub *models.Submission, parentID *int64) (*int64, error) {
		return &created, nil
	}}
	svc := NewReviewService(db, store, ledger, &kindsStub{handler: handler}, &resolverStub{}, audit, invalidator, NewApprovalPolicy(nil), nil, nil)

	result, err := svc.Approve(context.Background(), "sub-1", dto.ReviewRequest{Notes: "verified against checklist"}, moderatorClaims())
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusApproved, result.Submission.Status)
	require.NotNil(t, result.CreatedEntityID)
	require.Equal(t, created, *result.CreatedEntityID)
	require.Equal(t, []bool{true}, ledger.reviews)
	require.Equal(t, []string{"member-1"}, invalidator.users)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionSubmissionApprove, audit.logs[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewServiceApproveNonPendingConflicts(t *testing.T) {
	db, _, cleanup := newServiceDB(t)
	defer cleanup()

	store := newSubmissionStoreStub()
	approved := pendingSubmission("sub-1", "member-1", models.KindTeam)
	approved.Status = models.SubmissionStatusApproved
	store.submissions["sub-1"] = approved
	svc := NewReviewService(db, store, &trustLedgerStub{}, &kindsStub{handler: &kindHandlerStub{}}, &resolverStub{}, nil, nil, NewApprovalPolicy(nil), nil, nil)

	_, err := svc.Approve(context.Background(), "sub-1", dto.ReviewRequest{}, moderatorClaims())
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestReviewServiceApproveForbiddenForMembers(t *testing.T) {
	db, _, cleanup := newServiceDB(t)
	defer cleanup()

	store := newSubmissionStoreStub()
	store.submissions["sub-1"] = pendingSubmission("sub-1", "member-1", models.KindTeam)
	svc := NewReviewService(db, store, &trustLedgerStub{}, &kindsStub{handler: &kindHandlerStub{}}, &resolverStub{}, nil, nil, NewApprovalPolicy(nil), nil, nil)

	_, err := svc.Approve(context.Background(), "sub-1", dto.ReviewRequest{}, memberClaims())
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestReviewServiceApproveParentNotReady(t *testing.T) {
	db, mock, cleanup := newServiceDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectRollback()

	store := newSubmissionStoreStub()
	parentSub := "parent-1"
	sub := pendingSubmission("sub-1", "member-1", models.KindSeries)
	sub.ParentSubmissionID = &parentSub
	store.submissions["sub-1"] = sub
	ledger := &trustLedgerStub{}
	svc := NewReviewService(db, store, ledger, &kindsStub{handler: &kindHandlerStub{}},
		&resolverStub{err: appErrors.ErrParentNotReady}, nil, nil, NewApprovalPolicy(nil), nil, nil)

	_, err := svc.Approve(context.Background(), "sub-1", dto.ReviewRequest{}, moderatorClaims())
	require.ErrorIs(t, err, appErrors.ErrParentNotReady)
	require.Empty(t, ledger.reviews)
	// The submission stays pending for a later retry.
	require.Equal(t, models.SubmissionStatusPending, store.submissions["sub-1"].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewServiceRejectRequiresNotes(t *testing.T) {
	db, _, cleanup := newServiceDB(t)
	defer cleanup()

	store := newSubmissionStoreStub()
	store.submissions["sub-1"] = pendingSubmission("sub-1", "member-1", models.KindTeam)
	svc := NewReviewService(db, store, &trustLedgerStub{}, &kindsStub{handler: &kindHandlerStub{}}, &resolverStub{}, nil, nil, NewApprovalPolicy(nil), nil, nil)

	_, err := svc.Reject(context.Background(), "sub-1", dto.ReviewRequest{Notes: "   "}, moderatorClaims())
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestReviewServiceRejectRecordsPenalty(t *testing.T) {
	db, mock, cleanup := newServiceDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	store := newSubmissionStoreStub()
	store.submissions["sub-1"] = pendingSubmission("sub-1", "member-1", models.KindCard)
	ledger := &trustLedgerStub{}
	audit := &auditStub{}
	svc := NewReviewService(db, store, ledger, &kindsStub{handler: &kindHandlerStub{}}, &resolverStub{}, audit, &invalidatorStub{}, NewApprovalPolicy(nil), nil, nil)

	result, err := svc.Reject(context.Background(), "sub-1", dto.ReviewRequest{Notes: "duplicate of card 101"}, moderatorClaims())
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusRejected, result.Submission.Status)
	require.NotNil(t, result.Submission.ReviewNotes)
	require.Equal(t, "duplicate of card 101", *result.Submission.ReviewNotes)
	require.Equal(t, []bool{false}, ledger.reviews)
	require.Nil(t, result.CreatedEntityID)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionSubmissionReject, audit.logs[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewServiceDecisionIsTerminal(t *testing.T) {
	db, mock, cleanup := newServiceDB(t)
	defer cleanup()
	mock.ExpectBegin()
	mock.ExpectCommit()

	store := newSubmissionStoreStub()
	store.submissions["sub-1"] = pendingSubmission("sub-1", "member-1", models.KindTeam)
	svc := NewReviewService(db, store, &trustLedgerStub{}, &kindsStub{handler: &kindHandlerStub{}}, &resolverStub{}, nil, nil, NewApprovalPolicy(nil), nil, nil)

	_, err := svc.Approve(context.Background(), "sub-1", dto.ReviewRequest{}, moderatorClaims())
	require.NoError(t, err)

	// A second decision of either polarity is refused.
	_, err = svc.Reject(context.Background(), "sub-1", dto.ReviewRequest{Notes: "changed my mind"}, moderatorClaims())
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
	require.Equal(t, models.SubmissionStatusApproved, store.submissions["sub-1"].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
