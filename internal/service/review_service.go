package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/carddex/carddex-api/internal/dto"
	"github.com/carddex/carddex-api/internal/models"
	"github.com/carddex/carddex-api/internal/repository"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
)

// ReviewService settles pending submissions. Each submission is decided at
// most once: the status transition is a conditional update, so a concurrent
// second decision observes zero affected rows and fails with a conflict.
type ReviewService struct {
	db       *sqlx.DB
	subs     submissionStore
	ledger   trustLedger
	kinds    kindDispatcher
	resolver parentResolver
	audit    auditLogger
	stats    statsInvalidator
	policy   *ApprovalPolicy
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewReviewService constructs the service.
func NewReviewService(
	db *sqlx.DB,
	subs submissionStore,
	ledger trustLedger,
	kinds kindDispatcher,
	resolver parentResolver,
	audit auditLogger,
	stats statsInvalidator,
	policy *ApprovalPolicy,
	metrics *MetricsService,
	logger *zap.Logger,
) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewApprovalPolicy(nil)
	}
	return &ReviewService{
		db:       db,
		subs:     subs,
		ledger:   ledger,
		kinds:    kinds,
		resolver: resolver,
		audit:    audit,
		stats:    stats,
		policy:   policy,
		metrics:  metrics,
		logger:   logger,
	}
}

// Approve applies a pending submission to the catalog. The status flip, the
// catalog write and the trust update commit together or not at all.
func (s *ReviewService) Approve(ctx context.Context, id string, req dto.ReviewRequest, claims *models.JWTClaims) (*dto.ReviewResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !s.policy.CanReview(claims.Role) {
		return nil, appErrors.ErrForbidden
	}

	submission, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.Status != models.SubmissionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "submission has already been reviewed")
	}
	handler := s.kinds.For(submission.EntityKind)
	if handler == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "no handler for entity kind")
	}

	now := time.Now().UTC()
	var notes *string
	if trimmed := strings.TrimSpace(req.Notes); trimmed != "" {
		notes = &trimmed
	}

	err = repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var parentID *int64
		if submission.EntityKind.IsCreation() && submission.ParentSubmissionID != nil {
			resolved, err := s.resolver.Resolve(ctx, tx, *submission.ParentSubmissionID)
			if err != nil {
				return err
			}
			parentID = resolved
		} else {
			parentID = submission.ParentEntityID
		}

		if err := s.subs.MarkReviewed(ctx, tx, repository.ReviewUpdateParams{
			ID:         submission.ID,
			Status:     models.SubmissionStatusApproved,
			ReviewerID: claims.UserID,
			ReviewedAt: now,
			Notes:      notes,
		}); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidState, "submission has already been reviewed")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve submission")
		}
		createdID, err := handler.Apply(ctx, tx, submission, parentID)
		if err != nil {
			return err
		}
		if createdID != nil {
			if err := s.subs.SetCreatedEntity(ctx, tx, submission.ID, *createdID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record created entity")
			}
			submission.CreatedEntityID = createdID
		}
		if _, err := s.ledger.RecordReview(ctx, tx, submission.SubmitterID, true); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update trust points")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	submission.Status = models.SubmissionStatusApproved
	reviewer := claims.UserID
	submission.ReviewerID = &reviewer
	submission.ReviewedAt = &now
	submission.ReviewNotes = notes

	s.afterDecision(ctx, submission, claims, models.AuditActionSubmissionApprove)
	return &dto.ReviewResponse{Submission: submission, CreatedEntityID: submission.CreatedEntityID}, nil
}

// Reject declines a pending submission. Notes are mandatory so the submitter
// learns why.
func (s *ReviewService) Reject(ctx context.Context, id string, req dto.ReviewRequest, claims *models.JWTClaims) (*dto.ReviewResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !s.policy.CanReview(claims.Role) {
		return nil, appErrors.ErrForbidden
	}
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection requires review notes")
	}

	submission, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.Status != models.SubmissionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "submission has already been reviewed")
	}

	now := time.Now().UTC()
	err = repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.subs.MarkReviewed(ctx, tx, repository.ReviewUpdateParams{
			ID:         submission.ID,
			Status:     models.SubmissionStatusRejected,
			ReviewerID: claims.UserID,
			ReviewedAt: now,
			Notes:      &notes,
		}); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidState, "submission has already been reviewed")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject submission")
		}
		if _, err := s.ledger.RecordReview(ctx, tx, submission.SubmitterID, false); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update trust points")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	submission.Status = models.SubmissionStatusRejected
	reviewer := claims.UserID
	submission.ReviewerID = &reviewer
	submission.ReviewedAt = &now
	submission.ReviewNotes = &notes

	s.afterDecision(ctx, submission, claims, models.AuditActionSubmissionReject)
	return &dto.ReviewResponse{Submission: submission}, nil
}

func (s *ReviewService) load(ctx context.Context, id string) (*models.Submission, error) {
	submission, err := s.subs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return submission, nil
}

func (s *ReviewService) afterDecision(ctx context.Context, submission *models.Submission, claims *models.JWTClaims, action string) {
	if s.stats != nil {
		s.stats.Invalidate(ctx, submission.SubmitterID)
	}
	if s.metrics != nil {
		s.metrics.ObserveReview(submission.Status)
	}
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   string(submission.EntityKind),
		ResourceID: &submission.ID,
		NewValues:  submission.ProposedFields,
		OldValues:  submission.PreviousFields,
		IPAddress:  "system",
		UserAgent:  "review-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
