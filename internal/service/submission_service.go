package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/carddex/carddex-api/internal/dto"
	"github.com/carddex/carddex-api/internal/models"
	"github.com/carddex/carddex-api/internal/repository"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
)

type submissionStore interface {
	Create(ctx context.Context, ext sqlx.ExtContext, submission *models.Submission) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	ListQueue(ctx context.Context, kind models.EntityKind, limit, offset int) ([]models.ReviewQueueItem, error)
	MarkReviewed(ctx context.Context, ext sqlx.ExtContext, params repository.ReviewUpdateParams) error
	SetCreatedEntity(ctx context.Context, ext sqlx.ExtContext, id string, entityID int64) error
}

type trustLedger interface {
	Ensure(ctx context.Context, ext sqlx.ExtContext, userID string) error
	RecordSubmit(ctx context.Context, tx *sqlx.Tx, userID string, kind models.EntityKind) (*models.ContributorStats, error)
	RecordReview(ctx context.Context, tx *sqlx.Tx, userID string, approved bool) (*models.ContributorStats, error)
}

type kindDispatcher interface {
	For(kind models.EntityKind) KindHandler
}

type parentResolver interface {
	Resolve(ctx context.Context, ext sqlx.ExtContext, parentSubmissionID string) (*int64, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type statsInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// SubmissionService accepts proposed catalog changes, runs them through the
// duplicate guard and the auto-approval gate, and serves listings.
type SubmissionService struct {
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
	pageSize int
}

// NewSubmissionService constructs the service.
func NewSubmissionService(
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
	pageSize int,
) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewApprovalPolicy(nil)
	}
	if pageSize <= 0 {
		pageSize = 25
	}
	return &SubmissionService{
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
		pageSize: pageSize,
	}
}

// Submit validates and stores a proposed change. Trusted roles are applied
// synchronously through the auto-approval gate; the stored record is shaped
// exactly like a peer-reviewed approval.
func (s *SubmissionService) Submit(ctx context.Context, req dto.CreateSubmissionRequest, claims *models.JWTClaims) (*dto.CreateSubmissionResponse, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !req.EntityKind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported entity kind")
	}
	if len(req.Fields) == 0 || !json.Valid(req.Fields) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fields must be a JSON object")
	}
	handler := s.kinds.For(req.EntityKind)
	if handler == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported entity kind")
	}

	draft := &SubmissionDraft{
		Kind:               req.EntityKind,
		Fields:             req.Fields,
		TargetEntityID:     req.TargetEntityID,
		ParentEntityID:     req.ParentEntityID,
		ParentSubmissionID: req.ParentSubmissionID,
	}
	if err := handler.Prepare(ctx, draft); err != nil {
		return nil, err
	}

	submission := &models.Submission{
		EntityKind:         req.EntityKind,
		SubmitterID:        claims.UserID,
		Status:             models.SubmissionStatusPending,
		ProposedFields:     append([]byte(nil), req.Fields...),
		PreviousFields:     draft.PreviousFields,
		DedupeKey:          draft.DedupeKey,
		TargetEntityID:     req.TargetEntityID,
		ParentEntityID:     req.ParentEntityID,
		ParentSubmissionID: req.ParentSubmissionID,
	}

	autoEligible := s.policy.AutoApprove(claims.Role)
	autoApplied := false

	err := repository.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := s.ledger.Ensure(ctx, tx, claims.UserID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ensure contributor stats")
		}
		if err := s.subs.Create(ctx, tx, submission); err != nil {
			if repository.IsUniqueViolation(err) {
				return appErrors.ErrDuplicateSubmission
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
		}
		if _, err := s.ledger.RecordSubmit(ctx, tx, claims.UserID, submission.EntityKind); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record submission")
		}

		if !autoEligible {
			return nil
		}

		// Auto-approval gate: apply synchronously when the dependency chain
		// allows it. An unresolved parent leaves the record in the queue.
		var parentID *int64
		if submission.EntityKind.IsCreation() && submission.ParentSubmissionID != nil {
			resolved, err := s.resolver.Resolve(ctx, tx, *submission.ParentSubmissionID)
			if err != nil {
				if errors.Is(err, appErrors.ErrParentNotReady) {
					return nil
				}
				return err
			}
			parentID = resolved
		} else {
			parentID = submission.ParentEntityID
		}

		now := time.Now().UTC()
		if err := s.subs.MarkReviewed(ctx, tx, repository.ReviewUpdateParams{
			ID:         submission.ID,
			Status:     models.SubmissionStatusApproved,
			ReviewerID: claims.UserID,
			ReviewedAt: now,
		}); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to auto-approve submission")
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
		if _, err := s.ledger.RecordReview(ctx, tx, claims.UserID, true); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update trust points")
		}

		submission.Status = models.SubmissionStatusApproved
		reviewer := claims.UserID
		submission.ReviewerID = &reviewer
		submission.ReviewedAt = &now
		autoApplied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrDuplicateSubmission) && s.metrics != nil {
			s.metrics.ObserveDuplicateDenied()
		}
		return nil, err
	}

	if s.stats != nil {
		s.stats.Invalidate(ctx, claims.UserID)
	}
	if s.metrics != nil {
		s.metrics.ObserveSubmission(submission.EntityKind, submission.Status)
		if autoApplied {
			s.metrics.ObserveAutoApproval()
		}
	}
	action := models.AuditActionSubmissionCreate
	if autoApplied {
		action = models.AuditActionSubmissionAutoApprove
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   string(submission.EntityKind),
		ResourceID: &submission.ID,
		NewValues:  submission.ProposedFields,
		OldValues:  submission.PreviousFields,
	})

	return &dto.CreateSubmissionResponse{Submission: submission, AutoApproved: autoApplied}, nil
}

// Get returns a submission enforcing scope: members see their own, the
// reviewer set sees everything.
func (s *SubmissionService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Submission, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	submission, err := s.subs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if !s.policy.CanReview(claims.Role) && submission.SubmitterID != claims.UserID {
		return nil, appErrors.ErrForbidden
	}
	return submission, nil
}

// List returns submissions respecting actor scope.
func (s *SubmissionService) List(ctx context.Context, query dto.SubmissionQuery, claims *models.JWTClaims) ([]models.Submission, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.SubmissionFilter{
		Kind:   query.Kind,
		Status: query.Status,
		Limit:  s.pageSize,
		Offset: pageOffset(query.Page, s.pageSize),
	}
	if !s.policy.CanReview(claims.Role) {
		filter.SubmitterID = claims.UserID
	}
	submissions, err := s.subs.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Queue returns pending submissions oldest first with submitter trust info.
// Reviewer roles only.
func (s *SubmissionService) Queue(ctx context.Context, kind models.EntityKind, page int, claims *models.JWTClaims) ([]models.ReviewQueueItem, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !s.policy.CanReview(claims.Role) {
		return nil, appErrors.ErrForbidden
	}
	if kind != "" && !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported entity kind")
	}
	items, err := s.subs.ListQueue(ctx, kind, s.pageSize, pageOffset(page, s.pageSize))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list review queue")
	}
	return items, nil
}

func (s *SubmissionService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "submission-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func pageOffset(page, size int) int {
	if page <= 1 {
		return 0
	}
	return (page - 1) * size
}
