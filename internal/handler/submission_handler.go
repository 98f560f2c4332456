package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/carddex/carddex-api/internal/dto"
	"github.com/carddex/carddex-api/internal/models"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
	"github.com/carddex/carddex-api/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, req dto.CreateSubmissionRequest, claims *models.JWTClaims) (*dto.CreateSubmissionResponse, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Submission, error)
	List(ctx context.Context, query dto.SubmissionQuery, claims *models.JWTClaims) ([]models.Submission, error)
	Queue(ctx context.Context, kind models.EntityKind, page int, claims *models.JWTClaims) ([]models.ReviewQueueItem, error)
}

type reviewService interface {
	Approve(ctx context.Context, id string, req dto.ReviewRequest, claims *models.JWTClaims) (*dto.ReviewResponse, error)
	Reject(ctx context.Context, id string, req dto.ReviewRequest, claims *models.JWTClaims) (*dto.ReviewResponse, error)
}

// SubmissionHandler exposes REST endpoints for the contribution pipeline.
type SubmissionHandler struct {
	submissions submissionService
	reviews     reviewService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(submissions submissionService, reviews reviewService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, reviews: reviews}
}

// Create godoc
// @Summary Propose a catalog change
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	if h.submissions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	var req dto.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.submissions.Submit(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil)
}

// List godoc
// @Summary List submissions
// @Tags Submissions
// @Produce json
// @Param kind query string false "Entity kind"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	if h.submissions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.SubmissionQuery{Page: pageParam(c)}
	if rawKind := c.Query("kind"); rawKind != "" {
		query.Kind = models.EntityKind(strings.ToUpper(strings.TrimSpace(rawKind)))
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.SubmissionStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.SubmissionStatus(part))
		}
		query.Status = statuses
	}
	submissions, err := h.submissions.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Get godoc
// @Summary Get submission detail
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	if h.submissions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.submissions.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Queue godoc
// @Summary List the pending review queue, oldest first
// @Tags Submissions
// @Produce json
// @Param kind query string false "Entity kind"
// @Param page query int false "Page number"
// @Success 200 {object} response.Envelope
// @Router /submissions/queue [get]
func (h *SubmissionHandler) Queue(c *gin.Context) {
	if h.submissions == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "submission service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var kind models.EntityKind
	if rawKind := c.Query("kind"); rawKind != "" {
		kind = models.EntityKind(strings.ToUpper(strings.TrimSpace(rawKind)))
	}
	items, err := h.submissions.Queue(c.Request.Context(), kind, pageParam(c), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Approve godoc
// @Summary Approve a pending submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.ReviewRequest false "Optional reviewer notes"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/approve [post]
func (h *SubmissionHandler) Approve(c *gin.Context) {
	if h.reviews == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "review service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
			return
		}
	}
	result, err := h.reviews.Approve(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject a pending submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.ReviewRequest true "Reviewer notes (required)"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/reject [post]
func (h *SubmissionHandler) Reject(c *gin.Context) {
	if h.reviews == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "review service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	result, err := h.reviews.Reject(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
