package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carddex/carddex-api/internal/dto"
	"github.com/carddex/carddex-api/internal/models"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
	"github.com/carddex/carddex-api/pkg/response"
)

type trustService interface {
	GetStats(ctx context.Context, userID string) (*models.ContributorStats, error)
}

// ContributorHandler exposes contributor trust statistics.
type ContributorHandler struct {
	trust trustService
}

// NewContributorHandler constructs the handler.
func NewContributorHandler(trust trustService) *ContributorHandler {
	return &ContributorHandler{trust: trust}
}

// Stats godoc
// @Summary Get contributor trust statistics
// @Tags Contributors
// @Produce json
// @Param id path string true "Contributor user ID"
// @Success 200 {object} response.Envelope
// @Router /contributors/{id}/stats [get]
func (h *ContributorHandler) Stats(c *gin.Context) {
	if h.trust == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "trust service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.trust.GetStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ContributorStatsResponse{Stats: stats}, nil)
}
