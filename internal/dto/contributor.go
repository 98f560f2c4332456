package dto

import "github.com/carddex/carddex-api/internal/models"

// ContributorStatsResponse wraps the trust aggregate for API consumption.
type ContributorStatsResponse struct {
	Stats *models.ContributorStats `json:"stats"`
}
