package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/carddex/carddex-api/internal/models"
	"github.com/carddex/carddex-api/internal/repository"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
)

type contributorReader interface {
	Get(ctx context.Context, userID string) (*models.ContributorStats, error)
}

// TrustService serves contributor trust aggregates with a short-lived Redis
// cache in front of the table. Writes happen inside the pipeline
// transactions; this service only reads and invalidates.
type TrustService struct {
	repo   contributorReader
	cache  *repository.CacheRepository
	ttl    time.Duration
	logger *zap.Logger
}

// NewTrustService constructs the service.
func NewTrustService(repo contributorReader, cache *repository.CacheRepository, ttl time.Duration, logger *zap.Logger) *TrustService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrustService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func statsCacheKey(userID string) string {
	return fmt.Sprintf("contributor:stats:%s", userID)
}

// GetStats returns the aggregate for a user, a zero-value default when the
// user has never submitted anything.
func (s *TrustService) GetStats(ctx context.Context, userID string) (*models.ContributorStats, error) {
	key := statsCacheKey(userID)
	if s.cache != nil {
		var cached models.ContributorStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ZeroContributorStats(userID), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contributor stats")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.ttl); err != nil {
			s.logger.Warn("failed to cache contributor stats", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return stats, nil
}

// Invalidate drops the cached aggregate after a pipeline write.
func (s *TrustService) Invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(ctx, statsCacheKey(userID))
}
