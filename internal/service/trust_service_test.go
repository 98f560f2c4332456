package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carddex/carddex-api/internal/models"
	"github.com/carddex/carddex-api/internal/repository"
)

type contributorReaderStub struct {
	stats map[string]*models.ContributorStats
	calls int
}

func (r *contributorReaderStub) Get(ctx context.Context, userID string) (*models.ContributorStats, error) {
	r.calls++
	if stats, ok := r.stats[userID]; ok {
		copy := *stats
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func TestTrustServiceGetStats(t *testing.T) {
	reader := &contributorReaderStub{stats: map[string]*models.ContributorStats{
		"user-1": {
			UserID:              "user-1",
			TotalSubmissions:    10,
			ApprovedSubmissions: 8,
			RejectedSubmissions: 2,
			TrustPoints:         36,
			TrustLevel:          models.TrustNovice,
			ApprovalRate:        80,
		},
	}}
	svc := NewTrustService(reader, repository.NewCacheRepository(nil, nil), time.Minute, nil)

	stats, err := svc.GetStats(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 36, stats.TrustPoints)
	require.InDelta(t, 80.0, stats.ApprovalRate, 0.001)
}

func TestTrustServiceGetStatsUnknownUserIsZero(t *testing.T) {
	reader := &contributorReaderStub{}
	svc := NewTrustService(reader, repository.NewCacheRepository(nil, nil), time.Minute, nil)

	stats, err := svc.GetStats(context.Background(), "ghost")
	require.NoError(t, err)
	require.Equal(t, "ghost", stats.UserID)
	require.Equal(t, 0, stats.TrustPoints)
	require.Equal(t, models.TrustNovice, stats.TrustLevel)
}

func TestTrustLevelThresholds(t *testing.T) {
	cases := []struct {
		points int
		level  models.TrustLevel
	}{
		{0, models.TrustNovice},
		{49, models.TrustNovice},
		{50, models.TrustContributor},
		{149, models.TrustContributor},
		{150, models.TrustTrusted},
		{299, models.TrustTrusted},
		{300, models.TrustExpert},
		{499, models.TrustExpert},
		{500, models.TrustMaster},
	}
	for _, tc := range cases {
		require.Equal(t, tc.level, models.TrustLevelFor(tc.points), "points=%d", tc.points)
	}
}
