package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/metrics"
	"rateKit/internal/infrastructure/persistence/memory"
)

type failingStats struct {
	domain.StatsRepository
	failFor string
}

func (f failingStats) LatestSnapshot(ctx context.Context, accountID string) (*domain.StatsSnapshot, error) {
	if accountID == f.failFor {
		return nil, errors.New("disk I/O error")
	}
	return f.StatsRepository.LatestSnapshot(ctx, accountID)
}

func link(t *testing.T, store *memory.Store, user string, p domain.Platform) *domain.LinkedAccount {
	t.Helper()
	acc, err := store.UpsertAccount(context.Background(), user, domain.PlatformIdentity{Platform: p, ExternalAccountID: string(p) + "-id"})
	require.NoError(t, err)
	return acc
}

func snapshot(t *testing.T, store *memory.Store, acc *domain.LinkedAccount, followers int64) {
	t.Helper()
	require.NoError(t, store.AppendSnapshot(context.Background(), &domain.StatsSnapshot{
		ID:            "s-" + acc.ID,
		AccountID:     acc.ID,
		Platform:      acc.Platform,
		FollowerCount: followers,
		CapturedAt:    time.Now(),
	}))
}

func TestComputeAllRatesSkipsMissingSnapshot(t *testing.T) {
	store := memory.NewStore()
	reg := metrics.NewRegistry()

	ig := link(t, store, "u1", domain.PlatformInstagram)
	link(t, store, "u1", domain.PlatformYouTube)
	tt := link(t, store, "u1", domain.PlatformTikTok)
	snapshot(t, store, ig, 10000)
	snapshot(t, store, tt, 20000)

	svc := NewService(store, store, reg)
	cards, err := svc.ComputeAllRates(context.Background(), "u1", domain.BrandSmall)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, domain.PlatformInstagram, cards[0].Platform)
	assert.Equal(t, int64(500), cards[0].Prices.Image)
	assert.Equal(t, domain.PlatformTikTok, cards[1].Platform)
	assert.Equal(t, int64(1000), cards[1].Prices.Image)

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.RateCardSkips.WithLabelValues("youtube", "no_snapshot")))
}

func TestComputeAllRatesIsolatesFailures(t *testing.T) {
	store := memory.NewStore()
	ig := link(t, store, "u1", domain.PlatformInstagram)
	yt := link(t, store, "u1", domain.PlatformYouTube)
	snapshot(t, store, ig, 10000)
	snapshot(t, store, yt, 10000)

	svc := NewService(store, failingStats{StatsRepository: store, failFor: ig.ID}, nil)
	cards, err := svc.ComputeAllRates(context.Background(), "u1", domain.BrandLarge)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, domain.PlatformYouTube, cards[0].Platform)
}

func TestComputeAllRatesNoAccounts(t *testing.T) {
	svc := NewService(memory.NewStore(), memory.NewStore(), nil)
	cards, err := svc.ComputeAllRates(context.Background(), "nobody", domain.BrandSmall)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestComputePlatformRateErrors(t *testing.T) {
	store := memory.NewStore()
	link(t, store, "u1", domain.PlatformInstagram)
	svc := NewService(store, store, nil)
	ctx := context.Background()

	_, err := svc.ComputePlatformRate(ctx, "u1", "friendster", domain.BrandSmall)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedPlatform))

	_, err = svc.ComputePlatformRate(ctx, "u1", domain.PlatformTikTok, domain.BrandSmall)
	assert.True(t, errors.Is(err, domain.ErrAccountNotLinked))

	_, err = svc.ComputePlatformRate(ctx, "u1", "INSTAGRAM", domain.BrandSmall)
	assert.True(t, errors.Is(err, domain.ErrNoSnapshot))
}

func TestComputePlatformRate(t *testing.T) {
	store := memory.NewStore()
	acc := link(t, store, "u1", domain.PlatformYouTube)
	require.NoError(t, store.AppendSnapshot(context.Background(), &domain.StatsSnapshot{
		ID: "s1", AccountID: acc.ID, Platform: domain.PlatformYouTube,
		FollowerCount: 10000, AvgLikes: 600, AvgComments: 150, EngagementRate: 7.5, CapturedAt: time.Now(),
	}))

	card, err := NewService(store, store, nil).ComputePlatformRate(context.Background(), "u1", domain.PlatformYouTube, domain.BrandMedium)
	require.NoError(t, err)
	assert.Equal(t, int64(863), card.Prices.Image)
	assert.Equal(t, domain.PlatformYouTube, card.Platform)
}
