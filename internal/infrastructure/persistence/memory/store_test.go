package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rateKit/internal/domain"
)

func TestUpsertAccountKeepsID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	first, err := s.UpsertAccount(ctx, "u1", domain.PlatformIdentity{Platform: domain.PlatformInstagram, ExternalAccountID: "1", DisplayName: "old"})
	require.NoError(t, err)
	second, err := s.UpsertAccount(ctx, "u1", domain.PlatformIdentity{Platform: domain.PlatformInstagram, ExternalAccountID: "2", DisplayName: "new"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	got, err := s.GetAccount(ctx, "u1", domain.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Identity.DisplayName)

	missing, err := s.GetAccount(ctx, "u1", domain.PlatformTikTok)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSaveCredentialLastWriterWins(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveCredential(ctx, &domain.Credential{AccountID: "a", AccessToken: "new", ObtainedAt: t0.Add(time.Minute)}))
	err := s.SaveCredential(ctx, &domain.Credential{AccountID: "a", AccessToken: "old", ObtainedAt: t0})
	assert.True(t, errors.Is(err, domain.ErrStaleCredential))

	got, err := s.GetCredential(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
}

func TestLatestSnapshotAndPortfolioOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendSnapshot(ctx, &domain.StatsSnapshot{ID: "01", AccountID: "a", FollowerCount: 1, CapturedAt: t0}))
	require.NoError(t, s.AppendSnapshot(ctx, &domain.StatsSnapshot{ID: "02", AccountID: "a", FollowerCount: 2, CapturedAt: t0.Add(time.Hour)}))
	snap, err := s.LatestSnapshot(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.FollowerCount)
	assert.Equal(t, 2, s.SnapshotCount("a"))

	require.NoError(t, s.ReplacePortfolio(ctx, "a", []domain.PortfolioItem{
		{ID: "x", PostedAt: t0},
		{ID: "y", PostedAt: t0.Add(time.Hour)},
	}))
	items, err := s.ListPortfolio(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "y", items[0].ID)

	require.NoError(t, s.ReplacePortfolio(ctx, "a", nil))
	items, err = s.ListPortfolio(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}
