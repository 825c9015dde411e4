package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rateKit/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "ratekit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func linkAccount(t *testing.T, s *Store, userID string, p domain.Platform) *domain.LinkedAccount {
	t.Helper()
	acc, err := s.UpsertAccount(context.Background(), userID, domain.PlatformIdentity{
		Platform:          p,
		ExternalAccountID: "ext-" + string(p),
		DisplayName:       "kim",
	})
	require.NoError(t, err)
	return acc
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestUpsertAccountKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := linkAccount(t, s, "u1", domain.PlatformInstagram)
	require.NotEmpty(t, first.ID)

	second, err := s.UpsertAccount(ctx, "u1", domain.PlatformIdentity{
		Platform:          domain.PlatformInstagram,
		ExternalAccountID: "ext-2",
		DisplayName:       "renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "ext-2", second.Identity.ExternalAccountID)
	assert.Equal(t, "renamed", second.Identity.DisplayName)

	other := linkAccount(t, s, "u2", domain.PlatformInstagram)
	assert.NotEqual(t, first.ID, other.ID)

	_, err = s.UpsertAccount(ctx, "", domain.PlatformIdentity{Platform: domain.PlatformYouTube})
	require.Error(t, err)
}

func TestGetAndListAccounts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	acc, err := s.GetAccount(ctx, "u1", domain.PlatformTikTok)
	require.NoError(t, err)
	assert.Nil(t, acc)

	linkAccount(t, s, "u1", domain.PlatformTikTok)
	linkAccount(t, s, "u1", domain.PlatformInstagram)
	linkAccount(t, s, "u2", domain.PlatformYouTube)

	list, err := s.ListAccounts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.PlatformInstagram, list[0].Platform)
	assert.Equal(t, domain.PlatformTikTok, list[1].Platform)
	assert.Equal(t, domain.PlatformTikTok, list[1].Identity.Platform)
}

func TestCredentialLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	acc := linkAccount(t, s, "u1", domain.PlatformInstagram)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	newer := &domain.Credential{
		AccountID:    acc.ID,
		Platform:     domain.PlatformInstagram,
		AccessToken:  "new",
		RefreshToken: "r",
		Kind:         domain.TokenKindLongLived,
		ExpiresAt:    base.Add(60 * 24 * time.Hour),
		ObtainedAt:   base.Add(time.Minute),
	}
	require.NoError(t, s.SaveCredential(ctx, newer))

	older := &domain.Credential{
		AccountID:   acc.ID,
		Platform:    domain.PlatformInstagram,
		AccessToken: "old",
		Kind:        domain.TokenKindShortLived,
		ObtainedAt:  base,
	}
	err := s.SaveCredential(ctx, older)
	assert.True(t, errors.Is(err, domain.ErrStaleCredential))

	got, err := s.GetCredential(ctx, acc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.AccessToken)
	assert.Equal(t, "r", got.RefreshToken)
	assert.Equal(t, domain.TokenKindLongLived, got.Kind)
	assert.True(t, newer.ExpiresAt.Equal(got.ExpiresAt))
	assert.True(t, newer.ObtainedAt.Equal(got.ObtainedAt))

	same := *newer
	same.AccessToken = "same-instant"
	require.NoError(t, s.SaveCredential(ctx, &same), "equal ObtainedAt overwrites")
}

func TestCredentialWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	acc := linkAccount(t, s, "u1", domain.PlatformYouTube)

	require.NoError(t, s.SaveCredential(ctx, &domain.Credential{
		AccountID:   acc.ID,
		Platform:    domain.PlatformYouTube,
		AccessToken: "tok",
		Kind:        domain.TokenKindShortLived,
		ObtainedAt:  time.Now(),
	}))

	got, err := s.GetCredential(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.IsZero())
	assert.Empty(t, got.RefreshToken)

	missing, err := s.GetCredential(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := s.ListCredentials(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, acc.ID, all[0].AccountID)
}

func TestLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	acc := linkAccount(t, s, "u1", domain.PlatformTikTok)

	snap, err := s.LatestSnapshot(ctx, acc.ID)
	require.NoError(t, err)
	assert.Nil(t, snap)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, followers := range []int64{100, 300, 200} {
		require.NoError(t, s.AppendSnapshot(ctx, &domain.StatsSnapshot{
			ID:             string(rune('a' + i)),
			AccountID:      acc.ID,
			Platform:       domain.PlatformTikTok,
			FollowerCount:  followers,
			AvgLikes:       1.5,
			EngagementRate: 2.25,
			CapturedAt:     base.Add(time.Duration(followers) * time.Second),
		}))
	}

	snap, err = s.LatestSnapshot(ctx, acc.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(300), snap.FollowerCount)
	assert.Equal(t, 1.5, snap.AvgLikes)
	assert.Equal(t, 2.25, snap.EngagementRate)
	assert.True(t, base.Add(300*time.Second).Equal(snap.CapturedAt))
}

func TestReplacePortfolio(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	acc := linkAccount(t, s, "u1", domain.PlatformInstagram)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	items := []domain.PortfolioItem{
		{ID: "1", Platform: domain.PlatformInstagram, ContentURL: "a", ContentType: domain.ContentImage, PostedAt: base},
		{ID: "2", Platform: domain.PlatformInstagram, ContentURL: "b", ContentType: domain.ContentVideo, IsSponsored: true, Views: 9, PostedAt: base.Add(time.Hour)},
	}
	require.NoError(t, s.ReplacePortfolio(ctx, acc.ID, items))

	got, err := s.ListPortfolio(ctx, acc.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.True(t, got[0].IsSponsored)
	assert.Equal(t, domain.ContentVideo, got[0].ContentType)
	assert.Equal(t, int64(9), got[0].Views)
	assert.Equal(t, acc.ID, got[0].AccountID)

	limited, err := s.ListPortfolio(ctx, acc.ID, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	require.NoError(t, s.ReplacePortfolio(ctx, acc.ID, nil))
	got, err = s.ListPortfolio(ctx, acc.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReplacePortfolioIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	acc := linkAccount(t, s, "u1", domain.PlatformInstagram)

	require.NoError(t, s.ReplacePortfolio(ctx, acc.ID, []domain.PortfolioItem{
		{ID: "keep", Platform: domain.PlatformInstagram, ContentURL: "a", ContentType: domain.ContentImage},
	}))

	dup := []domain.PortfolioItem{
		{ID: "x", Platform: domain.PlatformInstagram, ContentURL: "a", ContentType: domain.ContentImage},
		{ID: "x", Platform: domain.PlatformInstagram, ContentURL: "b", ContentType: domain.ContentImage},
	}
	require.Error(t, s.ReplacePortfolio(ctx, acc.ID, dup))

	got, err := s.ListPortfolio(ctx, acc.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].ID)
}

func TestReplacePortfolioRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM portfolio_items").WithArgs("acc").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO portfolio_items").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = New(db).ReplacePortfolio(context.Background(), "acc", []domain.PortfolioItem{{ID: "1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplacePortfolioBeginError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	err = New(db).ReplacePortfolio(context.Background(), "acc", nil)
	require.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveCredentialStaleViaRowsAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO credentials").WillReturnResult(sqlmock.NewResult(0, 0))

	err = New(db).SaveCredential(context.Background(), &domain.Credential{AccountID: "acc", AccessToken: "t", ObtainedAt: time.Now()})
	require.ErrorIs(t, err, domain.ErrStaleCredential)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateWrapsGooseError(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })
	gooseUp = func(context.Context, *sql.DB, string) error { return errors.New("boom") }

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = New(db).Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: migrate")
}
