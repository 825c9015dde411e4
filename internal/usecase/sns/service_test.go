package sns

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rateKit/internal/app/events"
	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/persistence/memory"
	"rateKit/internal/usecase/credentials"
	"rateKit/internal/usecase/oauthstate"
	"rateKit/internal/usecase/platforms"
)

type fakeAdapter struct {
	platform domain.Platform

	mu          sync.Mutex
	identityErr error
	raw         domain.RawStats
	content     []domain.RawContentItem
	tokensSeen  []string
}

func (f *fakeAdapter) Platform() domain.Platform { return f.platform }

func (f *fakeAdapter) FetchIdentity(_ context.Context, cred *domain.Credential) (domain.PlatformIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokensSeen = append(f.tokensSeen, cred.AccessToken)
	if f.identityErr != nil {
		return domain.PlatformIdentity{}, f.identityErr
	}
	return domain.PlatformIdentity{Platform: f.platform, ExternalAccountID: "ext-" + string(f.platform), DisplayName: "kim"}, nil
}

func (f *fakeAdapter) FetchRawStats(context.Context, *domain.Credential) domain.RawStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw
}

func (f *fakeAdapter) FetchRawContent(_ context.Context, _ *domain.Credential, limit int) []domain.RawContentItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.content) > limit {
		return f.content[:limit]
	}
	return f.content
}

func (f *fakeAdapter) setContent(items []domain.RawContentItem) {
	f.mu.Lock()
	f.content = items
	f.mu.Unlock()
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	bus      *events.Bus
	registry *platforms.Registry
	adapters map[domain.Platform]*fakeAdapter
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    memory.NewStore(),
		bus:      events.NewBus(),
		registry: platforms.NewRegistry(),
		adapters: make(map[domain.Platform]*fakeAdapter),
		now:      time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	for _, p := range domain.AllPlatforms {
		a := &fakeAdapter{platform: p, raw: domain.RawStats{
			FollowerCount: 10000,
			PostCount:     40,
			SampleSize:    25,
			TotalLikes:    15000,
			TotalComments: 3750,
		}}
		f.adapters[p] = a
		f.registry.Register(p, a)
	}

	clock := func() time.Time { return f.now }
	codec, err := oauthstate.NewCodec([]byte("secret"), oauthstate.NewMemoryNonceStore())
	require.NoError(t, err)

	f.svc = NewService(Deps{
		Registry:    f.registry,
		Tokens:      credentials.NewManager(f.store, f.registry, nil, credentials.Config{Now: clock}),
		States:      codec,
		Accounts:    f.store,
		Credentials: f.store,
		Stats:       f.store,
		Portfolio:   f.store,
		Events:      f.bus,
		Now:         clock,
	})
	return f
}

func TestConnectLinksAndSyncs(t *testing.T) {
	f := newFixture(t)
	ch, unsubscribe := f.bus.Subscribe(events.TopicAccountLinked)
	defer unsubscribe()

	f.adapters[domain.PlatformInstagram].setContent([]domain.RawContentItem{
		{URL: "https://instagram.com/p/1", MediaType: "IMAGE", Caption: "x", DisclosureText: "cafe #ad"},
	})

	id, err := f.svc.Connect(context.Background(), "u1", "INSTAGRAM", CredentialInput{AccessToken: "tok", LongLived: true})
	require.NoError(t, err)
	assert.Equal(t, "ext-instagram", id.ExternalAccountID)

	snap, err := f.svc.LatestStats(context.Background(), "u1", domain.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), snap.FollowerCount)
	assert.InDelta(t, 7.5, snap.EngagementRate, 1e-9)
	assert.Equal(t, f.now, snap.CapturedAt)

	pf, err := f.svc.Portfolio(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, pf, 1)
	require.Len(t, pf[0].Items, 1)
	assert.True(t, pf[0].Items[0].IsSponsored)

	acc, _ := f.store.GetAccount(context.Background(), "u1", domain.PlatformInstagram)
	cred, _ := f.store.GetCredential(context.Background(), acc.ID)
	assert.Equal(t, domain.TokenKindLongLived, cred.Kind)

	select {
	case msg := <-ch:
		ev := msg.(events.Envelope).Payload.(domain.AccountEvent)
		assert.Equal(t, "u1", ev.UserID)
		assert.Equal(t, domain.PlatformInstagram, ev.Platform)
	default:
		t.Fatal("account:linked not published")
	}
}

func TestConnectIdentityFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.adapters[domain.PlatformYouTube].identityErr = &domain.UpstreamAuthError{Platform: domain.PlatformYouTube, Op: "identity", Status: 401}

	_, err := f.svc.Connect(context.Background(), "u1", domain.PlatformYouTube, CredentialInput{AccessToken: "bad"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamAuth))

	acc, err := f.store.GetAccount(context.Background(), "u1", domain.PlatformYouTube)
	require.NoError(t, err)
	assert.Nil(t, acc, "nothing stored")
}

func TestConnectExpiredTokenLeavesNoAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Connect(context.Background(), "u1", domain.PlatformYouTube, CredentialInput{
		AccessToken: "tok",
		ExpiresAt:   f.now.Add(-time.Hour),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamAuth))
	assert.Empty(t, f.adapters[domain.PlatformYouTube].tokensSeen, "rejected before any upstream call")

	accounts, err := f.store.ListAccounts(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, accounts)

	err = f.svc.RefreshStats(context.Background(), "u1", domain.PlatformYouTube)
	assert.True(t, errors.Is(err, domain.ErrAccountNotLinked))
}

func TestLinkRejectedGrantWritesNothing(t *testing.T) {
	f := newFixture(t)
	identity := domain.PlatformIdentity{Platform: domain.PlatformTikTok, ExternalAccountID: "ext-tiktok", DisplayName: "kim"}

	err := f.svc.link(context.Background(), "u1", identity, domain.TokenGrant{AccessToken: "tok", ExpiresAt: f.now.Add(-time.Minute)}, f.adapters[domain.PlatformTikTok])
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamAuth))

	acc, err := f.store.GetAccount(context.Background(), "u1", domain.PlatformTikTok)
	require.NoError(t, err)
	assert.Nil(t, acc)
}

func TestConnectDegradedStatsStillWrites(t *testing.T) {
	f := newFixture(t)
	f.adapters[domain.PlatformTikTok].raw = domain.RawStats{}

	_, err := f.svc.Connect(context.Background(), "u1", domain.PlatformTikTok, CredentialInput{AccessToken: "tok"})
	require.NoError(t, err)

	snap, err := f.svc.LatestStats(context.Background(), "u1", domain.PlatformTikTok)
	require.NoError(t, err)
	assert.Zero(t, snap.FollowerCount)
	assert.Zero(t, snap.EngagementRate)
}

func TestConnectUnsupportedPlatform(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Connect(context.Background(), "u1", "vine", CredentialInput{AccessToken: "tok"})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedPlatform))
}

func TestRefreshStatsReplacesPortfolio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ig := f.adapters[domain.PlatformInstagram]
	ig.setContent([]domain.RawContentItem{
		{URL: "a", MediaType: "IMAGE"},
		{URL: "b", MediaType: "VIDEO"},
	})

	_, err := f.svc.Connect(ctx, "u1", domain.PlatformInstagram, CredentialInput{AccessToken: "tok"})
	require.NoError(t, err)

	ig.setContent(nil)
	f.now = f.now.Add(time.Hour)
	require.NoError(t, f.svc.RefreshStats(ctx, "u1", domain.PlatformInstagram))

	pf, err := f.svc.Portfolio(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pf, 1)
	assert.Empty(t, pf[0].Items, "zero upstream items empties the portfolio")

	acc, _ := f.store.GetAccount(ctx, "u1", domain.PlatformInstagram)
	assert.Equal(t, 2, f.store.SnapshotCount(acc.ID), "snapshots are appended")
	snap, _ := f.store.LatestSnapshot(ctx, acc.ID)
	assert.Equal(t, f.now, snap.CapturedAt)
}

func TestRefreshStatsUnlinkedWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.RefreshStats(ctx, "u1", domain.PlatformTikTok)
	assert.True(t, errors.Is(err, domain.ErrAccountNotLinked))

	err = f.svc.RefreshStats(ctx, "u1", "orkut")
	assert.True(t, errors.Is(err, domain.ErrUnsupportedPlatform))

	accounts, _ := f.store.ListAccounts(ctx, "u1")
	assert.Empty(t, accounts)
}

func TestRefreshStatsExpiredWithoutRefresher(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Connect(ctx, "u1", domain.PlatformTikTok, CredentialInput{AccessToken: "tok", ExpiresAt: f.now.Add(time.Hour)})
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	err = f.svc.RefreshStats(ctx, "u1", domain.PlatformTikTok)
	assert.True(t, errors.Is(err, domain.ErrUpstreamAuth))
}

func TestRefreshAllStatsIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Connect(ctx, "u1", domain.PlatformInstagram, CredentialInput{AccessToken: "a"})
	require.NoError(t, err)
	_, err = f.svc.Connect(ctx, "u1", domain.PlatformTikTok, CredentialInput{AccessToken: "b", ExpiresAt: f.now.Add(time.Minute)})
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	results, err := f.svc.RefreshAllStats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, domain.PlatformInstagram, results[0].Platform)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, domain.PlatformTikTok, results[1].Platform)
	assert.True(t, errors.Is(results[1].Err, domain.ErrUpstreamAuth))
	assert.NotEmpty(t, results[1].Error)
}

func TestLatestStatsErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.LatestStats(ctx, "u1", domain.PlatformYouTube)
	assert.True(t, errors.Is(err, domain.ErrAccountNotLinked))

	_, err = f.store.UpsertAccount(ctx, "u1", domain.PlatformIdentity{Platform: domain.PlatformYouTube})
	require.NoError(t, err)
	_, err = f.svc.LatestStats(ctx, "u1", domain.PlatformYouTube)
	assert.True(t, errors.Is(err, domain.ErrNoSnapshot))
}
