package platforms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rateKit/internal/domain"
)

type stubAdapter struct {
	platform domain.Platform
}

func (s stubAdapter) Platform() domain.Platform { return s.platform }

func (s stubAdapter) FetchIdentity(context.Context, *domain.Credential) (domain.PlatformIdentity, error) {
	return domain.PlatformIdentity{Platform: s.platform}, nil
}

func (s stubAdapter) FetchRawStats(context.Context, *domain.Credential) domain.RawStats {
	return domain.RawStats{}
}

func (s stubAdapter) FetchRawContent(context.Context, *domain.Credential, int) []domain.RawContentItem {
	return nil
}

type oauthAdapter struct {
	stubAdapter
	enabled bool
}

func (oauthAdapter) BuildAuthorizationURL(state string) string { return "https://auth/" + state }

func (oauthAdapter) ExchangeCode(context.Context, string) (domain.TokenGrant, error) {
	return domain.TokenGrant{}, nil
}

func (oauthAdapter) UpgradeToLongLived(_ context.Context, short string) domain.TokenGrant {
	return domain.TokenGrant{AccessToken: short}
}

func (a oauthAdapter) OAuthEnabled() bool { return a.enabled }

func (oauthAdapter) Refresh(context.Context, *domain.Credential) (domain.TokenGrant, error) {
	return domain.TokenGrant{}, nil
}

type refreshAdapter struct {
	stubAdapter
	can bool
}

func (refreshAdapter) Refresh(context.Context, *domain.Credential) (domain.TokenGrant, error) {
	return domain.TokenGrant{}, nil
}

func (a refreshAdapter) CanRefresh() bool { return a.can }

func TestRegistryResolvesByIdentifier(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.PlatformYouTube, stubAdapter{platform: domain.PlatformYouTube})

	p, a, err := r.Resolve("YouTube")
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformYouTube, p)
	assert.Equal(t, domain.PlatformYouTube, a.Platform())

	_, _, err = r.Resolve("myspace")
	assert.True(t, errors.Is(err, domain.ErrUnsupportedPlatform))

	_, _, err = r.Resolve("tiktok")
	assert.True(t, errors.Is(err, domain.ErrUnsupportedPlatform), "known but unregistered platform")
}

func TestRegistryCapabilities(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.PlatformInstagram, oauthAdapter{stubAdapter: stubAdapter{platform: domain.PlatformInstagram}, enabled: true})
	r.Register(domain.PlatformYouTube, refreshAdapter{stubAdapter: stubAdapter{platform: domain.PlatformYouTube}, can: false})
	r.Register(domain.PlatformTikTok, refreshAdapter{stubAdapter: stubAdapter{platform: domain.PlatformTikTok}, can: true})

	_, err := r.OAuth(domain.PlatformInstagram)
	assert.NoError(t, err)
	_, err = r.OAuth(domain.PlatformTikTok)
	assert.True(t, errors.Is(err, domain.ErrUnsupportedPlatform))

	_, ok := r.Refresher(domain.PlatformInstagram)
	assert.True(t, ok)
	_, ok = r.Refresher(domain.PlatformYouTube)
	assert.False(t, ok, "refresher without client credentials is not registered")
	_, ok = r.Refresher(domain.PlatformTikTok)
	assert.True(t, ok)

	assert.Equal(t, []domain.Platform{domain.PlatformInstagram, domain.PlatformYouTube, domain.PlatformTikTok}, r.Platforms())
}

func TestRegistryOAuthDisabled(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.PlatformInstagram, oauthAdapter{stubAdapter: stubAdapter{platform: domain.PlatformInstagram}})

	_, err := r.OAuth(domain.PlatformInstagram)
	assert.Error(t, err)
}

func TestRegistryRegisterNilRemoves(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.PlatformTikTok, refreshAdapter{stubAdapter: stubAdapter{platform: domain.PlatformTikTok}, can: true})
	r.Register(domain.PlatformTikTok, nil)

	_, err := r.Adapter(domain.PlatformTikTok)
	assert.Error(t, err)
	_, ok := r.Refresher(domain.PlatformTikTok)
	assert.False(t, ok)
	assert.Empty(t, r.Platforms())
}
