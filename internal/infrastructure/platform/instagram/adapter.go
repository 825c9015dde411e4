package instagraminfra

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/metrics"
	"rateKit/internal/infrastructure/platform/upstream"
)

const (
	defaultGraphURL = "https://graph.instagram.com"
	defaultOAuthURL = "https://api.instagram.com"

	statsWindow = 25
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	GraphURL string
	OAuthURL string

	Upstream upstream.Config
	Metrics  *metrics.Registry
}

func (c Config) oauthEnabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

type Adapter struct {
	cfg      Config
	client   *upstream.Client
	graphURL string
	oauthURL string
	metrics  *metrics.Registry
}

func NewAdapter(cfg Config) *Adapter {
	graphURL := cfg.GraphURL
	if graphURL == "" {
		graphURL = defaultGraphURL
	}
	oauthURL := cfg.OAuthURL
	if oauthURL == "" {
		oauthURL = defaultOAuthURL
	}
	upCfg := cfg.Upstream
	upCfg.Platform = domain.PlatformInstagram
	if upCfg.Metrics == nil {
		upCfg.Metrics = cfg.Metrics
	}

	return &Adapter{
		cfg:      cfg,
		client:   upstream.NewClient(upCfg),
		graphURL: graphURL,
		oauthURL: oauthURL,
		metrics:  cfg.Metrics,
	}
}

func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformInstagram
}

// OAuthEnabled reports whether client credentials are configured for the
// authorization-code flow.
func (a *Adapter) OAuthEnabled() bool {
	return a.cfg.oauthEnabled()
}

type meResponse struct {
	ID             upstream.FlexString `json:"id"`
	Username       string              `json:"username"`
	FollowersCount upstream.Count      `json:"followers_count"`
	MediaCount     upstream.Count      `json:"media_count"`
}

type mediaResponse struct {
	Data []media `json:"data"`
}

type media struct {
	ID            upstream.FlexString `json:"id"`
	Caption       string              `json:"caption"`
	MediaType     string              `json:"media_type"`
	MediaURL      string              `json:"media_url"`
	ThumbnailURL  string              `json:"thumbnail_url"`
	Permalink     string              `json:"permalink"`
	LikeCount     upstream.Count      `json:"like_count"`
	CommentsCount upstream.Count      `json:"comments_count"`
	Timestamp     string              `json:"timestamp"`
}

func (a *Adapter) FetchIdentity(ctx context.Context, cred *domain.Credential) (domain.PlatformIdentity, error) {
	var me meResponse
	err := a.client.DoWithRetry(ctx, upstream.Request{
		Op:  "identity",
		URL: a.graphURL + "/me",
		Query: url.Values{
			"fields":       {"id,username"},
			"access_token": {cred.AccessToken},
		},
	}, &me)
	if err != nil {
		return domain.PlatformIdentity{}, err
	}
	if me.ID == "" {
		return domain.PlatformIdentity{}, a.client.AuthError("identity", "no account id in response")
	}

	return domain.PlatformIdentity{
		Platform:          domain.PlatformInstagram,
		ExternalAccountID: me.ID.String(),
		DisplayName:       me.Username,
	}, nil
}

// FetchRawStats sums likes and comments over the 25 most recent posts. The Graph
// API exposes no per-post views at this scope, so TotalViews stays 0.
func (a *Adapter) FetchRawStats(ctx context.Context, cred *domain.Credential) domain.RawStats {
	var me meResponse
	err := a.client.Do(ctx, upstream.Request{
		Op:  "stats",
		URL: a.graphURL + "/me",
		Query: url.Values{
			"fields":       {"followers_count,media_count"},
			"access_token": {cred.AccessToken},
		},
	}, &me)
	if err != nil {
		a.degraded("stats", err)
		return domain.RawStats{}
	}

	posts, err := a.fetchMedia(ctx, cred, "like_count,comments_count,media_type,timestamp", statsWindow)
	if err != nil {
		a.degraded("stats", err)
		return domain.RawStats{}
	}

	raw := domain.RawStats{
		FollowerCount: me.FollowersCount.Int64(),
		PostCount:     me.MediaCount.Int64(),
		SampleSize:    int64(len(posts)),
		Basis:         domain.StatsBasisRecentWindow,
	}
	for _, p := range posts {
		raw.TotalLikes += p.LikeCount.Int64()
		raw.TotalComments += p.CommentsCount.Int64()
	}
	return raw
}

func (a *Adapter) FetchRawContent(ctx context.Context, cred *domain.Credential, limit int) []domain.RawContentItem {
	posts, err := a.fetchMedia(ctx, cred, "id,caption,media_type,media_url,thumbnail_url,permalink,like_count,comments_count,timestamp", limit)
	if err != nil {
		a.degraded("content", err)
		return nil
	}

	items := make([]domain.RawContentItem, 0, len(posts))
	for _, p := range posts {
		thumb := p.ThumbnailURL
		if thumb == "" {
			thumb = p.MediaURL
		}
		items = append(items, domain.RawContentItem{
			ExternalID:     p.ID.String(),
			URL:            p.Permalink,
			ThumbnailURL:   thumb,
			MediaType:      p.MediaType,
			Caption:        p.Caption,
			DisclosureText: p.Caption,
			Likes:          p.LikeCount.Int64(),
			Comments:       p.CommentsCount.Int64(),
			PostedAt:       upstream.ParseTime(p.Timestamp),
		})
	}
	return items
}

func (a *Adapter) fetchMedia(ctx context.Context, cred *domain.Credential, fields string, limit int) ([]media, error) {
	var resp mediaResponse
	err := a.client.Do(ctx, upstream.Request{
		Op:  "media",
		URL: a.graphURL + "/me/media",
		Query: url.Values{
			"fields":       {fields},
			"limit":        {strconv.Itoa(limit)},
			"access_token": {cred.AccessToken},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (a *Adapter) degraded(kind string, err error) {
	log.Warn().Str("platform", string(domain.PlatformInstagram)).Str("kind", kind).Err(err).Msg("instagram fetch degraded to empty result")
	a.metrics.Degraded(string(domain.PlatformInstagram), kind)
}

var (
	_ domain.Adapter        = (*Adapter)(nil)
	_ domain.OAuthProvider  = (*Adapter)(nil)
	_ domain.TokenRefresher = (*Adapter)(nil)
)

// expiresIn converts an expires_in payload value, falling back when absent.
func expiresIn(seconds int64, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
