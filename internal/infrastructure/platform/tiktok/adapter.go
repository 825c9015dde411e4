package tiktokinfra

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/metrics"
	"rateKit/internal/infrastructure/platform/upstream"
)

const (
	defaultAPIURL = "https://open.tiktokapis.com/v2"

	videoFields = "id,title,cover_image_url,share_url,video_description,duration,create_time,like_count,comment_count,share_count,view_count"
)

type Config struct {
	// ClientKey and ClientSecret enable refresh_token renewal.
	ClientKey    string
	ClientSecret string

	APIURL string

	Upstream upstream.Config
	Metrics  *metrics.Registry
}

type Adapter struct {
	cfg     Config
	client  *upstream.Client
	apiURL  string
	metrics *metrics.Registry
}

func NewAdapter(cfg Config) *Adapter {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	upCfg := cfg.Upstream
	upCfg.Platform = domain.PlatformTikTok
	if upCfg.Metrics == nil {
		upCfg.Metrics = cfg.Metrics
	}

	return &Adapter{
		cfg:     cfg,
		client:  upstream.NewClient(upCfg),
		apiURL:  apiURL,
		metrics: cfg.Metrics,
	}
}

func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformTikTok
}

func (a *Adapter) CanRefresh() bool {
	return a.cfg.ClientKey != "" && a.cfg.ClientSecret != ""
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e apiError) failed() bool {
	return e.Code != "" && e.Code != "ok"
}

type userInfoResponse struct {
	Data struct {
		User struct {
			OpenID        string         `json:"open_id"`
			DisplayName   string         `json:"display_name"`
			FollowerCount upstream.Count `json:"follower_count"`
			LikesCount    upstream.Count `json:"likes_count"`
			VideoCount    upstream.Count `json:"video_count"`
		} `json:"user"`
	} `json:"data"`
	Error apiError `json:"error"`
}

type videoListResponse struct {
	Data struct {
		Videos []struct {
			ID               upstream.FlexString `json:"id"`
			Title            string              `json:"title"`
			VideoDescription string              `json:"video_description"`
			CoverImageURL    string              `json:"cover_image_url"`
			ShareURL         string              `json:"share_url"`
			CreateTime       upstream.Count      `json:"create_time"`
			LikeCount        upstream.Count      `json:"like_count"`
			CommentCount     upstream.Count      `json:"comment_count"`
			ViewCount        upstream.Count      `json:"view_count"`
		} `json:"videos"`
	} `json:"data"`
	Error apiError `json:"error"`
}

func (a *Adapter) userInfo(ctx context.Context, op, fields string, cred *domain.Credential, retry bool) (*userInfoResponse, error) {
	req := upstream.Request{
		Op:     op,
		URL:    a.apiURL + "/user/info/",
		Query:  url.Values{"fields": {fields}},
		Bearer: cred.AccessToken,
	}

	var resp userInfoResponse
	do := a.client.Do
	if retry {
		do = a.client.DoWithRetry
	}
	if err := do(ctx, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error.failed() {
		return nil, a.client.AuthError(op, resp.Error.Code)
	}
	return &resp, nil
}

func (a *Adapter) FetchIdentity(ctx context.Context, cred *domain.Credential) (domain.PlatformIdentity, error) {
	resp, err := a.userInfo(ctx, "identity", "open_id,display_name", cred, true)
	if err != nil {
		return domain.PlatformIdentity{}, err
	}
	if resp.Data.User.OpenID == "" {
		return domain.PlatformIdentity{}, a.client.AuthError("identity", "no open_id in response")
	}

	return domain.PlatformIdentity{
		Platform:          domain.PlatformTikTok,
		ExternalAccountID: resp.Data.User.OpenID,
		DisplayName:       resp.Data.User.DisplayName,
	}, nil
}

// FetchRawStats reports lifetime totals: TikTok has no per-window aggregate, so
// likes are averaged over the whole video count. Comments and views are not
// exposed at user level and stay 0.
func (a *Adapter) FetchRawStats(ctx context.Context, cred *domain.Credential) domain.RawStats {
	resp, err := a.userInfo(ctx, "stats", "follower_count,following_count,likes_count,video_count", cred, false)
	if err != nil {
		a.degraded("stats", err)
		return domain.RawStats{}
	}

	// An account with no videos still counts as one post.
	u := resp.Data.User
	videos := u.VideoCount.Int64()
	if videos < 1 {
		videos = 1
	}
	return domain.RawStats{
		FollowerCount: u.FollowerCount.Int64(),
		PostCount:     videos,
		SampleSize:    videos,
		TotalLikes:    u.LikesCount.Int64(),
		Basis:         domain.StatsBasisLifetime,
	}
}

func (a *Adapter) FetchRawContent(ctx context.Context, cred *domain.Credential, limit int) []domain.RawContentItem {
	var resp videoListResponse
	err := a.client.Do(ctx, upstream.Request{
		Op:     "videos",
		Method: http.MethodPost,
		URL:    a.apiURL + "/video/list/",
		Query:  url.Values{"fields": {videoFields}},
		Bearer: cred.AccessToken,
		JSON:   map[string]int{"max_count": limit},
	}, &resp)
	if err == nil && resp.Error.failed() {
		err = a.client.AuthError("videos", resp.Error.Code)
	}
	if err != nil {
		a.degraded("content", err)
		return nil
	}

	items := make([]domain.RawContentItem, 0, len(resp.Data.Videos))
	for _, v := range resp.Data.Videos {
		caption := v.Title
		if caption == "" {
			caption = v.VideoDescription
		}
		var posted time.Time
		if ts := v.CreateTime.Int64(); ts > 0 {
			posted = time.Unix(ts, 0).UTC()
		}
		items = append(items, domain.RawContentItem{
			ExternalID:     v.ID.String(),
			URL:            v.ShareURL,
			ThumbnailURL:   v.CoverImageURL,
			MediaType:      string(domain.ContentVideo),
			Caption:        caption,
			DisclosureText: v.VideoDescription,
			Likes:          v.LikeCount.Int64(),
			Comments:       v.CommentCount.Int64(),
			Views:          v.ViewCount.Int64(),
			PostedAt:       posted,
		})
	}
	return items
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	OpenID           string `json:"open_id"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (a *Adapter) Refresh(ctx context.Context, cred *domain.Credential) (domain.TokenGrant, error) {
	if cred.RefreshToken == "" {
		return domain.TokenGrant{}, a.client.AuthError("refresh_token", "no refresh token stored")
	}

	form := url.Values{}
	form.Set("client_key", a.cfg.ClientKey)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)

	var resp tokenResponse
	if err := a.client.Do(ctx, upstream.Request{
		Op:     "refresh_token",
		Method: http.MethodPost,
		URL:    a.apiURL + "/oauth/token/",
		Form:   form,
	}, &resp); err != nil {
		return domain.TokenGrant{}, err
	}
	if resp.Error != "" || resp.AccessToken == "" {
		return domain.TokenGrant{}, a.client.AuthError("refresh_token", resp.Error)
	}

	refresh := resp.RefreshToken
	if refresh == "" {
		refresh = cred.RefreshToken
	}
	return domain.TokenGrant{
		AccessToken:    resp.AccessToken,
		RefreshToken:   refresh,
		ExternalUserID: resp.OpenID,
		ExpiresIn:      time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

func (a *Adapter) degraded(kind string, err error) {
	log.Warn().Str("platform", string(domain.PlatformTikTok)).Str("kind", kind).Err(err).Msg("tiktok fetch degraded to empty result")
	a.metrics.Degraded(string(domain.PlatformTikTok), kind)
}

var (
	_ domain.Adapter        = (*Adapter)(nil)
	_ domain.TokenRefresher = (*Adapter)(nil)
)
