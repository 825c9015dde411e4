package youtubeinfra

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/metrics"
	"rateKit/internal/infrastructure/platform/upstream"
)

const (
	defaultAPIURL   = "https://www.googleapis.com/youtube/v3"
	defaultTokenURL = "https://oauth2.googleapis.com/token"

	statsWindow = 25
	watchURL    = "https://www.youtube.com/watch?v="

	// search.list rejects maxResults above 50.
	maxSearchResults = 50
)

type Config struct {
	// ClientID and ClientSecret enable refresh_token renewal. Without them the
	// adapter is not a TokenRefresher.
	ClientID     string
	ClientSecret string

	APIURL   string
	TokenURL string

	Upstream upstream.Config
	Metrics  *metrics.Registry
}

type Adapter struct {
	cfg      Config
	client   *upstream.Client
	apiURL   string
	tokenURL string
	metrics  *metrics.Registry
}

func NewAdapter(cfg Config) *Adapter {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	upCfg := cfg.Upstream
	upCfg.Platform = domain.PlatformYouTube
	if upCfg.Metrics == nil {
		upCfg.Metrics = cfg.Metrics
	}

	return &Adapter{
		cfg:      cfg,
		client:   upstream.NewClient(upCfg),
		apiURL:   apiURL,
		tokenURL: tokenURL,
		metrics:  cfg.Metrics,
	}
}

func (a *Adapter) Platform() domain.Platform {
	return domain.PlatformYouTube
}

func (a *Adapter) CanRefresh() bool {
	return a.cfg.ClientID != "" && a.cfg.ClientSecret != ""
}

type channelList struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount upstream.Count `json:"subscriberCount"`
			VideoCount      upstream.Count `json:"videoCount"`
			ViewCount       upstream.Count `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type searchList struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type video struct {
	ID      string `json:"id"`
	Snippet struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		PublishedAt string `json:"publishedAt"`
		Thumbnails  struct {
			Default struct {
				URL string `json:"url"`
			} `json:"default"`
			High struct {
				URL string `json:"url"`
			} `json:"high"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	Statistics struct {
		ViewCount    upstream.Count `json:"viewCount"`
		LikeCount    upstream.Count `json:"likeCount"`
		CommentCount upstream.Count `json:"commentCount"`
	} `json:"statistics"`
}

type videoList struct {
	Items []video `json:"items"`
}

func (a *Adapter) FetchIdentity(ctx context.Context, cred *domain.Credential) (domain.PlatformIdentity, error) {
	var resp channelList
	err := a.client.DoWithRetry(ctx, upstream.Request{
		Op:     "identity",
		URL:    a.apiURL + "/channels",
		Query:  url.Values{"part": {"snippet"}, "mine": {"true"}},
		Bearer: cred.AccessToken,
	}, &resp)
	if err != nil {
		return domain.PlatformIdentity{}, err
	}
	if len(resp.Items) == 0 || resp.Items[0].ID == "" {
		return domain.PlatformIdentity{}, a.client.AuthError("identity", "no channel for token")
	}

	ch := resp.Items[0]
	return domain.PlatformIdentity{
		Platform:          domain.PlatformYouTube,
		ExternalAccountID: ch.ID,
		DisplayName:       ch.Snippet.Title,
	}, nil
}

func (a *Adapter) FetchRawStats(ctx context.Context, cred *domain.Credential) domain.RawStats {
	var channels channelList
	if err := a.client.Do(ctx, upstream.Request{
		Op:     "stats",
		URL:    a.apiURL + "/channels",
		Query:  url.Values{"part": {"statistics"}, "mine": {"true"}},
		Bearer: cred.AccessToken,
	}, &channels); err != nil {
		a.degraded("stats", err)
		return domain.RawStats{}
	}
	if len(channels.Items) == 0 {
		a.degraded("stats", a.client.AuthError("stats", "no channel for token"))
		return domain.RawStats{}
	}
	st := channels.Items[0].Statistics

	videos, err := a.recentVideos(ctx, cred, statsWindow, "statistics", false)
	if err != nil {
		a.degraded("stats", err)
		return domain.RawStats{}
	}

	raw := domain.RawStats{
		FollowerCount: st.SubscriberCount.Int64(),
		PostCount:     st.VideoCount.Int64(),
		SampleSize:    int64(len(videos)),
		Basis:         domain.StatsBasisRecentWindow,
	}
	for _, v := range videos {
		raw.TotalLikes += v.Statistics.LikeCount.Int64()
		raw.TotalComments += v.Statistics.CommentCount.Int64()
		raw.TotalViews += v.Statistics.ViewCount.Int64()
	}
	return raw
}

func (a *Adapter) FetchRawContent(ctx context.Context, cred *domain.Credential, limit int) []domain.RawContentItem {
	videos, err := a.recentVideos(ctx, cred, limit, "snippet,statistics", true)
	if err != nil {
		a.degraded("content", err)
		return nil
	}

	items := make([]domain.RawContentItem, 0, len(videos))
	for _, v := range videos {
		thumb := v.Snippet.Thumbnails.High.URL
		if thumb == "" {
			thumb = v.Snippet.Thumbnails.Default.URL
		}
		items = append(items, domain.RawContentItem{
			ExternalID:     v.ID,
			URL:            watchURL + v.ID,
			ThumbnailURL:   thumb,
			MediaType:      string(domain.ContentVideo),
			Caption:        v.Snippet.Title,
			DisclosureText: v.Snippet.Title + " " + v.Snippet.Description,
			LongForm:       true,
			Likes:          v.Statistics.LikeCount.Int64(),
			Comments:       v.Statistics.CommentCount.Int64(),
			Views:          v.Statistics.ViewCount.Int64(),
			PostedAt:       upstream.ParseTime(v.Snippet.PublishedAt),
		})
	}
	return items
}

// recentVideos lists the channel's own uploads, then loads the requested parts
// for those ids in one batch.
func (a *Adapter) recentVideos(ctx context.Context, cred *domain.Credential, limit int, parts string, byDate bool) ([]video, error) {
	if limit > maxSearchResults {
		limit = maxSearchResults
	}
	q := url.Values{
		"part":       {"id"},
		"forMine":    {"true"},
		"type":       {"video"},
		"maxResults": {strconv.Itoa(limit)},
	}
	if byDate {
		q.Set("order", "date")
	}

	var search searchList
	if err := a.client.Do(ctx, upstream.Request{
		Op:     "search",
		URL:    a.apiURL + "/search",
		Query:  q,
		Bearer: cred.AccessToken,
	}, &search); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(search.Items))
	for _, it := range search.Items {
		if it.ID.VideoID != "" {
			ids = append(ids, it.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var list videoList
	if err := a.client.Do(ctx, upstream.Request{
		Op:     "videos",
		URL:    a.apiURL + "/videos",
		Query:  url.Values{"part": {parts}, "id": {strings.Join(ids, ",")}},
		Bearer: cred.AccessToken,
	}, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresh runs Google's refresh_token grant. Google usually omits a new refresh
// token, in which case the stored one is carried over.
func (a *Adapter) Refresh(ctx context.Context, cred *domain.Credential) (domain.TokenGrant, error) {
	if cred.RefreshToken == "" {
		return domain.TokenGrant{}, a.client.AuthError("refresh_token", "no refresh token stored")
	}

	form := url.Values{}
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)

	var resp tokenResponse
	if err := a.client.Do(ctx, upstream.Request{
		Op:     "refresh_token",
		Method: http.MethodPost,
		URL:    a.tokenURL,
		Form:   form,
	}, &resp); err != nil {
		return domain.TokenGrant{}, err
	}
	if resp.AccessToken == "" {
		return domain.TokenGrant{}, a.client.AuthError("refresh_token", "empty access token")
	}

	refresh := resp.RefreshToken
	if refresh == "" {
		refresh = cred.RefreshToken
	}
	return domain.TokenGrant{
		AccessToken:  resp.AccessToken,
		RefreshToken: refresh,
		ExpiresIn:    time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

func (a *Adapter) degraded(kind string, err error) {
	log.Warn().Str("platform", string(domain.PlatformYouTube)).Str("kind", kind).Err(err).Msg("youtube fetch degraded to empty result")
	a.metrics.Degraded(string(domain.PlatformYouTube), kind)
}

var (
	_ domain.Adapter        = (*Adapter)(nil)
	_ domain.TokenRefresher = (*Adapter)(nil)
)
