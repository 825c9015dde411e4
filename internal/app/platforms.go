package app

import (
	"github.com/rs/zerolog/log"

	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/config"
	"rateKit/internal/infrastructure/metrics"
	instagraminfra "rateKit/internal/infrastructure/platform/instagram"
	tiktokinfra "rateKit/internal/infrastructure/platform/tiktok"
	"rateKit/internal/infrastructure/platform/upstream"
	youtubeinfra "rateKit/internal/infrastructure/platform/youtube"
	"rateKit/internal/usecase/platforms"
)

// PlatformURLs overrides upstream base URLs, for tests and sandboxes. Empty
// fields keep the production endpoints.
type PlatformURLs struct {
	InstagramGraph string
	InstagramOAuth string
	YouTubeAPI     string
	YouTubeToken   string
	TikTokAPI      string
}

// NewPlatformRegistry builds every adapter from configuration. Adapters are
// always registered; OAuth and refresh capabilities switch on with their
// client credentials.
func NewPlatformRegistry(cfg *config.Config, reg *metrics.Registry, urls PlatformURLs) *platforms.Registry {
	up := upstream.Config{
		Timeout:    cfg.UpstreamTimeout,
		RatePerSec: cfg.UpstreamRatePerSec,
		Burst:      cfg.UpstreamBurst,
		Metrics:    reg,
	}

	registry := platforms.NewRegistry()

	registry.Register(domain.PlatformInstagram, instagraminfra.NewAdapter(instagraminfra.Config{
		ClientID:     cfg.Instagram.ClientID,
		ClientSecret: cfg.Instagram.ClientSecret,
		RedirectURI:  cfg.Instagram.RedirectURI,
		GraphURL:     urls.InstagramGraph,
		OAuthURL:     urls.InstagramOAuth,
		Upstream:     up,
		Metrics:      reg,
	}))

	registry.Register(domain.PlatformYouTube, youtubeinfra.NewAdapter(youtubeinfra.Config{
		ClientID:     cfg.YouTube.ClientID,
		ClientSecret: cfg.YouTube.ClientSecret,
		APIURL:       urls.YouTubeAPI,
		TokenURL:     urls.YouTubeToken,
		Upstream:     up,
		Metrics:      reg,
	}))

	registry.Register(domain.PlatformTikTok, tiktokinfra.NewAdapter(tiktokinfra.Config{
		ClientKey:    cfg.TikTok.ClientKey,
		ClientSecret: cfg.TikTok.ClientSecret,
		APIURL:       urls.TikTokAPI,
		Upstream:     up,
		Metrics:      reg,
	}))

	for _, p := range registry.Platforms() {
		_, oauthErr := registry.OAuth(p)
		_, refreshable := registry.Refresher(p)
		log.Info().
			Str("platform", string(p)).
			Bool("oauth", oauthErr == nil).
			Bool("refresh", refreshable).
			Msg("platform adapter registered")
	}

	return registry
}
