package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	StorageSQLite = "sqlite"
	StorageMemory = "memory"

	// MaxPortfolioLimit is the largest page every platform accepts.
	MaxPortfolioLimit = 50
)

type InstagramConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

type YouTubeConfig struct {
	ClientID     string
	ClientSecret string
}

type TikTokConfig struct {
	ClientKey    string
	ClientSecret string
}

type Config struct {
	Addr        string
	Storage     string
	DBPath      string
	RedisAddr   string
	StateSecret string
	FrontendURL string

	LogLevel  string
	LogFormat string

	Instagram InstagramConfig
	YouTube   YouTubeConfig
	TikTok    TikTokConfig

	UpstreamTimeout    time.Duration
	UpstreamRatePerSec float64
	UpstreamBurst      int

	RefreshInterval time.Duration
	RefreshWindow   time.Duration
	PortfolioLimit  int
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:        envOr("HTTP_ADDR", ":8080"),
		Storage:     strings.ToLower(envOr("STORAGE_DRIVER", StorageSQLite)),
		DBPath:      envOr("DB_PATH", "data/ratekit.db"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		StateSecret: os.Getenv("OAUTH_STATE_SECRET"),
		FrontendURL: strings.TrimRight(envOr("FRONTEND_URL", "http://localhost:3000"), "/"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   os.Getenv("LOG_FORMAT"),
		Instagram: InstagramConfig{
			ClientID:     os.Getenv("INSTAGRAM_CLIENT_ID"),
			ClientSecret: os.Getenv("INSTAGRAM_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("INSTAGRAM_REDIRECT_URI"),
		},
		YouTube: YouTubeConfig{
			ClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
			ClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
		},
		TikTok: TikTokConfig{
			ClientKey:    os.Getenv("TIKTOK_CLIENT_KEY"),
			ClientSecret: os.Getenv("TIKTOK_CLIENT_SECRET"),
		},
	}

	var err error
	if cfg.UpstreamTimeout, err = durationEnv("UPSTREAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = durationEnv("TOKEN_REFRESH_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshWindow, err = durationEnv("TOKEN_REFRESH_WINDOW", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.UpstreamRatePerSec, err = floatEnv("UPSTREAM_RATE_PER_SEC", 5); err != nil {
		return nil, err
	}
	if cfg.UpstreamBurst, err = intEnv("UPSTREAM_BURST", 5); err != nil {
		return nil, err
	}
	if cfg.PortfolioLimit, err = intEnv("PORTFOLIO_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.PortfolioLimit > MaxPortfolioLimit {
		log.Warn().Int("requested", cfg.PortfolioLimit).Int("max", MaxPortfolioLimit).Msg("config: PORTFOLIO_LIMIT clamped")
		cfg.PortfolioLimit = MaxPortfolioLimit
	}

	switch cfg.Storage {
	case StorageSQLite, StorageMemory:
	default:
		return nil, fmt.Errorf("config: STORAGE_DRIVER %q: want %s or %s", cfg.Storage, StorageSQLite, StorageMemory)
	}

	if cfg.StateSecret == "" {
		log.Warn().Msg("config: OAUTH_STATE_SECRET not set, a random secret will be used for this process")
	}
	if cfg.Instagram.ClientID == "" || cfg.Instagram.RedirectURI == "" {
		log.Warn().Msg("config: instagram oauth not configured")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s: invalid duration %q", key, raw)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("config: %s: invalid positive integer %q", key, raw)
	}
	return v, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("config: %s: invalid positive number %q", key, raw)
	}
	return v, nil
}
