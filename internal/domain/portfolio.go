package domain

import (
	"context"
	"time"
)

type ContentType string

const (
	ContentImage ContentType = "IMAGE"
	ContentVideo ContentType = "VIDEO"
)

type RawContentItem struct {
	ExternalID   string
	URL          string
	ThumbnailURL string
	MediaType    string
	Caption      string
	// DisclosureText is the text scanned for sponsorship markers.
	DisclosureText string
	// LongForm marks long-form video, which also honours "sponsored by".
	LongForm bool
	Likes    int64
	Comments int64
	Views    int64
	PostedAt time.Time
}

type PortfolioItem struct {
	ID           string      `json:"id"`
	AccountID    string      `json:"account_id"`
	Platform     Platform    `json:"platform"`
	ContentURL   string      `json:"content_url"`
	ThumbnailURL string      `json:"thumbnail_url"`
	ContentType  ContentType `json:"content_type"`
	Caption      string      `json:"caption"`
	Likes        int64       `json:"likes"`
	Comments     int64       `json:"comments"`
	Views        int64       `json:"views"`
	IsSponsored  bool        `json:"is_sponsored"`
	PostedAt     time.Time   `json:"posted_at"`
}

type PortfolioRepository interface {
	// ReplacePortfolio atomically supersedes every item of the account with items.
	ReplacePortfolio(ctx context.Context, accountID string, items []PortfolioItem) error
	// ListPortfolio returns the newest items first; limit <= 0 means all.
	ListPortfolio(ctx context.Context, accountID string, limit int) ([]PortfolioItem, error)
}
