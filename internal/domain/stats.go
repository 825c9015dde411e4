package domain

import (
	"context"
	"time"
)

type StatsBasis string

const (
	StatsBasisRecentWindow StatsBasis = "recent_window"
	StatsBasisLifetime     StatsBasis = "lifetime"
)

// RawStats are adapter-side totals before averaging. SampleSize is the number of
// posts the totals were summed over.
type RawStats struct {
	FollowerCount int64
	PostCount     int64
	SampleSize    int64
	TotalLikes    int64
	TotalComments int64
	TotalViews    int64
	Basis         StatsBasis
}

type StatsSnapshot struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	Platform       Platform  `json:"platform"`
	FollowerCount  int64     `json:"follower_count"`
	AvgLikes       float64   `json:"avg_likes"`
	AvgComments    float64   `json:"avg_comments"`
	AvgViews       float64   `json:"avg_views"`
	EngagementRate float64   `json:"engagement_rate"`
	PostFrequency  int64     `json:"post_frequency"`
	CapturedAt     time.Time `json:"captured_at"`
}

type StatsRepository interface {
	AppendSnapshot(ctx context.Context, snap *StatsSnapshot) error
	// LatestSnapshot returns nil, nil when the account has no snapshot yet.
	LatestSnapshot(ctx context.Context, accountID string) (*StatsSnapshot, error)
}
