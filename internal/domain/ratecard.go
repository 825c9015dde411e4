package domain

import "strings"

type BrandTier string

const (
	BrandLarge  BrandTier = "large"
	BrandMedium BrandTier = "medium"
	BrandSmall  BrandTier = "small"
)

func ParseBrandTier(raw string) BrandTier {
	return BrandTier(strings.ToLower(strings.TrimSpace(raw)))
}

type Prices struct {
	Image   int64 `json:"image"`
	Reel    int64 `json:"reel"`
	Short   int64 `json:"short"`
	Video   int64 `json:"video"`
	Package int64 `json:"package"`
}

type RateCardStats struct {
	FollowerCount  int64   `json:"follower_count"`
	EngagementRate float64 `json:"engagement_rate"`
	AvgLikes       float64 `json:"avg_likes"`
	AvgComments    float64 `json:"avg_comments"`
	AvgViews       float64 `json:"avg_views"`
}

// RateCard is derived from a snapshot on demand and never stored.
type RateCard struct {
	Platform    Platform      `json:"platform"`
	BasePrice   int64         `json:"base_price"`
	EngageBonus int64         `json:"engage_bonus"`
	ViewBonus   int64         `json:"view_bonus"`
	BrandGrade  float64       `json:"brand_grade"`
	Prices      Prices        `json:"prices"`
	Stats       RateCardStats `json:"stats"`
}
