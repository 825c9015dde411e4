package stats

import (
	"time"

	"rateKit/internal/domain"
	"rateKit/internal/ids"
)

// Normalize turns adapter totals into a snapshot. Averages divide by the sample
// the totals were summed over; engagement rate is recomputed from this
// snapshot's own averages.
//
// For lifetime-basis stats (TikTok) the sample is the account's whole video
// count, so the averages approximate per-post figures from lifetime totals
// rather than a recent window. That asymmetry is kept as is.
func Normalize(accountID string, platform domain.Platform, raw domain.RawStats, capturedAt time.Time) domain.StatsSnapshot {
	capturedAt = capturedAt.UTC()
	followers := nonNegative(raw.FollowerCount)

	snap := domain.StatsSnapshot{
		ID:            ids.NewAt(capturedAt),
		AccountID:     accountID,
		Platform:      platform,
		FollowerCount: followers,
		AvgLikes:      average(raw.TotalLikes, raw.SampleSize),
		AvgComments:   average(raw.TotalComments, raw.SampleSize),
		AvgViews:      average(raw.TotalViews, raw.SampleSize),
		PostFrequency: nonNegative(raw.PostCount),
		CapturedAt:    capturedAt,
	}
	snap.EngagementRate = EngagementRate(snap.AvgLikes, snap.AvgComments, followers)
	return snap
}

// EngagementRate is (avgLikes + avgComments) / followers * 100, or 0 without
// followers.
func EngagementRate(avgLikes, avgComments float64, followers int64) float64 {
	if followers <= 0 {
		return 0
	}
	return (avgLikes + avgComments) / float64(followers) * 100
}

func average(total, n int64) float64 {
	if n <= 0 || total <= 0 {
		return 0
	}
	return float64(total) / float64(n)
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
