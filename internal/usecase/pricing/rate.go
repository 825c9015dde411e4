package pricing

import (
	"github.com/shopspring/decimal"

	"rateKit/internal/domain"
)

var (
	baseRate = decimal.RequireFromString("0.05")
	one      = decimal.NewFromInt(1)

	brandGrades = map[domain.BrandTier]decimal.Decimal{
		domain.BrandLarge:  decimal.RequireFromString("1.3"),
		domain.BrandMedium: decimal.RequireFromString("1.15"),
		domain.BrandSmall:  one,
	}

	formatImage   = one
	formatReel    = decimal.RequireFromString("1.5")
	formatVideo   = decimal.NewFromInt(2)
	formatPackage = decimal.RequireFromString("2.5")
)

// ComputeRate derives a rate card from one snapshot. Arithmetic is decimal so
// half-way amounts round up consistently (750 x 1.15 = 862.5 -> 863). Unknown
// brand tiers price like small.
func ComputeRate(snap domain.StatsSnapshot, tier domain.BrandTier) domain.RateCard {
	followers := snap.FollowerCount
	if followers < 0 {
		followers = 0
	}

	basePrice := decimal.NewFromInt(followers).Mul(baseRate)
	engageBonus := basePrice.Mul(engagementWeight(snap.EngagementRate).Sub(one))
	viewBonus := basePrice.Mul(viewWeight(snap.AvgViews, followers).Sub(one))
	baseTotal := basePrice.Add(engageBonus).Add(viewBonus)

	grade := BrandGrade(tier)
	price := func(format decimal.Decimal) int64 {
		return roundUnits(baseTotal.Mul(format).Mul(grade))
	}

	return domain.RateCard{
		Platform:    snap.Platform,
		BasePrice:   roundUnits(basePrice),
		EngageBonus: roundUnits(engageBonus),
		ViewBonus:   roundUnits(viewBonus),
		BrandGrade:  grade.InexactFloat64(),
		Prices: domain.Prices{
			Image:   price(formatImage),
			Reel:    price(formatReel),
			Short:   price(formatReel),
			Video:   price(formatVideo),
			Package: price(formatPackage),
		},
		Stats: domain.RateCardStats{
			FollowerCount:  snap.FollowerCount,
			EngagementRate: snap.EngagementRate,
			AvgLikes:       snap.AvgLikes,
			AvgComments:    snap.AvgComments,
			AvgViews:       snap.AvgViews,
		},
	}
}

func BrandGrade(tier domain.BrandTier) decimal.Decimal {
	if g, ok := brandGrades[tier]; ok {
		return g
	}
	return one
}

func engagementWeight(rate float64) decimal.Decimal {
	switch {
	case rate > 5:
		return decimal.RequireFromString("1.5")
	case rate > 3:
		return decimal.RequireFromString("1.3")
	case rate > 2:
		return decimal.RequireFromString("1.2")
	default:
		return one
	}
}

func viewWeight(avgViews float64, followers int64) decimal.Decimal {
	if followers <= 0 {
		return one
	}
	ratio := avgViews / float64(followers)
	switch {
	case ratio > 2:
		return decimal.RequireFromString("1.3")
	case ratio > 1.5:
		return decimal.RequireFromString("1.2")
	case ratio > 1:
		return decimal.RequireFromString("1.1")
	default:
		return one
	}
}

// roundUnits rounds half away from zero; amounts here are never negative.
func roundUnits(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
