package profile

import (
	"context"
	"fmt"
	"sort"

	"rateKit/internal/domain"
)

const sponsoredPerAccount = 20

type AccountSummary struct {
	Platform       domain.Platform `json:"platform"`
	DisplayName    string          `json:"display_name"`
	FollowerCount  int64           `json:"follower_count"`
	EngagementRate float64         `json:"engagement_rate"`
	HasSnapshot    bool            `json:"has_snapshot"`
}

type Summary struct {
	UserID            string                 `json:"user_id"`
	TotalFollowers    int64                  `json:"total_followers"`
	AvgEngagementRate float64                `json:"avg_engagement_rate"`
	PlatformCount     int                    `json:"platform_count"`
	Accounts          []AccountSummary       `json:"accounts"`
	Sponsored         []domain.PortfolioItem `json:"sponsored"`
}

type Service struct {
	accounts domain.AccountRepository
	stats    domain.StatsRepository
	items    domain.PortfolioRepository
}

func NewService(accounts domain.AccountRepository, stats domain.StatsRepository, items domain.PortfolioRepository) *Service {
	return &Service{accounts: accounts, stats: stats, items: items}
}

// Summary aggregates the current snapshot of every linked account. The mean
// engagement rate is taken over all linked accounts; one without a snapshot
// contributes 0. Sponsored holds at most 20 newest sponsored items per account.
func (s *Service) Summary(ctx context.Context, userID string) (*Summary, error) {
	accounts, err := s.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("profile: list accounts: %w", err)
	}

	out := &Summary{
		UserID:        userID,
		PlatformCount: len(accounts),
		Accounts:      make([]AccountSummary, 0, len(accounts)),
		Sponsored:     []domain.PortfolioItem{},
	}

	var rateSum float64
	for _, acc := range accounts {
		snap, err := s.stats.LatestSnapshot(ctx, acc.ID)
		if err != nil {
			return nil, fmt.Errorf("profile: latest snapshot %s: %w", acc.Platform, err)
		}

		entry := AccountSummary{Platform: acc.Platform, DisplayName: acc.Identity.DisplayName}
		if snap != nil {
			entry.HasSnapshot = true
			entry.FollowerCount = snap.FollowerCount
			entry.EngagementRate = snap.EngagementRate
			out.TotalFollowers += snap.FollowerCount
			rateSum += snap.EngagementRate
		}
		out.Accounts = append(out.Accounts, entry)

		items, err := s.items.ListPortfolio(ctx, acc.ID, 0)
		if err != nil {
			return nil, fmt.Errorf("profile: list portfolio %s: %w", acc.Platform, err)
		}
		taken := 0
		for _, it := range items {
			if !it.IsSponsored {
				continue
			}
			if taken == sponsoredPerAccount {
				break
			}
			out.Sponsored = append(out.Sponsored, it)
			taken++
		}
	}

	if len(accounts) > 0 {
		out.AvgEngagementRate = rateSum / float64(len(accounts))
	}
	sort.SliceStable(out.Sponsored, func(i, j int) bool {
		return out.Sponsored[i].PostedAt.After(out.Sponsored[j].PostedAt)
	})
	return out, nil
}
