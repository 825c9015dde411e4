package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/metrics"
)

// Service prices the current snapshots of a user's linked accounts.
type Service struct {
	accounts domain.AccountRepository
	stats    domain.StatsRepository
	metrics  *metrics.Registry
}

func NewService(accounts domain.AccountRepository, stats domain.StatsRepository, reg *metrics.Registry) *Service {
	return &Service{accounts: accounts, stats: stats, metrics: reg}
}

func (s *Service) ComputePlatformRate(ctx context.Context, userID string, platform domain.Platform, tier domain.BrandTier) (*domain.RateCard, error) {
	p, err := domain.ParsePlatform(string(platform))
	if err != nil {
		return nil, err
	}

	acc, err := s.accounts.GetAccount(ctx, userID, p)
	if err != nil {
		return nil, fmt.Errorf("pricing: load account: %w", err)
	}
	if acc == nil {
		return nil, fmt.Errorf("pricing: %s: %w", p, domain.ErrAccountNotLinked)
	}

	return s.rateFor(ctx, acc, tier)
}

func (s *Service) rateFor(ctx context.Context, acc *domain.LinkedAccount, tier domain.BrandTier) (*domain.RateCard, error) {
	snap, err := s.stats.LatestSnapshot(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("pricing: load snapshot: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("pricing: %s: %w", acc.Platform, domain.ErrNoSnapshot)
	}

	card := ComputeRate(*snap, tier)
	card.Platform = acc.Platform
	return &card, nil
}

// ComputeAllRates prices every linked platform concurrently. Platforms without
// a snapshot or failing individually are skipped; the rest are returned in
// platform order.
func (s *Service) ComputeAllRates(ctx context.Context, userID string, tier domain.BrandTier) ([]domain.RateCard, error) {
	accounts, err := s.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("pricing: list accounts: %w", err)
	}

	cards := make([]*domain.RateCard, len(accounts))
	var g errgroup.Group
	for i, acc := range accounts {
		i, acc := i, acc
		g.Go(func() error {
			card, err := s.rateFor(ctx, acc, tier)
			if err != nil {
				reason := "error"
				if errors.Is(err, domain.ErrNoSnapshot) {
					reason = "no_snapshot"
				}
				log.Warn().Str("platform", string(acc.Platform)).Str("account_id", acc.ID).Err(err).Msg("skipping rate card")
				s.metrics.RateCardSkipped(string(acc.Platform), reason)
				return nil
			}
			cards[i] = card
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.RateCard, 0, len(cards))
	for _, p := range domain.AllPlatforms {
		for _, c := range cards {
			if c != nil && c.Platform == p {
				out = append(out, *c)
			}
		}
	}
	return out, nil
}
