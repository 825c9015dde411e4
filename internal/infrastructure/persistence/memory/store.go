// Package memory is a process-local implementation of the persistence ports,
// used for development runs and tests. It follows the same contracts as the
// sqlite store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rateKit/internal/domain"
)

type accountKey struct {
	userID   string
	platform domain.Platform
}

type Store struct {
	mu        sync.RWMutex
	accounts  map[accountKey]domain.LinkedAccount
	creds     map[string]domain.Credential
	snapshots map[string][]domain.StatsSnapshot
	portfolio map[string][]domain.PortfolioItem
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		accounts:  make(map[accountKey]domain.LinkedAccount),
		creds:     make(map[string]domain.Credential),
		snapshots: make(map[string][]domain.StatsSnapshot),
		portfolio: make(map[string][]domain.PortfolioItem),
		now:       time.Now,
	}
}

func (s *Store) UpsertAccount(_ context.Context, userID string, identity domain.PlatformIdentity) (*domain.LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	key := accountKey{userID: userID, platform: identity.Platform}
	acc, ok := s.accounts[key]
	if !ok {
		acc = domain.LinkedAccount{
			ID:       uuid.NewString(),
			UserID:   userID,
			Platform: identity.Platform,
			LinkedAt: now,
		}
	}
	acc.Identity = identity
	acc.UpdatedAt = now
	s.accounts[key] = acc

	out := acc
	return &out, nil
}

func (s *Store) GetAccount(_ context.Context, userID string, platform domain.Platform) (*domain.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[accountKey{userID: userID, platform: platform}]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

func (s *Store) ListAccounts(_ context.Context, userID string) ([]*domain.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.LinkedAccount
	for _, p := range domain.AllPlatforms {
		if acc, ok := s.accounts[accountKey{userID: userID, platform: p}]; ok {
			acc := acc
			out = append(out, &acc)
		}
	}
	return out, nil
}

func (s *Store) GetCredential(_ context.Context, accountID string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.creds[accountID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) SaveCredential(_ context.Context, cred *domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.creds[cred.AccountID]; ok && cred.ObtainedAt.Before(cur.ObtainedAt) {
		return domain.ErrStaleCredential
	}
	s.creds[cred.AccountID] = *cred
	return nil
}

func (s *Store) ListCredentials(_ context.Context) ([]*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Credential, 0, len(s.creds))
	for _, c := range s.creds {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (s *Store) AppendSnapshot(_ context.Context, snap *domain.StatsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.AccountID] = append(s.snapshots[snap.AccountID], *snap)
	return nil
}

func (s *Store) LatestSnapshot(_ context.Context, accountID string) (*domain.StatsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.StatsSnapshot
	for i := range s.snapshots[accountID] {
		snap := s.snapshots[accountID][i]
		if latest == nil || snap.CapturedAt.After(latest.CapturedAt) ||
			(snap.CapturedAt.Equal(latest.CapturedAt) && snap.ID > latest.ID) {
			latest = &snap
		}
	}
	return latest, nil
}

// SnapshotCount reports how many snapshots an account has accumulated.
func (s *Store) SnapshotCount(accountID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots[accountID])
}

func (s *Store) ReplacePortfolio(_ context.Context, accountID string, items []domain.PortfolioItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.portfolio[accountID] = append([]domain.PortfolioItem(nil), items...)
	return nil
}

func (s *Store) ListPortfolio(_ context.Context, accountID string, limit int) ([]domain.PortfolioItem, error) {
	s.mu.RLock()
	items := append([]domain.PortfolioItem(nil), s.portfolio[accountID]...)
	s.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool { return items[i].PostedAt.After(items[j].PostedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

var (
	_ domain.AccountRepository    = (*Store)(nil)
	_ domain.CredentialRepository = (*Store)(nil)
	_ domain.StatsRepository      = (*Store)(nil)
	_ domain.PortfolioRepository  = (*Store)(nil)
)
