package sns

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"rateKit/internal/app/events"
	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/metrics"
	"rateKit/internal/usecase/oauthstate"
	"rateKit/internal/usecase/portfolio"
	"rateKit/internal/usecase/stats"
)

type Registry interface {
	Adapter(platform domain.Platform) (domain.Adapter, error)
	OAuth(platform domain.Platform) (domain.OAuthProvider, error)
}

type TokenManager interface {
	Validate(platform domain.Platform, grant domain.TokenGrant) error
	Link(ctx context.Context, accountID string, platform domain.Platform, grant domain.TokenGrant) (*domain.Credential, error)
	EnsureFresh(ctx context.Context, cred *domain.Credential) (*domain.Credential, error)
}

type StateCodec interface {
	Issue(ctx context.Context, userID string, platform domain.Platform) (string, error)
	Decode(ctx context.Context, state string) (oauthstate.Pending, error)
}

type Publisher interface {
	Publish(topic string, payload any)
}

type Deps struct {
	Registry    Registry
	Tokens      TokenManager
	States      StateCodec
	Accounts    domain.AccountRepository
	Credentials domain.CredentialRepository
	Stats       domain.StatsRepository
	Portfolio   domain.PortfolioRepository
	Events      Publisher
	Metrics     *metrics.Registry

	// PortfolioLimit is how many recent items each sync requests.
	PortfolioLimit int
	Now            func() time.Time
}

// Service is the engine entry point: linking accounts, refreshing their
// statistics and portfolio, and the read paths over both.
type Service struct {
	registry Registry
	tokens   TokenManager
	states   StateCodec
	accounts domain.AccountRepository
	creds    domain.CredentialRepository
	stats    domain.StatsRepository
	items    domain.PortfolioRepository
	events   Publisher
	metrics  *metrics.Registry
	limit    int
	now      func() time.Time
}

func NewService(d Deps) *Service {
	limit := d.PortfolioLimit
	if limit <= 0 {
		limit = portfolio.DefaultLimit
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		registry: d.Registry,
		tokens:   d.Tokens,
		states:   d.States,
		accounts: d.Accounts,
		creds:    d.Credentials,
		stats:    d.Stats,
		items:    d.Portfolio,
		events:   d.Events,
		metrics:  d.Metrics,
		limit:    limit,
		now:      now,
	}
}

// CredentialInput is a token obtained outside the engine's OAuth flow.
type CredentialInput struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	LongLived    bool
}

// Connect links an account with an externally obtained token. Only an identity
// failure aborts; stats and content failures leave a zero snapshot and an empty
// portfolio.
func (s *Service) Connect(ctx context.Context, userID string, platform domain.Platform, in CredentialInput) (domain.PlatformIdentity, error) {
	p, adapter, err := s.resolve(platform)
	if err != nil {
		return domain.PlatformIdentity{}, err
	}
	if in.AccessToken == "" {
		return domain.PlatformIdentity{}, &domain.UpstreamAuthError{Platform: p, Op: "connect", Reason: "empty access token"}
	}

	grant := domain.TokenGrant{
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		ExpiresAt:    in.ExpiresAt,
		LongLived:    in.LongLived,
	}
	if err := s.tokens.Validate(p, grant); err != nil {
		return domain.PlatformIdentity{}, fmt.Errorf("sns: connect %s: %w", p, err)
	}

	current := &domain.Credential{
		Platform:     p,
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		ExpiresAt:    in.ExpiresAt,
	}
	identity, err := adapter.FetchIdentity(ctx, current)
	if err != nil {
		return domain.PlatformIdentity{}, fmt.Errorf("sns: connect %s: %w", p, err)
	}

	if err := s.link(ctx, userID, identity, grant, adapter); err != nil {
		return domain.PlatformIdentity{}, fmt.Errorf("sns: connect %s: %w", p, err)
	}
	return identity, nil
}

// link persists the account and credential, then runs the first sync. The
// grant is checked first so a rejected token leaves no account behind.
func (s *Service) link(ctx context.Context, userID string, identity domain.PlatformIdentity, grant domain.TokenGrant, adapter domain.Adapter) error {
	if err := s.tokens.Validate(identity.Platform, grant); err != nil {
		return err
	}
	acc, err := s.accounts.UpsertAccount(ctx, userID, identity)
	if err != nil {
		return fmt.Errorf("store account: %w", err)
	}
	cred, err := s.tokens.Link(ctx, acc.ID, identity.Platform, grant)
	if err != nil {
		return err
	}

	s.publish(events.TopicAccountLinked, acc, identity.DisplayName)

	return s.sync(ctx, acc, cred, adapter)
}

// RefreshStats appends a fresh snapshot and replaces the portfolio of one
// linked platform. Unknown or unlinked platforms fail before any write.
func (s *Service) RefreshStats(ctx context.Context, userID string, platform domain.Platform) error {
	p, adapter, err := s.resolve(platform)
	if err != nil {
		return err
	}

	acc, err := s.accounts.GetAccount(ctx, userID, p)
	if err != nil {
		return fmt.Errorf("sns: refresh %s: load account: %w", p, err)
	}
	if acc == nil {
		return fmt.Errorf("sns: refresh %s: %w", p, domain.ErrAccountNotLinked)
	}

	cred, err := s.creds.GetCredential(ctx, acc.ID)
	if err != nil {
		return fmt.Errorf("sns: refresh %s: load credential: %w", p, err)
	}
	if cred == nil {
		return fmt.Errorf("sns: refresh %s: %w", p, domain.ErrAccountNotLinked)
	}

	cred, err = s.tokens.EnsureFresh(ctx, cred)
	if err != nil {
		s.metrics.StatsRefresh(string(p), "auth_error")
		return fmt.Errorf("sns: refresh %s: %w", p, err)
	}

	if err := s.sync(ctx, acc, cred, adapter); err != nil {
		return fmt.Errorf("sns: refresh %s: %w", p, err)
	}
	return nil
}

type RefreshResult struct {
	Platform domain.Platform `json:"platform"`
	Error    string          `json:"error,omitempty"`
	Err      error           `json:"-"`
}

// RefreshAllStats refreshes every linked platform concurrently. A failing
// platform is reported in its result and does not cancel the others.
func (s *Service) RefreshAllStats(ctx context.Context, userID string) ([]RefreshResult, error) {
	accounts, err := s.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sns: list accounts: %w", err)
	}

	results := make([]RefreshResult, len(accounts))
	var g errgroup.Group
	for i, acc := range accounts {
		i, acc := i, acc
		g.Go(func() error {
			res := RefreshResult{Platform: acc.Platform}
			if err := s.RefreshStats(ctx, userID, acc.Platform); err != nil {
				log.Warn().Str("platform", string(acc.Platform)).Str("account_id", acc.ID).Err(err).Msg("stats refresh failed")
				res.Err = err
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// sync runs the stats and content fetches, which degrade instead of failing, and
// persists their results. Only persistence errors are returned.
func (s *Service) sync(ctx context.Context, acc *domain.LinkedAccount, cred *domain.Credential, adapter domain.Adapter) error {
	platform := acc.Platform

	raw := adapter.FetchRawStats(ctx, cred)
	snap := stats.Normalize(acc.ID, platform, raw, s.now())
	if err := s.stats.AppendSnapshot(ctx, &snap); err != nil {
		s.metrics.StatsRefresh(string(platform), "error")
		return fmt.Errorf("append snapshot: %w", err)
	}

	items := portfolio.Build(acc.ID, platform, adapter.FetchRawContent(ctx, cred, s.limit))
	if err := s.items.ReplacePortfolio(ctx, acc.ID, items); err != nil {
		s.metrics.StatsRefresh(string(platform), "error")
		return fmt.Errorf("replace portfolio: %w", err)
	}

	s.metrics.StatsRefresh(string(platform), "ok")
	log.Info().
		Str("platform", string(platform)).
		Str("account_id", acc.ID).
		Int64("followers", snap.FollowerCount).
		Int("items", len(items)).
		Msg("account synced")
	s.publish(events.TopicStatsRefreshed, acc, "")
	return nil
}

type AccountPortfolio struct {
	Platform    domain.Platform        `json:"platform"`
	AccountName string                 `json:"account_name"`
	Items       []domain.PortfolioItem `json:"items"`
}

// Portfolio returns the stored items of every linked account, newest first.
func (s *Service) Portfolio(ctx context.Context, userID string) ([]AccountPortfolio, error) {
	accounts, err := s.accounts.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sns: list accounts: %w", err)
	}

	out := make([]AccountPortfolio, 0, len(accounts))
	for _, acc := range accounts {
		items, err := s.items.ListPortfolio(ctx, acc.ID, 0)
		if err != nil {
			return nil, fmt.Errorf("sns: list portfolio %s: %w", acc.Platform, err)
		}
		if items == nil {
			items = []domain.PortfolioItem{}
		}
		out = append(out, AccountPortfolio{
			Platform:    acc.Platform,
			AccountName: acc.Identity.DisplayName,
			Items:       items,
		})
	}
	return out, nil
}

func (s *Service) LatestStats(ctx context.Context, userID string, platform domain.Platform) (*domain.StatsSnapshot, error) {
	p, err := domain.ParsePlatform(string(platform))
	if err != nil {
		return nil, err
	}

	acc, err := s.accounts.GetAccount(ctx, userID, p)
	if err != nil {
		return nil, fmt.Errorf("sns: load account: %w", err)
	}
	if acc == nil {
		return nil, fmt.Errorf("sns: stats %s: %w", p, domain.ErrAccountNotLinked)
	}

	snap, err := s.stats.LatestSnapshot(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("sns: load snapshot: %w", err)
	}
	if snap == nil {
		return nil, fmt.Errorf("sns: stats %s: %w", p, domain.ErrNoSnapshot)
	}
	return snap, nil
}

func (s *Service) resolve(platform domain.Platform) (domain.Platform, domain.Adapter, error) {
	p, err := domain.ParsePlatform(string(platform))
	if err != nil {
		return "", nil, err
	}
	adapter, err := s.registry.Adapter(p)
	if err != nil {
		return "", nil, err
	}
	return p, adapter, nil
}

func (s *Service) publish(topic string, acc *domain.LinkedAccount, detail string) {
	if s.events == nil {
		return
	}
	s.events.Publish(topic, domain.AccountEvent{
		UserID:    acc.UserID,
		AccountID: acc.ID,
		Platform:  acc.Platform,
		At:        s.now().UTC(),
		Detail:    detail,
	})
}
