package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/metrics"
)

const (
	defaultInterval      = 30 * time.Minute
	defaultRefreshWindow = 7 * 24 * time.Hour
)

// RefresherSource resolves the refresh capability of a platform.
type RefresherSource interface {
	Refresher(platform domain.Platform) (domain.TokenRefresher, bool)
}

type CredentialHook func(ctx context.Context, cred *domain.Credential)

type Config struct {
	// RefreshWindow is how close to expiry a credential must be for the
	// background sweep to renew it.
	RefreshWindow time.Duration
	Now           func() time.Time
}

// Manager owns the token lifecycle of linked accounts: first link, refresh and
// the periodic sweep. Credentials are written as single rows with
// last-writer-wins on ObtainedAt.
type Manager struct {
	repo       domain.CredentialRepository
	refreshers RefresherSource
	metrics    *metrics.Registry
	window     time.Duration
	now        func() time.Time

	hooksMu sync.RWMutex
	hooks   []CredentialHook
}

func NewManager(repo domain.CredentialRepository, refreshers RefresherSource, reg *metrics.Registry, cfg Config) *Manager {
	window := cfg.RefreshWindow
	if window <= 0 {
		window = defaultRefreshWindow
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		repo:       repo,
		refreshers: refreshers,
		metrics:    reg,
		window:     window,
		now:        now,
	}
}

func (m *Manager) RegisterHook(h CredentialHook) {
	if h == nil {
		return
	}
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, h)
}

func (m *Manager) notifyHooks(ctx context.Context, cred *domain.Credential) {
	if cred == nil {
		return
	}
	m.hooksMu.RLock()
	hooks := append([]CredentialHook(nil), m.hooks...)
	m.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, cred)
	}
}

// Validate reports whether grant could be linked now. It performs no writes, so
// callers can reject a grant before persisting anything else.
func (m *Manager) Validate(platform domain.Platform, grant domain.TokenGrant) error {
	_, err := m.credentialFor("", platform, grant)
	return err
}

func (m *Manager) credentialFor(accountID string, platform domain.Platform, grant domain.TokenGrant) (*domain.Credential, error) {
	if grant.AccessToken == "" {
		return nil, &domain.UpstreamAuthError{Platform: platform, Op: "link", Reason: "empty access token"}
	}

	now := m.now().UTC()
	cred := &domain.Credential{
		AccountID:    accountID,
		Platform:     platform,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		Kind:         kindOf(grant.LongLived),
		ExpiresAt:    grant.ExpiryFrom(now),
		ObtainedAt:   now,
		UpdatedAt:    now,
	}

	// Re-linking passes through Unlinked, so any stored state is left behind.
	switch state := cred.State(now); {
	case state == domain.TokenExpired:
		return nil, &domain.UpstreamAuthError{Platform: platform, Op: "link", Reason: "token expired"}
	case !domain.CanTransition(domain.TokenUnlinked, state):
		return nil, &domain.UpstreamAuthError{Platform: platform, Op: "link", Reason: "illegal target state " + state.String()}
	}
	return cred, nil
}

// Link stores the first credential of an account, or replaces it on re-link.
func (m *Manager) Link(ctx context.Context, accountID string, platform domain.Platform, grant domain.TokenGrant) (*domain.Credential, error) {
	cred, err := m.credentialFor(accountID, platform, grant)
	if err != nil {
		return nil, fmt.Errorf("credentials: link %s: %w", platform, err)
	}

	if err := m.repo.SaveCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("credentials: link %s: %w", platform, err)
	}

	log.Info().Str("platform", string(platform)).Str("account_id", accountID).Str("state", cred.State(cred.ObtainedAt).String()).Msg("credential linked")
	return cred, nil
}

// Refresh renews the stored credential of accountID through its platform's
// TokenRefresher. When a concurrent refresh already stored a newer token, that
// token is returned instead.
func (m *Manager) Refresh(ctx context.Context, accountID string) (*domain.Credential, error) {
	current, err := m.repo.GetCredential(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("credentials: refresh: %w", err)
	}
	if current == nil {
		return nil, domain.ErrAccountNotLinked
	}
	return m.refresh(ctx, current)
}

func (m *Manager) refresh(ctx context.Context, current *domain.Credential) (*domain.Credential, error) {
	platform := current.Platform
	refresher, ok := m.refreshers.Refresher(platform)
	if !ok {
		return nil, fmt.Errorf("credentials: refresh %s: %w", platform, domain.ErrNotRefreshable)
	}

	grant, err := refresher.Refresh(ctx, current)
	if err != nil {
		m.metrics.TokenRefresh(string(platform), "error")
		return nil, fmt.Errorf("credentials: refresh %s: %w", platform, err)
	}

	obtained := m.now().UTC()
	next := &domain.Credential{
		AccountID:    current.AccountID,
		Platform:     platform,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		Kind:         kindOf(grant.LongLived || current.Kind == domain.TokenKindLongLived),
		ExpiresAt:    grant.ExpiryFrom(obtained),
		ObtainedAt:   obtained,
		UpdatedAt:    obtained,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}

	from, to := current.State(obtained), next.State(obtained)
	if !domain.CanTransition(from, to) {
		m.metrics.TokenRefresh(string(platform), "rejected")
		return nil, fmt.Errorf("credentials: refresh %s: illegal transition %s -> %s", platform, from, to)
	}

	if err := m.repo.SaveCredential(ctx, next); err != nil {
		if errors.Is(err, domain.ErrStaleCredential) {
			m.metrics.TokenRefresh(string(platform), "stale")
			log.Debug().Str("platform", string(platform)).Str("account_id", current.AccountID).Msg("newer credential already stored")
			stored, gerr := m.repo.GetCredential(ctx, current.AccountID)
			if gerr != nil {
				return nil, fmt.Errorf("credentials: refresh %s: %w", platform, gerr)
			}
			return stored, nil
		}
		m.metrics.TokenRefresh(string(platform), "error")
		return nil, fmt.Errorf("credentials: refresh %s: %w", platform, err)
	}

	m.metrics.TokenRefresh(string(platform), "ok")
	log.Info().Str("platform", string(platform)).Str("account_id", current.AccountID).Time("expires_at", next.ExpiresAt).Msg("credential refreshed")
	m.notifyHooks(ctx, next)
	return next, nil
}

// EnsureFresh returns cred unchanged while it is usable. An expired credential
// is refreshed when the platform supports it, otherwise the caller gets an
// UpstreamAuthError.
func (m *Manager) EnsureFresh(ctx context.Context, cred *domain.Credential) (*domain.Credential, error) {
	if cred == nil {
		return nil, domain.ErrAccountNotLinked
	}
	if !cred.Expired(m.now()) {
		return cred, nil
	}

	if _, ok := m.refreshers.Refresher(cred.Platform); !ok {
		return nil, &domain.UpstreamAuthError{Platform: cred.Platform, Op: "ensure_fresh", Reason: "token expired"}
	}
	return m.refresh(ctx, cred)
}

// Start runs RefreshDue on a ticker until ctx is done.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.RefreshDue(ctx); err != nil {
					log.Error().Err(err).Msg("token refresher sweep")
				}
			}
		}
	}()
}

// RefreshDue renews every refreshable credential that expires within the
// refresh window. A failing credential does not stop the sweep; all failures
// are returned joined.
func (m *Manager) RefreshDue(ctx context.Context) error {
	if m.repo == nil {
		return nil
	}

	creds, err := m.repo.ListCredentials(ctx)
	if err != nil {
		return fmt.Errorf("refresher: list credentials: %w", err)
	}

	var errs []error
	now := m.now()
	for _, cred := range creds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !m.needsRefresh(cred, now) {
			continue
		}
		if _, ok := m.refreshers.Refresher(cred.Platform); !ok {
			continue
		}
		if _, err := m.refresh(ctx, cred); err != nil {
			log.Warn().Str("platform", string(cred.Platform)).Str("account_id", cred.AccountID).Err(err).Msg("scheduled refresh failed")
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) needsRefresh(cred *domain.Credential, now time.Time) bool {
	if cred == nil || cred.AccessToken == "" || cred.ExpiresAt.IsZero() {
		return false
	}
	return cred.ExpiresAt.Sub(now) < m.window
}

func kindOf(longLived bool) domain.TokenKind {
	if longLived {
		return domain.TokenKindLongLived
	}
	return domain.TokenKindShortLived
}
