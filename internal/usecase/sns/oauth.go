package sns

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"rateKit/internal/domain"
)

type AuthorizationRequest struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// BuildAuthorizationURL starts the authorization-code flow for userID. The
// returned state is single use and expires.
func (s *Service) BuildAuthorizationURL(ctx context.Context, userID string, platform domain.Platform) (AuthorizationRequest, error) {
	p, err := domain.ParsePlatform(string(platform))
	if err != nil {
		return AuthorizationRequest{}, err
	}
	provider, err := s.registry.OAuth(p)
	if err != nil {
		return AuthorizationRequest{}, err
	}

	state, err := s.states.Issue(ctx, userID, p)
	if err != nil {
		return AuthorizationRequest{}, err
	}

	log.Debug().Str("platform", string(p)).Str("user_id", userID).Msg("authorization started")
	return AuthorizationRequest{URL: provider.BuildAuthorizationURL(state), State: state}, nil
}

// HandleCallback completes a pending authorization: exchange, long-lived
// upgrade (falling back to the short token), identity, link and first sync.
// Every failure is a *domain.CallbackError.
func (s *Service) HandleCallback(ctx context.Context, code, state string) (domain.PlatformIdentity, error) {
	pending, err := s.states.Decode(ctx, state)
	if err != nil {
		return domain.PlatformIdentity{}, asCallbackError(domain.CallbackInvalidState, err)
	}
	if code == "" {
		return domain.PlatformIdentity{}, &domain.CallbackError{Reason: domain.CallbackMissingCode}
	}

	provider, err := s.registry.OAuth(pending.Platform)
	if err != nil {
		return domain.PlatformIdentity{}, asCallbackError(domain.CallbackInvalidState, err)
	}
	adapter, err := s.registry.Adapter(pending.Platform)
	if err != nil {
		return domain.PlatformIdentity{}, asCallbackError(domain.CallbackInvalidState, err)
	}

	short, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		return domain.PlatformIdentity{}, asCallbackError(domain.CallbackExchangeFailed, err)
	}

	grant := provider.UpgradeToLongLived(ctx, short.AccessToken)
	if grant.AccessToken == "" {
		grant = short
	}
	if grant.RefreshToken == "" {
		grant.RefreshToken = short.RefreshToken
	}

	identity, err := adapter.FetchIdentity(ctx, &domain.Credential{
		Platform:    pending.Platform,
		AccessToken: grant.AccessToken,
	})
	if err != nil {
		return domain.PlatformIdentity{}, asCallbackError(domain.CallbackIdentityFailed, err)
	}

	if err := s.link(ctx, pending.UserID, identity, grant, adapter); err != nil {
		return domain.PlatformIdentity{}, asCallbackError(domain.CallbackStoreFailed, err)
	}

	log.Info().
		Str("platform", string(pending.Platform)).
		Str("user_id", pending.UserID).
		Bool("long_lived", grant.LongLived).
		Msg("account connected through oauth")
	return identity, nil
}

func asCallbackError(reason string, err error) error {
	var cbErr *domain.CallbackError
	if errors.As(err, &cbErr) {
		return cbErr
	}
	return &domain.CallbackError{Reason: reason, Err: err}
}
