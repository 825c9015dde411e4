package instagraminfra

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"rateKit/internal/domain"
	"rateKit/internal/infrastructure/platform/upstream"
)

const (
	shortLivedTTL = time.Hour
	longLivedTTL  = 60 * 24 * time.Hour
)

var defaultScopes = []string{"instagram_business_basic"}

func (a *Adapter) BuildAuthorizationURL(state string) string {
	scopes := a.cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	q := url.Values{}
	q.Set("client_id", a.cfg.ClientID)
	q.Set("redirect_uri", a.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(scopes, ","))
	q.Set("state", state)

	return a.oauthURL + "/oauth/authorize?" + q.Encode()
}

type codeExchangeResponse struct {
	AccessToken string              `json:"access_token"`
	UserID      upstream.FlexString `json:"user_id"`
}

// ExchangeCode trades an authorization code for a short-lived token. It is not
// retried: a code is single use.
func (a *Adapter) ExchangeCode(ctx context.Context, code string) (domain.TokenGrant, error) {
	form := url.Values{}
	form.Set("client_id", a.cfg.ClientID)
	form.Set("client_secret", a.cfg.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", a.cfg.RedirectURI)
	form.Set("code", code)

	var resp codeExchangeResponse
	if err := a.client.Do(ctx, upstream.Request{
		Op:     "exchange_code",
		Method: http.MethodPost,
		URL:    a.oauthURL + "/oauth/access_token",
		Form:   form,
	}, &resp); err != nil {
		return domain.TokenGrant{}, err
	}
	if resp.AccessToken == "" {
		return domain.TokenGrant{}, a.client.AuthError("exchange_code", "empty access token")
	}

	return domain.TokenGrant{
		AccessToken:    resp.AccessToken,
		ExternalUserID: resp.UserID.String(),
		ExpiresIn:      shortLivedTTL,
	}, nil
}

type longLivedResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *Adapter) UpgradeToLongLived(ctx context.Context, shortToken string) domain.TokenGrant {
	fallback := domain.TokenGrant{AccessToken: shortToken, ExpiresIn: shortLivedTTL}

	var resp longLivedResponse
	err := a.client.Do(ctx, upstream.Request{
		Op:  "upgrade_token",
		URL: a.graphURL + "/access_token",
		Query: url.Values{
			"grant_type":    {"ig_exchange_token"},
			"client_secret": {a.cfg.ClientSecret},
			"access_token":  {shortToken},
		},
	}, &resp)
	if err != nil || resp.AccessToken == "" {
		log.Warn().Str("platform", string(domain.PlatformInstagram)).Err(err).Msg("long-lived upgrade failed, keeping short-lived token")
		return fallback
	}

	return domain.TokenGrant{
		AccessToken: resp.AccessToken,
		ExpiresIn:   expiresIn(resp.ExpiresIn, longLivedTTL),
		LongLived:   true,
	}
}

// Refresh extends a long-lived token by another ~60 days.
func (a *Adapter) Refresh(ctx context.Context, cred *domain.Credential) (domain.TokenGrant, error) {
	var resp longLivedResponse
	if err := a.client.Do(ctx, upstream.Request{
		Op:  "refresh_token",
		URL: a.graphURL + "/refresh_access_token",
		Query: url.Values{
			"grant_type":   {"ig_refresh_token"},
			"access_token": {cred.AccessToken},
		},
	}, &resp); err != nil {
		return domain.TokenGrant{}, err
	}
	if resp.AccessToken == "" {
		return domain.TokenGrant{}, a.client.AuthError("refresh_token", "empty access token")
	}

	return domain.TokenGrant{
		AccessToken: resp.AccessToken,
		ExpiresIn:   expiresIn(resp.ExpiresIn, longLivedTTL),
		LongLived:   true,
	}, nil
}
