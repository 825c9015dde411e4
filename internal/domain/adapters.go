package domain

import "context"

// IdentityFetcher resolves who a credential belongs to. Failures are typed:
// *UpstreamAuthError or *UpstreamUnavailableError.
type IdentityFetcher interface {
	FetchIdentity(ctx context.Context, cred *Credential) (PlatformIdentity, error)
}

// StatsFetcher is best-effort: on any upstream failure it returns zero RawStats.
type StatsFetcher interface {
	FetchRawStats(ctx context.Context, cred *Credential) RawStats
}

// ContentFetcher is best-effort: on any upstream failure it returns no items.
type ContentFetcher interface {
	FetchRawContent(ctx context.Context, cred *Credential, limit int) []RawContentItem
}

// Adapter is the capability set every platform provides.
type Adapter interface {
	Platform() Platform
	IdentityFetcher
	StatsFetcher
	ContentFetcher
}

// OAuthProvider runs the authorization-code flow for platforms that link through
// the engine rather than with an externally obtained token.
type OAuthProvider interface {
	BuildAuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (TokenGrant, error)
	// UpgradeToLongLived never fails: on error it returns the short token with
	// LongLived=false.
	UpgradeToLongLived(ctx context.Context, shortToken string) TokenGrant
}

type TokenRefresher interface {
	Refresh(ctx context.Context, cred *Credential) (TokenGrant, error)
}
