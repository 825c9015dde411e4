package domain

import (
	"context"
	"fmt"
	"time"
)

type TokenKind string

const (
	TokenKindShortLived TokenKind = "short_lived"
	TokenKindLongLived  TokenKind = "long_lived"
)

// TokenState is the lifecycle position of a linked account's credential.
type TokenState int

const (
	TokenUnlinked TokenState = iota
	TokenLinking
	TokenLinked
	TokenLongLived
	TokenExpired
)

func (s TokenState) String() string {
	switch s {
	case TokenUnlinked:
		return "unlinked"
	case TokenLinking:
		return "linking"
	case TokenLinked:
		return "linked"
	case TokenLongLived:
		return "long_lived"
	case TokenExpired:
		return "expired"
	default:
		return fmt.Sprintf("token_state(%d)", int(s))
	}
}

var tokenTransitions = map[TokenState][]TokenState{
	TokenUnlinked:  {TokenLinking, TokenLinked, TokenLongLived},
	TokenLinking:   {TokenLinked, TokenLongLived, TokenUnlinked},
	TokenLinked:    {TokenLongLived, TokenExpired, TokenLinked},
	TokenLongLived: {TokenLongLived, TokenExpired},
	TokenExpired:   {TokenLinked, TokenLongLived},
}

// CanTransition reports whether a credential may move from one state to another.
// Re-linking from any state goes through TokenUnlinked.
func CanTransition(from, to TokenState) bool {
	if to == TokenUnlinked {
		return true
	}
	for _, next := range tokenTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Credential is owned by one linked account. It has no JSON tags on purpose:
// tokens never leave the engine.
type Credential struct {
	AccountID    string
	Platform     Platform
	AccessToken  string
	RefreshToken string
	Kind         TokenKind
	ExpiresAt    time.Time
	ObtainedAt   time.Time
	UpdatedAt    time.Time
}

// State derives the lifecycle state at now. A zero ExpiresAt never expires.
func (c *Credential) State(now time.Time) TokenState {
	if c == nil || c.AccessToken == "" {
		return TokenUnlinked
	}
	if c.Expired(now) {
		return TokenExpired
	}
	if c.Kind == TokenKindLongLived {
		return TokenLongLived
	}
	return TokenLinked
}

func (c *Credential) Expired(now time.Time) bool {
	return c != nil && !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

func (c *Credential) String() string {
	if c == nil {
		return "credential(nil)"
	}
	return fmt.Sprintf("credential(%s/%s kind=%s expires=%s)", c.Platform, c.AccountID, c.Kind, c.ExpiresAt.Format(time.RFC3339))
}

// TokenGrant is a token as returned by an upstream token endpoint.
type TokenGrant struct {
	AccessToken    string
	RefreshToken   string
	ExternalUserID string
	ExpiresIn      time.Duration
	// ExpiresAt, when set, is an absolute expiry and wins over ExpiresIn.
	ExpiresAt time.Time
	LongLived bool
}

// ExpiryFrom resolves the grant's expiry relative to obtainedAt. A zero result
// means the token does not expire.
func (g TokenGrant) ExpiryFrom(obtainedAt time.Time) time.Time {
	if !g.ExpiresAt.IsZero() {
		return g.ExpiresAt
	}
	if g.ExpiresIn <= 0 {
		return time.Time{}
	}
	return obtainedAt.Add(g.ExpiresIn)
}

type CredentialRepository interface {
	// GetCredential returns nil, nil when none is stored.
	GetCredential(ctx context.Context, accountID string) (*Credential, error)
	// SaveCredential is last-writer-wins on ObtainedAt: a credential older than the
	// stored one is not written and ErrStaleCredential is returned.
	SaveCredential(ctx context.Context, cred *Credential) error
	ListCredentials(ctx context.Context) ([]*Credential, error)
}
