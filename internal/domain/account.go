package domain

import (
	"context"
	"time"
)

// PlatformIdentity is what a platform says about the linked account.
type PlatformIdentity struct {
	Platform          Platform `json:"platform"`
	ExternalAccountID string   `json:"external_account_id"`
	DisplayName       string   `json:"display_name"`
}

type LinkedAccount struct {
	ID        string
	UserID    string
	Platform  Platform
	Identity  PlatformIdentity
	LinkedAt  time.Time
	UpdatedAt time.Time
}

type AccountRepository interface {
	// UpsertAccount links (or re-links) the identity for (userID, identity.Platform)
	// and returns the stored account. The account ID is stable across re-links.
	UpsertAccount(ctx context.Context, userID string, identity PlatformIdentity) (*LinkedAccount, error)
	// GetAccount returns nil, nil when the platform is not linked.
	GetAccount(ctx context.Context, userID string, platform Platform) (*LinkedAccount, error)
	ListAccounts(ctx context.Context, userID string) ([]*LinkedAccount, error)
}
