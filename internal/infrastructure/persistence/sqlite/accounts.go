package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"rateKit/internal/domain"
)

const accountColumns = `id, user_id, platform, external_account_id, display_name, linked_at, updated_at`

// UpsertAccount keeps the account id and linked_at of an existing
// (user, platform) row and refreshes its identity.
func (s *Store) UpsertAccount(ctx context.Context, userID string, identity domain.PlatformIdentity) (*domain.LinkedAccount, error) {
	if userID == "" {
		return nil, fmt.Errorf("sqlite: upsert account: empty user id")
	}

	now := s.now().UTC()
	const stmt = `
INSERT INTO accounts (id, user_id, platform, external_account_id, display_name, linked_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, platform) DO UPDATE SET
	external_account_id=excluded.external_account_id,
	display_name=excluded.display_name,
	updated_at=excluded.updated_at;
`
	_, err := s.db.ExecContext(ctx, stmt,
		uuid.NewString(),
		userID,
		string(identity.Platform),
		identity.ExternalAccountID,
		nullString(identity.DisplayName),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upsert account: %w", err)
	}

	acc, err := s.GetAccount(ctx, userID, identity.Platform)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, fmt.Errorf("sqlite: upsert account: row missing after write")
	}
	return acc, nil
}

func (s *Store) GetAccount(ctx context.Context, userID string, platform domain.Platform) (*domain.LinkedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = ? AND platform = ? LIMIT 1;`

	acc, err := scanAccount(s.db.QueryRowContext(ctx, query, userID, string(platform)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: get account: %w", err)
	}
	return acc, nil
}

// ListAccounts returns the user's accounts in canonical platform order.
func (s *Store) ListAccounts(ctx context.Context, userID string) ([]*domain.LinkedAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = ?;`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list accounts: %w", err)
	}
	defer rows.Close()

	byPlatform := make(map[domain.Platform]*domain.LinkedAccount)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan account: %w", err)
		}
		byPlatform[acc.Platform] = acc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list accounts rows: %w", err)
	}

	var out []*domain.LinkedAccount
	for _, p := range domain.AllPlatforms {
		if acc, ok := byPlatform[p]; ok {
			out = append(out, acc)
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.LinkedAccount, error) {
	var (
		acc         domain.LinkedAccount
		platform    string
		displayName sql.NullString
		linkedAt    sql.NullTime
		updatedAt   sql.NullTime
	)
	if err := row.Scan(&acc.ID, &acc.UserID, &platform, &acc.Identity.ExternalAccountID, &displayName, &linkedAt, &updatedAt); err != nil {
		return nil, err
	}

	acc.Platform = domain.Platform(platform)
	acc.Identity.Platform = acc.Platform
	acc.Identity.DisplayName = displayName.String
	acc.LinkedAt = linkedAt.Time.UTC()
	acc.UpdatedAt = updatedAt.Time.UTC()
	return &acc, nil
}

var _ domain.AccountRepository = (*Store)(nil)
