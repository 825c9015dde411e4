package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rateKit/internal/domain"
)

const credentialColumns = `account_id, platform, access_token, refresh_token, kind, expires_at, obtained_at, updated_at`

func (s *Store) GetCredential(ctx context.Context, accountID string) (*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE account_id = ? LIMIT 1;`

	cred, err := scanCredential(s.db.QueryRowContext(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: get credential: %w", err)
	}
	return cred, nil
}

// SaveCredential only overwrites a stored credential obtained at or before
// cred.ObtainedAt.
func (s *Store) SaveCredential(ctx context.Context, cred *domain.Credential) error {
	if cred == nil {
		return fmt.Errorf("sqlite: credential nil")
	}

	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = s.now().UTC()
	}

	const stmt = `
INSERT INTO credentials (account_id, platform, access_token, refresh_token, kind, expires_at, obtained_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(account_id) DO UPDATE SET
	platform=excluded.platform,
	access_token=excluded.access_token,
	refresh_token=excluded.refresh_token,
	kind=excluded.kind,
	expires_at=excluded.expires_at,
	obtained_at=excluded.obtained_at,
	updated_at=excluded.updated_at
WHERE excluded.obtained_at >= credentials.obtained_at;
`

	res, err := s.db.ExecContext(
		ctx,
		stmt,
		cred.AccountID,
		string(cred.Platform),
		cred.AccessToken,
		nullString(cred.RefreshToken),
		string(cred.Kind),
		nullTime(cred.ExpiresAt),
		toNanos(cred.ObtainedAt),
		cred.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save credential: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: save credential: %w", err)
	}
	if n == 0 {
		return domain.ErrStaleCredential
	}
	return nil
}

func (s *Store) ListCredentials(ctx context.Context) ([]*domain.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials ORDER BY account_id;`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list credentials: %w", err)
	}
	defer rows.Close()

	var out []*domain.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan credential: %w", err)
		}
		out = append(out, cred)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list rows error: %w", err)
	}

	return out, nil
}

func scanCredential(row rowScanner) (*domain.Credential, error) {
	var (
		cred         domain.Credential
		platform     string
		kind         string
		refreshToken sql.NullString
		expiresAt    sql.NullTime
		obtainedAt   int64
		updatedAt    sql.NullTime
	)
	if err := row.Scan(&cred.AccountID, &platform, &cred.AccessToken, &refreshToken, &kind, &expiresAt, &obtainedAt, &updatedAt); err != nil {
		return nil, err
	}

	cred.Platform = domain.Platform(platform)
	cred.Kind = domain.TokenKind(kind)
	cred.RefreshToken = refreshToken.String
	if expiresAt.Valid {
		cred.ExpiresAt = expiresAt.Time.UTC()
	}
	cred.ObtainedAt = fromNanos(obtainedAt)
	cred.UpdatedAt = updatedAt.Time.UTC()
	return &cred, nil
}

var _ domain.CredentialRepository = (*Store)(nil)
