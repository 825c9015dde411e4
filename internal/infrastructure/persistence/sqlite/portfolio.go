package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"rateKit/internal/domain"
)

// ReplacePortfolio deletes and reinserts the account's items in one
// transaction.
func (s *Store) ReplacePortfolio(ctx context.Context, accountID string, items []domain.PortfolioItem) error {
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM portfolio_items WHERE account_id = ?;`, accountID); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}

		const stmt = `
INSERT INTO portfolio_items (id, account_id, platform, content_url, thumbnail_url, content_type, caption, likes, comments, views, is_sponsored, posted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
		for _, it := range items {
			_, err := tx.ExecContext(ctx, stmt,
				it.ID,
				accountID,
				string(it.Platform),
				it.ContentURL,
				nullString(it.ThumbnailURL),
				string(it.ContentType),
				nullString(it.Caption),
				it.Likes,
				it.Comments,
				it.Views,
				it.IsSponsored,
				toNanos(it.PostedAt),
			)
			if err != nil {
				return fmt.Errorf("insert item %s: %w", it.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlite: replace portfolio: %w", err)
	}
	return nil
}

func (s *Store) ListPortfolio(ctx context.Context, accountID string, limit int) ([]domain.PortfolioItem, error) {
	if limit <= 0 {
		limit = -1
	}
	const query = `
SELECT id, account_id, platform, content_url, thumbnail_url, content_type, caption, likes, comments, views, is_sponsored, posted_at
FROM portfolio_items
WHERE account_id = ?
ORDER BY posted_at DESC, id
LIMIT ?;
`

	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list portfolio: %w", err)
	}
	defer rows.Close()

	var out []domain.PortfolioItem
	for rows.Next() {
		var (
			it                 domain.PortfolioItem
			platform, ctype    string
			thumbnail, caption sql.NullString
			postedAt           int64
		)
		if err := rows.Scan(
			&it.ID,
			&it.AccountID,
			&platform,
			&it.ContentURL,
			&thumbnail,
			&ctype,
			&caption,
			&it.Likes,
			&it.Comments,
			&it.Views,
			&it.IsSponsored,
			&postedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan portfolio item: %w", err)
		}

		it.Platform = domain.Platform(platform)
		it.ContentType = domain.ContentType(ctype)
		it.ThumbnailURL = thumbnail.String
		it.Caption = caption.String
		it.PostedAt = fromNanos(postedAt)
		out = append(out, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list portfolio rows: %w", err)
	}
	return out, nil
}

var _ domain.PortfolioRepository = (*Store)(nil)
