package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rateKit/internal/domain"
)

func (s *Store) AppendSnapshot(ctx context.Context, snap *domain.StatsSnapshot) error {
	if snap == nil {
		return fmt.Errorf("sqlite: snapshot nil")
	}

	const stmt = `
INSERT INTO stats_snapshots (id, account_id, platform, follower_count, avg_likes, avg_comments, avg_views, engagement_rate, post_frequency, captured_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	_, err := s.db.ExecContext(ctx, stmt,
		snap.ID,
		snap.AccountID,
		string(snap.Platform),
		snap.FollowerCount,
		snap.AvgLikes,
		snap.AvgComments,
		snap.AvgViews,
		snap.EngagementRate,
		snap.PostFrequency,
		toNanos(snap.CapturedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns nil, nil for an account without snapshots.
func (s *Store) LatestSnapshot(ctx context.Context, accountID string) (*domain.StatsSnapshot, error) {
	const query = `
SELECT id, account_id, platform, follower_count, avg_likes, avg_comments, avg_views, engagement_rate, post_frequency, captured_at
FROM stats_snapshots
WHERE account_id = ?
ORDER BY captured_at DESC, id DESC
LIMIT 1;
`
	var (
		snap       domain.StatsSnapshot
		platform   string
		capturedAt int64
	)
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(
		&snap.ID,
		&snap.AccountID,
		&platform,
		&snap.FollowerCount,
		&snap.AvgLikes,
		&snap.AvgComments,
		&snap.AvgViews,
		&snap.EngagementRate,
		&snap.PostFrequency,
		&capturedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: latest snapshot: %w", err)
	}

	snap.Platform = domain.Platform(platform)
	snap.CapturedAt = fromNanos(capturedAt)
	return &snap, nil
}

var _ domain.StatsRepository = (*Store)(nil)
