// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TouchLastActive sets users.last_active_at to now.
func (db *DB) TouchLastActive(ctx context.Context, userID int64) error {
	_, err := run(ctx, db, "touch_last_active", func(ctx context.Context) (struct{}, error) {
		_, err := db.pool.Exec(ctx, `UPDATE users SET last_active_at = CURRENT_TIMESTAMP WHERE id = $1`, userID)
		if err != nil {
			return struct{}{}, fmt.Errorf("update last_active_at: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// ListFollowers returns the ids of users with an accepted follow on userID.
func (db *DB) ListFollowers(ctx context.Context, userID int64) ([]int64, error) {
	return run(ctx, db, "list_followers", func(ctx context.Context) ([]int64, error) {
		rows, err := db.pool.Query(ctx, `
SELECT follower_id FROM follows
WHERE following_id = $1 AND status = 'accepted'
ORDER BY follower_id`, userID)
		if err != nil {
			return nil, fmt.Errorf("list followers: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return nil, fmt.Errorf("scan followers: %w", err)
		}
		return ids, nil
	})
}
