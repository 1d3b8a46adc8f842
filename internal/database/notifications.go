// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/townsquare/internal/models"
)

// CreateNotification persists a notification and returns the stored record.
func (db *DB) CreateNotification(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	return run(ctx, db, "create_notification", func(ctx context.Context) (*models.Notification, error) {
		var metadata []byte
		if len(in.Metadata) > 0 {
			metadata = in.Metadata
		}

		var n models.Notification
		err := db.pool.QueryRow(ctx, `
INSERT INTO notifications (user_id, actor_id, type, target_type, target_id, message, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, actor_id, type, target_type, target_id, message, metadata,
	is_read, read_at, created_at, updated_at`,
			in.UserID, in.ActorID, in.Type, in.TargetType, in.TargetID, in.Message, metadata,
		).Scan(&n.ID, &n.UserID, &n.ActorID, &n.Type, &n.TargetType, &n.TargetID, &n.Message, &metadata,
			&n.IsRead, &n.ReadAt, &n.CreatedAt, &n.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert notification: %w", err)
		}
		n.Metadata = metadata
		return &n, nil
	})
}

// MarkNotificationsRead marks the given notifications read for userID and
// returns the ids that belong to userID. Ids owned by someone else are
// silently skipped. read_at keeps its first value on repeats.
func (db *DB) MarkNotificationsRead(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return []int64{}, nil
	}
	return run(ctx, db, "mark_notifications_read", func(ctx context.Context) ([]int64, error) {
		rows, err := db.pool.Query(ctx, `
UPDATE notifications
SET is_read = true,
	read_at = COALESCE(read_at, CURRENT_TIMESTAMP),
	updated_at = CURRENT_TIMESTAMP
WHERE id = ANY($1) AND user_id = $2
RETURNING id`, ids, userID)
		if err != nil {
			return nil, fmt.Errorf("mark notifications read: %w", err)
		}
		marked, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return nil, fmt.Errorf("scan notification ids: %w", err)
		}
		return marked, nil
	})
}
