// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tomtom215/townsquare/internal/models"
)

const activeParticipantSQL = `
SELECT EXISTS (
	SELECT 1 FROM conversation_participants
	WHERE conversation_id = $1 AND user_id = $2 AND deleted_at IS NULL
)`

// CreateMessage persists a message if the sender is an active participant.
// Otherwise nothing is written and it returns models.ErrNotFound for a
// conversation that does not exist, models.ErrNotParticipant for one that
// does.
func (db *DB) CreateMessage(ctx context.Context, in models.NewMessage) (*models.Message, error) {
	return run(ctx, db, "create_message", func(ctx context.Context) (*models.Message, error) {
		var msg models.Message
		err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			err := tx.QueryRow(ctx, `
INSERT INTO messages (conversation_id, sender_id, message, message_type, media_url)
SELECT $1, $2, $3, $4, $5
WHERE EXISTS (
	SELECT 1 FROM conversation_participants
	WHERE conversation_id = $1 AND user_id = $2 AND deleted_at IS NULL
)
RETURNING id, conversation_id, sender_id, message, message_type, media_url, created_at`,
				in.ConversationID, in.SenderID, in.Body, in.MessageType, in.MediaURL,
			).Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Message, &msg.MessageType, &msg.MediaURL, &msg.CreatedAt)
			if errors.Is(err, pgx.ErrNoRows) {
				return notParticipantOrMissing(ctx, tx, in.ConversationID)
			}
			if err != nil {
				return fmt.Errorf("insert message: %w", err)
			}

			_, err = tx.Exec(ctx,
				`UPDATE conversations SET last_message_at = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
				msg.ConversationID, msg.CreatedAt)
			if err != nil {
				return fmt.Errorf("touch conversation: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &msg, nil
	})
}

// notParticipantOrMissing tells a missing conversation apart from a sender
// who is not in it.
func notParticipantOrMissing(ctx context.Context, tx pgx.Tx, conversationID int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM conversations WHERE id = $1)`, conversationID).Scan(&exists); err != nil {
		return fmt.Errorf("check conversation: %w", err)
	}
	if !exists {
		return models.ErrNotFound
	}
	return models.ErrNotParticipant
}

// IsActiveParticipant reports whether userID is a non-deleted participant
// of conversationID.
func (db *DB) IsActiveParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	return run(ctx, db, "is_participant", func(ctx context.Context) (bool, error) {
		var ok bool
		if err := db.pool.QueryRow(ctx, activeParticipantSQL, conversationID, userID).Scan(&ok); err != nil {
			return false, fmt.Errorf("check participant: %w", err)
		}
		return ok, nil
	})
}

// ListActiveParticipants returns the user ids of all non-deleted participants.
func (db *DB) ListActiveParticipants(ctx context.Context, conversationID int64) ([]int64, error) {
	return run(ctx, db, "list_participants", func(ctx context.Context) ([]int64, error) {
		rows, err := db.pool.Query(ctx, `
SELECT user_id FROM conversation_participants
WHERE conversation_id = $1 AND deleted_at IS NULL
ORDER BY user_id`, conversationID)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return nil, fmt.Errorf("scan participants: %w", err)
		}
		return ids, nil
	})
}

// MarkConversationRead records a read receipt for every message in the
// conversation not sent by userID. Messages already marked are left alone,
// so repeating the call changes nothing. It returns the number of newly
// marked messages.
func (db *DB) MarkConversationRead(ctx context.Context, conversationID, userID int64) (int64, error) {
	return run(ctx, db, "mark_conversation_read", func(ctx context.Context) (int64, error) {
		var marked int64
		err := pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
			var ok bool
			if err := tx.QueryRow(ctx, activeParticipantSQL, conversationID, userID).Scan(&ok); err != nil {
				return fmt.Errorf("check participant: %w", err)
			}
			if !ok {
				return models.ErrNotParticipant
			}

			tag, err := tx.Exec(ctx, `
INSERT INTO message_reads (message_id, user_id)
SELECT id, $2 FROM messages
WHERE conversation_id = $1 AND sender_id <> $2
ON CONFLICT (message_id, user_id) DO NOTHING`, conversationID, userID)
			if err != nil {
				return fmt.Errorf("insert read receipts: %w", err)
			}
			marked = tag.RowsAffected()
			return nil
		})
		return marked, err
	})
}
