// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/metrics"
	"github.com/tomtom215/townsquare/internal/models"
	"github.com/tomtom215/townsquare/internal/validation"
	"github.com/tomtom215/townsquare/internal/websocket"
)

// Notification types.
const (
	TypeFollowRequest         = "follow_request"
	TypePostComment           = "post_comment"
	TypeMention               = "mention"
	TypeNewMessage            = "new_message"
	TypeNewStory              = "new_story"
	TypeNewConversation       = "new_conversation"
	TypeFriendRequest         = "friend_request"
	TypeFriendRequestAccepted = "friend_request_accepted"
)

// ReactionType returns the notification type for a reaction on contentType.
func ReactionType(contentType string) string {
	return contentType + "_reaction"
}

// NotificationDeps is what the producer needs from the store.
type NotificationDeps interface {
	NotificationStore
	ListFollowers(ctx context.Context, userID int64) ([]int64, error)
}

// Producer persists notifications and pushes them to the recipient's
// personal room. The record is always written, whether or not the recipient
// is online.
type Producer struct {
	store   NotificationDeps
	emitter Emitter
}

// NewProducer creates a Producer.
func NewProducer(store NotificationDeps, emitter Emitter) *Producer {
	return &Producer{store: store, emitter: emitter}
}

// Notify persists in and emits new_notification to the recipient.
func (p *Producer) Notify(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	if verr := validation.ValidateStruct(&in); verr != nil {
		return nil, NewError(KindValidation, verr.Error(), verr)
	}

	n, err := p.store.CreateNotification(ctx, in)
	if err != nil {
		return nil, storeError(err, "Failed to create notification")
	}
	metrics.NotificationsCreated.WithLabelValues(n.Type).Inc()

	delivered := p.emitter.EmitToUser(n.UserID, websocket.EventNewNotification, n)
	logging.Ctx(ctx).Debug().
		Int64("notification_id", n.ID).
		Int64("user_id", n.UserID).
		Str("type", n.Type).
		Int("delivered", delivered).
		Msg("notification created")
	return n, nil
}

// NotifyFollow tells followingID that followerID started following them.
func (p *Producer) NotifyFollow(ctx context.Context, followerID, followingID int64) (*models.Notification, error) {
	return p.Notify(ctx, models.NewNotification{
		UserID:  followingID,
		ActorID: models.Int64Ptr(followerID),
		Type:    TypeFollowRequest,
		Message: "started following you",
	})
}

// NotifyReaction tells ownerID about a reaction on their content. Reacting
// to one's own content produces nothing and returns (nil, nil).
func (p *Producer) NotifyReaction(ctx context.Context, actorID int64, contentType string, contentID, ownerID int64, reaction string) (*models.Notification, error) {
	if actorID == ownerID {
		return nil, nil
	}
	metadata, err := json.Marshal(map[string]string{"reaction": reaction})
	if err != nil {
		return nil, NewError(KindInternal, "Failed to encode metadata", err)
	}
	return p.Notify(ctx, models.NewNotification{
		UserID:     ownerID,
		ActorID:    models.Int64Ptr(actorID),
		Type:       ReactionType(contentType),
		TargetType: models.StringPtr(contentType),
		TargetID:   models.Int64Ptr(contentID),
		Message:    fmt.Sprintf("reacted with %s to your %s", reaction, contentType),
		Metadata:   metadata,
	})
}

// NotifyComment tells ownerID that actorID commented on postID.
func (p *Producer) NotifyComment(ctx context.Context, actorID, postID, ownerID int64) (*models.Notification, error) {
	return p.Notify(ctx, models.NewNotification{
		UserID:     ownerID,
		ActorID:    models.Int64Ptr(actorID),
		Type:       TypePostComment,
		TargetType: models.StringPtr("post"),
		TargetID:   models.Int64Ptr(postID),
		Message:    "commented on your post",
	})
}

// NotifyMention tells mentionedID they were mentioned in postID.
func (p *Producer) NotifyMention(ctx context.Context, actorID, mentionedID, postID int64) (*models.Notification, error) {
	return p.Notify(ctx, models.NewNotification{
		UserID:     mentionedID,
		ActorID:    models.Int64Ptr(actorID),
		Type:       TypeMention,
		TargetType: models.StringPtr("post"),
		TargetID:   models.Int64Ptr(postID),
		Message:    "mentioned you in a post",
	})
}

// NotifyNewMessage notifies every recipient other than the sender about
// message. Each recipient is attempted; failures are joined.
func (p *Producer) NotifyNewMessage(ctx context.Context, senderID, messageID int64, recipients []int64) ([]*models.Notification, error) {
	return p.fanOut(ctx, recipients, senderID, func(userID int64) models.NewNotification {
		return models.NewNotification{
			UserID:     userID,
			ActorID:    models.Int64Ptr(senderID),
			Type:       TypeNewMessage,
			TargetType: models.StringPtr("message"),
			TargetID:   models.Int64Ptr(messageID),
			Message:    "sent you a message",
		}
	})
}

// NotifyNewStory notifies the author's accepted followers about a story.
func (p *Producer) NotifyNewStory(ctx context.Context, authorID, storyID int64) ([]*models.Notification, error) {
	followers, err := p.store.ListFollowers(ctx, authorID)
	if err != nil {
		return nil, storeError(err, "Failed to load followers")
	}
	return p.fanOut(ctx, followers, authorID, func(userID int64) models.NewNotification {
		return models.NewNotification{
			UserID:     userID,
			ActorID:    models.Int64Ptr(authorID),
			Type:       TypeNewStory,
			TargetType: models.StringPtr("story"),
			TargetID:   models.Int64Ptr(storyID),
			Message:    "added a new story",
		}
	})
}

// NotifyNewConversation notifies participants they were added to a
// conversation by actorID.
func (p *Producer) NotifyNewConversation(ctx context.Context, actorID, conversationID int64, participants []int64, group bool) ([]*models.Notification, error) {
	message := "started a conversation with you"
	if group {
		message = "added you to a group"
	}
	return p.fanOut(ctx, participants, actorID, func(userID int64) models.NewNotification {
		return models.NewNotification{
			UserID:     userID,
			ActorID:    models.Int64Ptr(actorID),
			Type:       TypeNewConversation,
			TargetType: models.StringPtr("conversation"),
			TargetID:   models.Int64Ptr(conversationID),
			Message:    message,
		}
	})
}

// fanOut notifies each recipient except skip. One failure does not stop the
// others.
func (p *Producer) fanOut(ctx context.Context, recipients []int64, skip int64, build func(userID int64) models.NewNotification) ([]*models.Notification, error) {
	created := make([]*models.Notification, 0, len(recipients))
	var errs []error
	seen := make(map[int64]struct{}, len(recipients))
	for _, userID := range recipients {
		if userID == skip {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		n, err := p.Notify(ctx, build(userID))
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("notification delivery failed")
			errs = append(errs, err)
			continue
		}
		created = append(created, n)
	}
	return created, errors.Join(errs...)
}

// Friendship is a friend-request lifecycle change. ActorID performed the
// action; RecipientID is told about it.
type Friendship struct {
	ID          int64      `json:"id" validate:"required,gt=0"`
	ActorID     int64      `json:"actorId" validate:"required,gt=0"`
	RecipientID int64      `json:"recipientId" validate:"required,gt=0"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

// FriendRequestPayload is emitted with friend_request and
// friend_request_accepted.
type FriendRequestPayload struct {
	ID        int64      `json:"id"`
	SenderID  int64      `json:"sender_id,omitempty"`
	UserID    int64      `json:"user_id,omitempty"`
	Status    string     `json:"status"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// FriendStatusPayload is emitted with friend_request_rejected,
// friend_blocked and friend_removed.
type FriendStatusPayload struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id,omitempty"`
	Status    string `json:"status,omitempty"`
	RemovedBy int64  `json:"removed_by,omitempty"`
}

// FriendRequestSent persists a friend_request notification for the
// receiver and emits friend_request.
func (p *Producer) FriendRequestSent(ctx context.Context, f Friendship) (*models.Notification, error) {
	n, err := p.Notify(ctx, models.NewNotification{
		UserID:     f.RecipientID,
		ActorID:    models.Int64Ptr(f.ActorID),
		Type:       TypeFriendRequest,
		TargetType: models.StringPtr("friend_request"),
		TargetID:   models.Int64Ptr(f.ID),
		Message:    "sent you a friend request",
	})
	if err != nil {
		return nil, err
	}
	p.emitter.EmitToUser(f.RecipientID, websocket.EventFriendRequest, FriendRequestPayload{
		ID:        f.ID,
		SenderID:  f.ActorID,
		Status:    "pending",
		CreatedAt: f.CreatedAt,
	})
	return n, nil
}

// FriendRequestAccepted persists a friend_request_accepted notification for
// the original sender and emits friend_request_accepted.
func (p *Producer) FriendRequestAccepted(ctx context.Context, f Friendship) (*models.Notification, error) {
	n, err := p.Notify(ctx, models.NewNotification{
		UserID:     f.RecipientID,
		ActorID:    models.Int64Ptr(f.ActorID),
		Type:       TypeFriendRequestAccepted,
		TargetType: models.StringPtr("friend"),
		TargetID:   models.Int64Ptr(f.ID),
		Message:    "accepted your friend request",
	})
	if err != nil {
		return nil, err
	}
	p.emitter.EmitToUser(f.RecipientID, websocket.EventFriendRequestAccepted, FriendRequestPayload{
		ID:        f.ID,
		UserID:    f.ActorID,
		Status:    "accepted",
		CreatedAt: f.CreatedAt,
	})
	return n, nil
}

// FriendRequestRejected emits friend_request_rejected. No notification is
// stored.
func (p *Producer) FriendRequestRejected(f Friendship) int {
	return p.emitter.EmitToUser(f.RecipientID, websocket.EventFriendRequestRejected, FriendStatusPayload{
		ID:     f.ID,
		UserID: f.ActorID,
		Status: "rejected",
	})
}

// FriendBlocked emits friend_blocked to the blocked user.
func (p *Producer) FriendBlocked(f Friendship) int {
	return p.emitter.EmitToUser(f.RecipientID, websocket.EventFriendBlocked, FriendStatusPayload{
		ID:     f.ID,
		Status: "blocked",
	})
}

// FriendRemoved emits friend_removed to the other side of the friendship.
func (p *Producer) FriendRemoved(f Friendship) int {
	return p.emitter.EmitToUser(f.RecipientID, websocket.EventFriendRemoved, FriendStatusPayload{
		ID:        f.ID,
		RemovedBy: f.ActorID,
	})
}
