// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package realtime

import (
	"context"
	"sort"

	"github.com/goccy/go-json"

	"github.com/tomtom215/townsquare/internal/models"
	"github.com/tomtom215/townsquare/internal/validation"
	"github.com/tomtom215/townsquare/internal/websocket"
)

// EmitRequest asks for a raw event to be pushed to a user or a room.
type EmitRequest struct {
	Event string          `json:"event" validate:"required,eventname"`
	Data  json.RawMessage `json:"data"`
}

// Presence reports a user's reachability.
type Presence struct {
	UserID      int64 `json:"userId"`
	Online      bool  `json:"online"`
	Connections int   `json:"connections"`
}

// KindResult is the outcome of a notification kind command.
type KindResult struct {
	Notifications []*models.Notification `json:"notifications"`
	Delivered     int                    `json:"delivered"`
}

// Notification kind request bodies.
type (
	FollowRequest struct {
		FollowerID  int64 `json:"followerId" validate:"required,gt=0"`
		FollowingID int64 `json:"followingId" validate:"required,gt=0"`
	}

	ReactionRequest struct {
		ActorID     int64  `json:"actorId" validate:"required,gt=0"`
		ContentType string `json:"contentType" validate:"required,oneof=post comment story reel"`
		ContentID   int64  `json:"contentId" validate:"required,gt=0"`
		OwnerID     int64  `json:"ownerId" validate:"required,gt=0"`
		Reaction    string `json:"reaction" validate:"required,max=32"`
	}

	CommentRequest struct {
		ActorID int64 `json:"actorId" validate:"required,gt=0"`
		PostID  int64 `json:"postId" validate:"required,gt=0"`
		OwnerID int64 `json:"ownerId" validate:"required,gt=0"`
	}

	MentionRequest struct {
		ActorID     int64 `json:"actorId" validate:"required,gt=0"`
		MentionedID int64 `json:"mentionedId" validate:"required,gt=0"`
		PostID      int64 `json:"postId" validate:"required,gt=0"`
	}

	NewMessageRequest struct {
		SenderID   int64   `json:"senderId" validate:"required,gt=0"`
		MessageID  int64   `json:"messageId" validate:"required,gt=0"`
		Recipients []int64 `json:"recipients" validate:"required,min=1,max=1000,dive,gt=0"`
	}

	NewStoryRequest struct {
		AuthorID int64 `json:"authorId" validate:"required,gt=0"`
		StoryID  int64 `json:"storyId" validate:"required,gt=0"`
	}

	NewConversationRequest struct {
		ActorID        int64   `json:"actorId" validate:"required,gt=0"`
		ConversationID int64   `json:"conversationId" validate:"required,gt=0"`
		Participants   []int64 `json:"participants" validate:"required,min=1,max=1000,dive,gt=0"`
		Group          bool    `json:"group"`
	}
)

type kindHandler func(ctx context.Context, body []byte) (KindResult, error)

// Gateway is the collaborator surface shared by the internal HTTP API and
// the bus consumer, so both ingress paths behave the same.
type Gateway struct {
	hub      *websocket.Hub
	producer *Producer
	kinds    map[string]kindHandler
}

// NewGateway creates a Gateway.
func NewGateway(hub *websocket.Hub, producer *Producer) *Gateway {
	g := &Gateway{hub: hub, producer: producer}
	g.kinds = map[string]kindHandler{
		"follow": decodeKind(func(ctx context.Context, r *FollowRequest) (KindResult, error) {
			return single(producer.NotifyFollow(ctx, r.FollowerID, r.FollowingID))
		}),
		"reaction": decodeKind(func(ctx context.Context, r *ReactionRequest) (KindResult, error) {
			return single(producer.NotifyReaction(ctx, r.ActorID, r.ContentType, r.ContentID, r.OwnerID, r.Reaction))
		}),
		"comment": decodeKind(func(ctx context.Context, r *CommentRequest) (KindResult, error) {
			return single(producer.NotifyComment(ctx, r.ActorID, r.PostID, r.OwnerID))
		}),
		"mention": decodeKind(func(ctx context.Context, r *MentionRequest) (KindResult, error) {
			return single(producer.NotifyMention(ctx, r.ActorID, r.MentionedID, r.PostID))
		}),
		"new_message": decodeKind(func(ctx context.Context, r *NewMessageRequest) (KindResult, error) {
			return many(producer.NotifyNewMessage(ctx, r.SenderID, r.MessageID, r.Recipients))
		}),
		"new_story": decodeKind(func(ctx context.Context, r *NewStoryRequest) (KindResult, error) {
			return many(producer.NotifyNewStory(ctx, r.AuthorID, r.StoryID))
		}),
		"new_conversation": decodeKind(func(ctx context.Context, r *NewConversationRequest) (KindResult, error) {
			return many(producer.NotifyNewConversation(ctx, r.ActorID, r.ConversationID, r.Participants, r.Group))
		}),
		"friend_request": decodeKind(func(ctx context.Context, f *Friendship) (KindResult, error) {
			return single(producer.FriendRequestSent(ctx, *f))
		}),
		"friend_request_accepted": decodeKind(func(ctx context.Context, f *Friendship) (KindResult, error) {
			return single(producer.FriendRequestAccepted(ctx, *f))
		}),
		"friend_request_rejected": decodeKind(func(_ context.Context, f *Friendship) (KindResult, error) {
			return delivered(producer.FriendRequestRejected(*f)), nil
		}),
		"friend_blocked": decodeKind(func(_ context.Context, f *Friendship) (KindResult, error) {
			return delivered(producer.FriendBlocked(*f)), nil
		}),
		"friend_removed": decodeKind(func(_ context.Context, f *Friendship) (KindResult, error) {
			return delivered(producer.FriendRemoved(*f)), nil
		}),
	}
	return g
}

// Kinds returns the supported notification kinds, sorted.
func (g *Gateway) Kinds() []string {
	kinds := make([]string, 0, len(g.kinds))
	for k := range g.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// EmitToUser pushes req to every connection of userID.
func (g *Gateway) EmitToUser(userID int64, req EmitRequest) (int, error) {
	if userID <= 0 {
		return 0, NewError(KindValidation, "userId must be greater than 0", nil)
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return 0, NewError(KindValidation, verr.Error(), verr)
	}
	return g.hub.EmitToUser(userID, req.Event, req.Data), nil
}

// EmitToRoom pushes req to every connection joined to room.
func (g *Gateway) EmitToRoom(room string, req EmitRequest) (int, error) {
	id, err := websocket.ParseRoom(room)
	if err != nil {
		return 0, NewError(KindValidation, "Invalid room", err)
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return 0, NewError(KindValidation, verr.Error(), verr)
	}
	return g.hub.EmitToRoom(id, req.Event, req.Data, nil), nil
}

// Notify persists and delivers a notification.
func (g *Gateway) Notify(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	return g.producer.Notify(ctx, in)
}

// NotifyKind runs the named notification helper with a JSON body.
func (g *Gateway) NotifyKind(ctx context.Context, kind string, body []byte) (KindResult, error) {
	h, ok := g.kinds[kind]
	if !ok {
		return KindResult{}, NewError(KindNotFound, "Unknown notification kind", nil)
	}
	return h(ctx, body)
}

// Presence reports whether userID is connected.
func (g *Gateway) Presence(userID int64) Presence {
	n := len(g.hub.ConnectionsFor(userID))
	return Presence{UserID: userID, Online: n > 0, Connections: n}
}

func decodeKind[R any](fn func(ctx context.Context, r *R) (KindResult, error)) kindHandler {
	return func(ctx context.Context, body []byte) (KindResult, error) {
		r := new(R)
		if err := json.Unmarshal(body, r); err != nil {
			return KindResult{}, NewError(KindValidation, "Invalid request body", err)
		}
		if verr := validation.ValidateStruct(r); verr != nil {
			return KindResult{}, NewError(KindValidation, verr.Error(), verr)
		}
		return fn(ctx, r)
	}
}

func single(n *models.Notification, err error) (KindResult, error) {
	if err != nil {
		return KindResult{}, err
	}
	res := KindResult{Notifications: []*models.Notification{}}
	if n != nil {
		res.Notifications = append(res.Notifications, n)
	}
	return res, nil
}

// many keeps partial results: a fan-out error still reports what was
// created.
func many(ns []*models.Notification, err error) (KindResult, error) {
	if ns == nil {
		ns = []*models.Notification{}
	}
	return KindResult{Notifications: ns}, err
}

func delivered(n int) KindResult {
	return KindResult{Notifications: []*models.Notification{}, Delivered: n}
}
