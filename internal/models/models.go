// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

// Package models defines the persisted records read and written by the
// realtime layer and the inputs accepted from write-path collaborators.
package models

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

var (
	// ErrNotParticipant is returned when the user is not an active
	// participant of the conversation.
	ErrNotParticipant = errors.New("not a participant of the conversation")

	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")
)

// Message types accepted on send.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
	MessageTypeFile  = "file"
)

// Message is a persisted conversation message. It is never mutated after
// insert.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Message        string    `json:"message"`
	MessageType    string    `json:"message_type"`
	MediaURL       *string   `json:"media_url"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessage is the input for persisting a message.
type NewMessage struct {
	ConversationID int64
	SenderID       int64
	Body           string
	MessageType    string
	MediaURL       *string
}

// Notification is a persisted notification record.
type Notification struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	ActorID    *int64          `json:"actor_id"`
	Type       string          `json:"type"`
	TargetType *string         `json:"target_type"`
	TargetID   *int64          `json:"target_id"`
	Message    string          `json:"message"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	IsRead     bool            `json:"is_read"`
	ReadAt     *time.Time      `json:"read_at"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// NewNotification is the input for persisting a notification.
type NewNotification struct {
	UserID     int64           `json:"userId" validate:"required,gt=0"`
	ActorID    *int64          `json:"actorId,omitempty" validate:"omitempty,gt=0"`
	Type       string          `json:"type" validate:"required,max=64"`
	TargetType *string         `json:"targetType,omitempty" validate:"omitempty,max=64"`
	TargetID   *int64          `json:"targetId,omitempty" validate:"omitempty,gt=0"`
	Message    string          `json:"message" validate:"required,max=500"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }

// StringPtr returns a pointer to v.
func StringPtr(v string) *string { return &v }
