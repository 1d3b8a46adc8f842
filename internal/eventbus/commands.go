// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package eventbus

import (
	"github.com/goccy/go-json"
)

// Subject suffixes appended to the configured prefix.
const (
	SubjectEmitUser = "emit.user"
	SubjectEmitRoom = "emit.room"
	SubjectNotify   = "notify"
)

// EmitUserCommand pushes an event to every connection of a user.
type EmitUserCommand struct {
	UserID int64           `json:"userId"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// EmitRoomCommand pushes an event to every connection joined to a room.
type EmitRoomCommand struct {
	Room  string          `json:"room"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NotifyCommand runs a notification kind, or creates a plain notification
// from Data when Kind is empty.
type NotifyCommand struct {
	Kind string          `json:"kind,omitempty"`
	Data json.RawMessage `json:"data"`
}

// Subject joins prefix and suffix.
func Subject(prefix, suffix string) string {
	if prefix == "" {
		return suffix
	}
	return prefix + "." + suffix
}
