// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "encoding/json"

// LoginRequest is the body of POST /login with a password.
type LoginRequest struct {
	Type     string `json:"type"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// AuthResponse is returned by /login.
type AuthResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
}

// Event is a Matrix event. Content is left raw for the caller to
// decode into its own type.
type Event struct {
	EventID        string          `json:"event_id"`
	Type           string          `json:"type"`
	Sender         string          `json:"sender"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
	RoomID         string          `json:"room_id,omitempty"`
	StateKey       *string         `json:"state_key,omitempty"`
}

// IsState reports whether the event carries a state key.
func (e Event) IsState() bool {
	return e.StateKey != nil
}

// SyncOptions controls one /sync request.
type SyncOptions struct {
	// Since is the next_batch token of the previous sync. Empty for
	// an initial sync.
	Since string

	// Timeout is the long-poll hold in milliseconds. Sent only when
	// SetTimeout is true, so that zero can be requested explicitly.
	Timeout    int
	SetTimeout bool

	// Filter is a filter id or inline JSON filter.
	Filter string
}

// SyncResponse is the subset of the /sync response the store reads.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection holds per-room sync data keyed by room id.
type RoomsSection struct {
	Join map[string]JoinedRoom `json:"join,omitempty"`
}

// JoinedRoom is the sync data for a joined room. State holds events
// between the previous sync position and the start of the timeline.
type JoinedRoom struct {
	State    StateSection    `json:"state"`
	Timeline TimelineSection `json:"timeline"`
}

type StateSection struct {
	Events []Event `json:"events"`
}

type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

type SendEventResponse struct {
	EventID string `json:"event_id"`
}

type WhoAmIResponse struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
}

type joinResponse struct {
	RoomID string `json:"room_id"`
}
