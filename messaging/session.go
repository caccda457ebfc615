// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Session is an authenticated Matrix session, safe for concurrent use.
type Session struct {
	client      *Client
	accessToken string
	userID      string
}

// UserID returns the fully-qualified user id, e.g. "@alice:example.org".
func (s *Session) UserID() string {
	return s.userID
}

// CloseIdleConnections closes idle connections in the client's
// transport.
func (s *Session) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

func (s *Session) call(ctx context.Context, request call, result any) error {
	request.token = s.accessToken
	return s.client.call(ctx, request, result)
}

// WhoAmI validates the access token and returns the user id it
// belongs to.
func (s *Session) WhoAmI(ctx context.Context) (string, error) {
	var response WhoAmIResponse
	if err := s.call(ctx, call{method: http.MethodGet, path: "/account/whoami"}, &response); err != nil {
		return "", fmt.Errorf("messaging: whoami: %w", err)
	}
	return response.UserID, nil
}

// JoinRoom joins a room id or alias and returns the room id. Joining
// a room the user is already in succeeds.
func (s *Session) JoinRoom(ctx context.Context, room string) (string, error) {
	var response joinResponse
	err := s.call(ctx, call{
		method: http.MethodPost,
		path:   "/join/" + url.PathEscape(room),
		body:   struct{}{},
	}, &response)
	if err != nil {
		return "", fmt.Errorf("messaging: join %q: %w", room, err)
	}
	return response.RoomID, nil
}

// SendStateEvent sets the state event (eventType, stateKey) in roomID
// and returns the event id.
func (s *Session) SendStateEvent(ctx context.Context, roomID, eventType, stateKey string, content any) (string, error) {
	var response SendEventResponse
	err := s.call(ctx, call{
		method: http.MethodPut,
		path:   statePath(roomID) + "/" + url.PathEscape(eventType) + "/" + url.PathEscape(stateKey),
		body:   content,
	}, &response)
	if err != nil {
		return "", fmt.Errorf("messaging: set %s/%s in %q: %w", eventType, stateKey, roomID, err)
	}
	return response.EventID, nil
}

// GetRoomState fetches every current state event in roomID.
func (s *Session) GetRoomState(ctx context.Context, roomID string) ([]Event, error) {
	var events []Event
	if err := s.call(ctx, call{method: http.MethodGet, path: statePath(roomID)}, &events); err != nil {
		return nil, fmt.Errorf("messaging: room state of %q: %w", roomID, err)
	}
	return events, nil
}

// Sync performs one /sync request.
func (s *Session) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}
	var response SyncResponse
	if err := s.call(ctx, call{method: http.MethodGet, path: "/sync", query: query}, &response); err != nil {
		return nil, fmt.Errorf("messaging: sync: %w", err)
	}
	return &response, nil
}

func statePath(roomID string) string {
	return "/rooms/" + url.PathEscape(roomID) + "/state"
}
