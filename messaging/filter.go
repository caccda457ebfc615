// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "encoding/json"

// RoomStateFilter returns an inline /sync filter that delivers only
// state changes of the given event types in roomID, through both the
// state and timeline sections, with presence and account data
// suppressed.
func RoomStateFilter(roomID string, eventTypes ...string) string {
	types := eventTypes
	if types == nil {
		types = []string{}
	}
	top := map[string]any{
		"room": map[string]any{
			"rooms":    []string{roomID},
			"state":    map[string]any{"types": types, "lazy_load_members": true},
			"timeline": map[string]any{"types": types},
			"ephemeral": map[string]any{
				"types": []string{},
			},
			"account_data": map[string]any{"types": []string{}},
		},
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}
	data, _ := json.Marshal(top)
	return string(data)
}
