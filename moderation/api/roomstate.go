// Copyright 2024 The Matrix.org Foundation C.I.C.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"encoding/json"

	"github.com/matrix-org/gomatrixserverlib"
)

// StateEntry is a single piece of current room state.
type StateEntry struct {
	Type     string          `json:"type"`
	StateKey string          `json:"state_key"`
	Content  json.RawMessage `json:"content"`
}

// RoomState is a read-only snapshot of the current state of a room,
// keyed by (event type, state key). It is not a log: only the latest
// content for each key is kept.
type RoomState struct {
	RoomID string
	events map[gomatrixserverlib.StateKeyTuple]json.RawMessage
}

// NewRoomState builds a snapshot from the given entries. Later entries
// for the same key replace earlier ones.
func NewRoomState(roomID string, entries ...StateEntry) *RoomState {
	rs := &RoomState{
		RoomID: roomID,
		events: make(map[gomatrixserverlib.StateKeyTuple]json.RawMessage, len(entries)),
	}
	for _, e := range entries {
		rs.events[gomatrixserverlib.StateKeyTuple{EventType: e.Type, StateKey: e.StateKey}] = e.Content
	}
	return rs
}

// Content returns the content of the state event with the given type and
// state key.
func (rs *RoomState) Content(eventType, stateKey string) (json.RawMessage, bool) {
	if rs == nil {
		return nil, false
	}
	c, ok := rs.events[gomatrixserverlib.StateKeyTuple{EventType: eventType, StateKey: stateKey}]
	return c, ok
}

// ForEach calls f for every state event of the given type.
func (rs *RoomState) ForEach(eventType string, f func(stateKey string, content json.RawMessage)) {
	if rs == nil {
		return
	}
	for tuple, content := range rs.events {
		if tuple.EventType == eventType {
			f(tuple.StateKey, content)
		}
	}
}

// Len returns the number of state events in the snapshot.
func (rs *RoomState) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.events)
}

func (rs RoomState) MarshalJSON() ([]byte, error) {
	out := struct {
		RoomID string       `json:"room_id"`
		State  []StateEntry `json:"state"`
	}{RoomID: rs.RoomID, State: make([]StateEntry, 0, len(rs.events))}
	for tuple, content := range rs.events {
		out.State = append(out.State, StateEntry{
			Type:     tuple.EventType,
			StateKey: tuple.StateKey,
			Content:  content,
		})
	}
	return json.Marshal(out)
}

func (rs *RoomState) UnmarshalJSON(data []byte) error {
	var in struct {
		RoomID string       `json:"room_id"`
		State  []StateEntry `json:"state"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*rs = *NewRoomState(in.RoomID, in.State...)
	return nil
}
