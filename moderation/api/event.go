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
	"fmt"
)

// Event is an incoming protocol event as seen by the moderation engine.
// It is treated as immutable once handed to the dispatcher: rewrites
// produce a new Event via WithContent.
type Event struct {
	EventID string
	Sender  string
	RoomID  string
	Payload Payload
	// Extensions holds top-level fields the engine does not understand,
	// preserved verbatim when the event is re-encoded.
	Extensions map[string]json.RawMessage
}

// NewEvent builds an event of the given kind from its wire content.
func NewEvent(kind EventKind, eventID, sender, roomID string, content json.RawMessage) (*Event, error) {
	payload, err := ParsePayload(kind, content)
	if err != nil {
		return nil, err
	}
	return &Event{
		EventID: eventID,
		Sender:  sender,
		RoomID:  roomID,
		Payload: payload,
	}, nil
}

// Kind returns the kind of the payload, or an empty kind if there is none.
func (e *Event) Kind() EventKind {
	if e == nil || e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// Message returns the payload as a message, if it is one.
func (e *Event) Message() (*Message, bool) {
	m, ok := e.Payload.(*Message)
	return m, ok
}

func (e *Event) Invite() (*Invite, bool) {
	i, ok := e.Payload.(*Invite)
	return i, ok
}

func (e *Event) RoomCreate() (*RoomCreate, bool) {
	r, ok := e.Payload.(*RoomCreate)
	return r, ok
}

func (e *Event) MediaUpload() (*MediaUpload, bool) {
	m, ok := e.Payload.(*MediaUpload)
	return m, ok
}

func (e *Event) StateChange() (*StateChange, bool) {
	s, ok := e.Payload.(*StateChange)
	return s, ok
}

// WithContent returns a copy of the event whose payload has been
// re-parsed from content. The receiver is not modified.
func (e *Event) WithContent(content json.RawMessage) (*Event, error) {
	payload, err := ParsePayload(e.Kind(), content)
	if err != nil {
		return nil, err
	}
	ev := *e
	ev.Payload = payload
	return &ev, nil
}

type eventJSON struct {
	Kind    EventKind       `json:"kind"`
	EventID string          `json:"event_id,omitempty"`
	Sender  string          `json:"sender"`
	RoomID  string          `json:"room_id,omitempty"`
	Content json.RawMessage `json:"content"`
}

var knownEventKeys = map[string]struct{}{
	"kind": {}, "event_id": {}, "sender": {}, "room_id": {}, "content": {},
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var ej eventJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return err
	}
	if ej.Kind == "" {
		return fmt.Errorf("event is missing a kind")
	}
	payload, err := ParsePayload(ej.Kind, ej.Content)
	if err != nil {
		return err
	}
	*e = Event{
		EventID: ej.EventID,
		Sender:  ej.Sender,
		RoomID:  ej.RoomID,
		Payload: payload,
	}
	for k, v := range fields {
		if _, ok := knownEventKeys[k]; ok {
			continue
		}
		if e.Extensions == nil {
			e.Extensions = make(map[string]json.RawMessage)
		}
		e.Extensions[k] = v
	}
	return nil
}

func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Extensions)+5)
	for k, v := range e.Extensions {
		out[k] = v
	}
	if e.Payload == nil {
		return nil, fmt.Errorf("event has no payload")
	}
	b, err := json.Marshal(eventJSON{
		Kind:    e.Payload.Kind(),
		EventID: e.EventID,
		Sender:  e.Sender,
		RoomID:  e.RoomID,
		Content: e.Payload.RawContent(),
	})
	if err != nil {
		return nil, err
	}
	var known map[string]json.RawMessage
	if err = json.Unmarshal(b, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		out[k] = v
	}
	return json.Marshal(out)
}
