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

	"github.com/tidwall/gjson"
)

// EventKind identifies which typed payload an Event carries.
type EventKind string

const (
	KindMessage     EventKind = "message"
	KindInvite      EventKind = "invite"
	KindRoomCreate  EventKind = "room_create"
	KindMediaUpload EventKind = "media_upload"
	KindStateChange EventKind = "state_change"
)

// Event types and content values that the rules key off. Room state
// event types come from gomatrixserverlib/spec.
const (
	MRoomMessage     = "m.room.message"
	MRelationReplace = "m.replace"
	MPowerLevelTags  = "in.cinny.room.power_level_tags"
	MsgTypeText      = "m.text"
	MsgTypeNotice    = "m.notice"
	MsgTypeImage     = "m.image"
	MsgTypeVideo     = "m.video"
	MsgTypeAudio     = "m.audio"
	MsgTypeFile      = "m.file"
)

// A Payload is the strongly-typed content of an Event. Exactly one
// implementation exists per EventKind.
type Payload interface {
	Kind() EventKind
	// RawContent returns the content as it travels on the wire.
	RawContent() json.RawMessage
}

// Relation is the m.relates_to block of a message.
type Relation struct {
	RelType string `json:"rel_type"`
	EventID string `json:"event_id,omitempty"`
}

// Message is an m.room.message. Content holds the complete original
// content so that fields the engine does not model survive a rewrite.
type Message struct {
	MsgType  string
	Body     string
	Relation *Relation
	Content  json.RawMessage
}

func (m *Message) Kind() EventKind            { return KindMessage }
func (m *Message) RawContent() json.RawMessage { return m.Content }

// Invite is a request by the event sender to invite Invitee.
type Invite struct {
	Invitee string `json:"invitee"`
}

func (i *Invite) Kind() EventKind { return KindInvite }
func (i *Invite) RawContent() json.RawMessage {
	b, _ := json.Marshal(i)
	return b
}

// RoomCreate is the body of a createRoom request.
type RoomCreate struct {
	IsDirect   bool
	Preset     string
	Visibility string
	Content    json.RawMessage
}

func (r *RoomCreate) Kind() EventKind            { return KindRoomCreate }
func (r *RoomCreate) RawContent() json.RawMessage { return r.Content }

// MediaUpload describes an uploaded file. Either Path or Data is set.
// DeclaredType is what the client claimed and is never trusted.
type MediaUpload struct {
	Path         string `json:"path,omitempty"`
	Data         []byte `json:"data,omitempty"`
	Thumbnail    bool   `json:"thumbnail,omitempty"`
	DeclaredType string `json:"content_type,omitempty"`
	UploadName   string `json:"upload_name,omitempty"`
}

func (m *MediaUpload) Kind() EventKind { return KindMediaUpload }
func (m *MediaUpload) RawContent() json.RawMessage {
	b, _ := json.Marshal(m)
	return b
}

// StateChange is a state event the sender wants to send.
type StateChange struct {
	EventType string          `json:"type"`
	StateKey  string          `json:"state_key"`
	Content   json.RawMessage `json:"content"`
}

func (s *StateChange) Kind() EventKind { return KindStateChange }
func (s *StateChange) RawContent() json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// ParsePayload builds the typed payload for kind from its wire content.
func ParsePayload(kind EventKind, content json.RawMessage) (Payload, error) {
	if len(content) == 0 {
		content = json.RawMessage("{}")
	}
	if !gjson.ValidBytes(content) || !gjson.ParseBytes(content).IsObject() {
		return nil, fmt.Errorf("%s content is not a JSON object", kind)
	}
	switch kind {
	case KindMessage:
		res := gjson.GetManyBytes(content, "msgtype", "body", `m\.relates_to`)
		msg := &Message{
			MsgType: stringOrEmpty(res[0]),
			Body:    stringOrEmpty(res[1]),
			Content: content,
		}
		if res[2].IsObject() {
			msg.Relation = &Relation{
				RelType: res[2].Get("rel_type").String(),
				EventID: res[2].Get("event_id").String(),
			}
		}
		return msg, nil
	case KindInvite:
		var inv Invite
		if err := json.Unmarshal(content, &inv); err != nil {
			return nil, fmt.Errorf("json.Unmarshal invite: %w", err)
		}
		return &inv, nil
	case KindRoomCreate:
		res := gjson.GetManyBytes(content, "is_direct", "preset", "visibility")
		return &RoomCreate{
			IsDirect:   res[0].Type == gjson.True,
			Preset:     stringOrEmpty(res[1]),
			Visibility: stringOrEmpty(res[2]),
			Content:    content,
		}, nil
	case KindMediaUpload:
		var upload MediaUpload
		if err := json.Unmarshal(content, &upload); err != nil {
			return nil, fmt.Errorf("json.Unmarshal media upload: %w", err)
		}
		return &upload, nil
	case KindStateChange:
		var sc StateChange
		if err := json.Unmarshal(content, &sc); err != nil {
			return nil, fmt.Errorf("json.Unmarshal state change: %w", err)
		}
		if sc.EventType == "" {
			return nil, fmt.Errorf("state change is missing a type")
		}
		return &sc, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}

func stringOrEmpty(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}
