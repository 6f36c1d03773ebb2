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

package test

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
)

var eventIDCounter = int64(0)

// NewEvent builds an event of the given kind sent by u into roomID. The
// content is marshalled to JSON unless it already is a json.RawMessage.
func NewEvent(t *testing.T, kind api.EventKind, u *User, roomID string, content interface{}) *api.Event {
	t.Helper()
	raw, ok := content.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(content)
		if err != nil {
			t.Fatalf("NewEvent: failed to marshal content: %s", err)
		}
		raw = b
	}
	counter := atomic.AddInt64(&eventIDCounter, 1)
	ev, err := api.NewEvent(kind, fmt.Sprintf("$%d:%s", counter, ServerName), u.ID, roomID, raw)
	if err != nil {
		t.Fatalf("NewEvent: %s", err)
	}
	return ev
}

// NewTextMessage builds an m.text message event.
func NewTextMessage(t *testing.T, u *User, roomID, body string) *api.Event {
	t.Helper()
	return NewEvent(t, api.KindMessage, u, roomID, map[string]interface{}{
		"msgtype": api.MsgTypeText,
		"body":    body,
	})
}

// NewEditMessage builds an m.replace edit of eventID.
func NewEditMessage(t *testing.T, u *User, roomID, eventID, body string) *api.Event {
	t.Helper()
	return NewEvent(t, api.KindMessage, u, roomID, map[string]interface{}{
		"msgtype": api.MsgTypeText,
		"body":    "* " + body,
		"m.new_content": map[string]interface{}{
			"msgtype": api.MsgTypeText,
			"body":    body,
		},
		"m.relates_to": map[string]interface{}{
			"rel_type": api.MRelationReplace,
			"event_id": eventID,
		},
	})
}

// NewInvite builds an invite of invitee into roomID by u.
func NewInvite(t *testing.T, u *User, roomID string, invitee *User) *api.Event {
	t.Helper()
	return NewEvent(t, api.KindInvite, u, roomID, api.Invite{Invitee: invitee.ID})
}

// NewStateChange builds a request by u to send a state event.
func NewStateChange(t *testing.T, u *User, roomID, eventType, stateKey string, content interface{}) *api.Event {
	t.Helper()
	b, err := json.Marshal(content)
	if err != nil {
		t.Fatalf("NewStateChange: failed to marshal content: %s", err)
	}
	return NewEvent(t, api.KindStateChange, u, roomID, api.StateChange{
		EventType: eventType,
		StateKey:  stateKey,
		Content:   b,
	})
}
