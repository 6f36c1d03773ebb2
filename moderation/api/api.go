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
	"context"
	"encoding/json"
)

// ModerationInternalAPI is the inbound surface of the moderation engine.
type ModerationInternalAPI interface {
	// Decide evaluates an event against every rule subscribed to its kind.
	Decide(ctx context.Context, req *DecideRequest, res *DecideResponse) error
	// DecideRoomCreate evaluates a createRoom request where the host has
	// already established whether the requester is an admin.
	DecideRoomCreate(ctx context.Context, req *DecideRoomCreateRequest, res *DecideRoomCreateResponse) error
}

type DecideRequest struct {
	Event *Event `json:"event"`
	// RoomState is an optional snapshot supplied by the host. If nil the
	// engine fetches state itself when a rule needs it.
	RoomState *RoomState `json:"room_state,omitempty"`
}

type DecideResponse struct {
	DecisionID string   `json:"decision_id"`
	Decision   Decision `json:"decision"`
	// Event is the event to deliver: the original, or the rewritten event
	// if Decision is a rewrite. Nil when blocked.
	Event *Event `json:"event,omitempty"`
}

type DecideRoomCreateRequest struct {
	Sender  string          `json:"sender"`
	Request json.RawMessage `json:"request"`
	IsAdmin bool            `json:"is_admin"`
}

type DecideRoomCreateResponse struct {
	Decision Decision `json:"decision"`
}

// AdminAPI reports whether a user is a server administrator.
type AdminAPI interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RoomStateAPI fetches the current state of a room.
type RoomStateAPI interface {
	QueryRoomState(ctx context.Context, roomID string) (*RoomState, error)
}

// MIMESniffer determines the real MIME type of an upload from its content.
type MIMESniffer interface {
	SniffMIMEType(ctx context.Context, upload *MediaUpload) (string, error)
}

// RoomMutationAPI applies changes to a room on behalf of the engine.
type RoomMutationAPI interface {
	SubmitStateChange(ctx context.Context, roomID, eventType, stateKey string, content interface{}) (string, error)
	PublishRoom(ctx context.Context, roomID string) error
	// SubmitNotice is best-effort; callers log and ignore errors.
	SubmitNotice(ctx context.Context, roomID, text string) error
}
