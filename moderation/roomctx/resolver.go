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

// Package roomctx derives the facts moderation rules need from a room
// state snapshot: whether the room is a DM, whether it is private, and
// the power level of a user.
package roomctx

import (
	"encoding/json"
	"sort"

	"github.com/matrix-org/gomatrixserverlib"
	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
)

// Facts are the room-level parts of an ActorContext.
type Facts struct {
	IsDirect  bool
	IsPrivate bool
}

// ActorContext is everything a rule may want to know about the sender
// of an event. It lives for a single decision and is never stored.
type ActorContext struct {
	IsAdmin      bool
	PowerLevel   int64
	IsDirectRoom bool
	IsPrivate    bool
}

// Resolve derives the room facts from a state snapshot. Missing state
// resolves to "not direct, not private".
func Resolve(state *api.RoomState) Facts {
	return Facts{
		IsDirect:  IsDirect(state),
		IsPrivate: IsPrivate(state),
	}
}

// IsDirect returns the is_direct flag of the room's create event.
func IsDirect(state *api.RoomState) bool {
	content, ok := state.Content(spec.MRoomCreate, "")
	if !ok {
		return false
	}
	return gjson.GetBytes(content, "is_direct").Type == gjson.True
}

// IsPrivate returns true if joining the room requires an invite.
func IsPrivate(state *api.RoomState) bool {
	content, ok := state.Content(spec.MRoomJoinRules, "")
	if !ok {
		return false
	}
	var jr gomatrixserverlib.JoinRuleContent
	if err := json.Unmarshal(content, &jr); err != nil {
		return false
	}
	return jr.JoinRule == spec.Invite
}

// PowerLevelOf returns the power level of userID: their entry in the
// users table, else users_default, else 0.
func PowerLevelOf(state *api.RoomState, userID string) int64 {
	content, ok := state.Content(spec.MRoomPowerLevels, "")
	if !ok {
		return 0
	}
	var pl gomatrixserverlib.PowerLevelContent
	if err := json.Unmarshal(content, &pl); err != nil {
		logrus.WithError(err).WithField("room_id", state.RoomID).Warn("Malformed power levels in room state")
		return 0
	}
	if level, ok := pl.Users[userID]; ok {
		return level
	}
	return pl.UsersDefault
}

// JoinedMembers returns the sorted user IDs whose membership is join.
func JoinedMembers(state *api.RoomState) []string {
	var joined []string
	state.ForEach(spec.MRoomMember, func(stateKey string, content json.RawMessage) {
		if gjson.GetBytes(content, "membership").Str == spec.Join {
			joined = append(joined, stateKey)
		}
	})
	sort.Strings(joined)
	return joined
}
