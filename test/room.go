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

	"github.com/matrix-org/gomatrixserverlib"
	"github.com/matrix-org/gomatrixserverlib/spec"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
)

type Preset int

var (
	PresetNone        Preset = 0
	PresetPrivateChat Preset = 1
	PresetPublicChat  Preset = 2
	PresetDirect      Preset = 3

	roomIDCounter = int64(0)
)

// Room accumulates state for a test room and produces api.RoomState
// snapshots from it.
type Room struct {
	ID      string
	creator *User
	preset  Preset
	entries []api.StateEntry
}

type roomModifier func(t *testing.T, r *Room)

func RoomPreset(p Preset) roomModifier {
	return func(t *testing.T, r *Room) {
		r.preset = p
	}
}

// NewRoom creates a test room with create, join rules and power level
// state according to its preset, with the creator joined.
func NewRoom(t *testing.T, creator *User, modifiers ...roomModifier) *Room {
	t.Helper()
	counter := atomic.AddInt64(&roomIDCounter, 1)
	r := &Room{
		ID:      fmt.Sprintf("!%d:%s", counter, ServerName),
		creator: creator,
		preset:  PresetPublicChat,
	}
	for _, m := range modifiers {
		m(t, r)
	}
	r.insertCreateEvents(t)
	return r
}

func (r *Room) insertCreateEvents(t *testing.T) {
	t.Helper()
	createContent := map[string]interface{}{"creator": r.creator.ID}
	joinRule := spec.Public
	switch r.preset {
	case PresetNone:
		r.CreateAndInsert(t, spec.MRoomCreate, "", createContent)
		return
	case PresetPrivateChat:
		joinRule = spec.Invite
	case PresetDirect:
		joinRule = spec.Invite
		createContent["is_direct"] = true
	}
	r.CreateAndInsert(t, spec.MRoomCreate, "", createContent)
	r.CreateAndInsert(t, spec.MRoomJoinRules, "", gomatrixserverlib.JoinRuleContent{JoinRule: joinRule})
	r.CreateAndInsert(t, spec.MRoomPowerLevels, "", map[string]interface{}{
		"users":         map[string]int64{r.creator.ID: 100},
		"users_default": 0,
	})
	r.CreateAndInsert(t, spec.MRoomMember, r.creator.ID, map[string]string{"membership": spec.Join})
}

// CreateAndInsert sets a piece of room state, replacing any existing
// state with the same type and state key.
func (r *Room) CreateAndInsert(t *testing.T, eventType, stateKey string, content interface{}) {
	t.Helper()
	b, err := json.Marshal(content)
	if err != nil {
		t.Fatalf("CreateAndInsert: failed to marshal content: %s", err)
	}
	r.entries = append(r.entries, api.StateEntry{Type: eventType, StateKey: stateKey, Content: b})
}

// Join adds a join membership for the user.
func (r *Room) Join(t *testing.T, u *User) {
	t.Helper()
	r.CreateAndInsert(t, spec.MRoomMember, u.ID, map[string]string{"membership": spec.Join})
}

// SetPowerLevel replaces the power level table so that u has level.
func (r *Room) SetPowerLevel(t *testing.T, u *User, level int64) {
	t.Helper()
	r.CreateAndInsert(t, spec.MRoomPowerLevels, "", map[string]interface{}{
		"users":         map[string]int64{r.creator.ID: 100, u.ID: level},
		"users_default": 0,
	})
}

// State returns a snapshot of the current room state.
func (r *Room) State() *api.RoomState {
	return api.NewRoomState(r.ID, r.entries...)
}

// Creator returns the user who created the room.
func (r *Room) Creator() *User {
	return r.creator
}
