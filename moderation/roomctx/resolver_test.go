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

package roomctx

import (
	"testing"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/stretchr/testify/assert"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/test"
)

func TestResolve(t *testing.T) {
	alice := test.NewUser(t)
	tests := []struct {
		name   string
		preset test.Preset
		want   Facts
	}{
		{name: "public room", preset: test.PresetPublicChat, want: Facts{}},
		{name: "private room", preset: test.PresetPrivateChat, want: Facts{IsPrivate: true}},
		{name: "direct room", preset: test.PresetDirect, want: Facts{IsDirect: true, IsPrivate: true}},
		{name: "no join rules", preset: test.PresetNone, want: Facts{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := test.NewRoom(t, alice, test.RoomPreset(tt.preset))
			assert.Equal(t, tt.want, Resolve(room.State()))
		})
	}
}

func TestResolveMissingState(t *testing.T) {
	assert.Equal(t, Facts{}, Resolve(nil))
	assert.Equal(t, Facts{}, Resolve(api.NewRoomState("!empty:test")))
}

func TestIsDirectIgnoresNonBooleanFlag(t *testing.T) {
	alice := test.NewUser(t)
	room := test.NewRoom(t, alice, test.RoomPreset(test.PresetNone))
	room.CreateAndInsert(t, spec.MRoomCreate, "", map[string]interface{}{"is_direct": "true"})
	assert.False(t, IsDirect(room.State()))
}

func TestPowerLevelOf(t *testing.T) {
	alice := test.NewUser(t)
	bob := test.NewUser(t)
	charlie := test.NewUser(t)
	room := test.NewRoom(t, alice)
	room.SetPowerLevel(t, bob, 50)

	state := room.State()
	assert.Equal(t, int64(100), PowerLevelOf(state, alice.ID))
	assert.Equal(t, int64(50), PowerLevelOf(state, bob.ID))
	assert.Equal(t, int64(0), PowerLevelOf(state, charlie.ID))

	room.CreateAndInsert(t, spec.MRoomPowerLevels, "", map[string]interface{}{
		"users":         map[string]int64{alice.ID: 100},
		"users_default": 10,
	})
	assert.Equal(t, int64(10), PowerLevelOf(room.State(), charlie.ID))

	assert.Equal(t, int64(0), PowerLevelOf(api.NewRoomState(room.ID), alice.ID), "no power levels")
	room.CreateAndInsert(t, spec.MRoomPowerLevels, "", "not an object")
	assert.Equal(t, int64(0), PowerLevelOf(room.State(), alice.ID), "malformed power levels")
}

func TestJoinedMembers(t *testing.T) {
	alice := test.NewUser(t, test.WithLocalpart("alice"))
	bob := test.NewUser(t, test.WithLocalpart("bob"))
	charlie := test.NewUser(t, test.WithLocalpart("charlie"))
	room := test.NewRoom(t, alice, test.RoomPreset(test.PresetDirect))
	room.Join(t, bob)
	room.CreateAndInsert(t, spec.MRoomMember, charlie.ID, map[string]string{"membership": spec.Invite})

	assert.Equal(t, []string{alice.ID, bob.ID}, JoinedMembers(room.State()))
}
