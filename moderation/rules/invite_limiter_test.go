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

package rules

import (
	"context"
	"testing"

	"github.com/matrix-org/gomatrixserverlib/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/test"
)

func TestInviteLimiter(t *testing.T) {
	alice := test.NewUser(t)
	bob := test.NewUser(t)
	charlie := test.NewUser(t)

	tests := []struct {
		name   string
		preset test.Preset
		join   []*test.User
		want   api.Decision
	}{
		{name: "direct room with two members", preset: test.PresetDirect, join: []*test.User{bob}, want: api.Block(inviteLimitReason)},
		{name: "private room with two members", preset: test.PresetPrivateChat, join: []*test.User{bob}, want: api.Block(inviteLimitReason)},
		{name: "direct room with one member", preset: test.PresetDirect, want: api.Allow()},
		{name: "public room with two members", preset: test.PresetPublicChat, join: []*test.User{bob}, want: api.Allow()},
		{name: "public room with three members", preset: test.PresetPublicChat, join: []*test.User{bob, charlie}, want: api.Allow()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := test.NewRoom(t, alice, test.RoomPreset(tt.preset))
			for _, u := range tt.join {
				room.Join(t, u)
			}
			ev := test.NewInvite(t, alice, room.ID, test.NewUser(t))
			d, err := NewInviteLimiter().Evaluate(context.Background(), newTestContext(t, ev, room, alice))
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestInviteLimiterIgnoresLeftMembers(t *testing.T) {
	alice := test.NewUser(t)
	bob := test.NewUser(t)
	room := test.NewRoom(t, alice, test.RoomPreset(test.PresetDirect))
	room.Join(t, bob)
	room.CreateAndInsert(t, spec.MRoomMember, bob.ID, map[string]string{"membership": spec.Leave})

	ev := test.NewInvite(t, alice, room.ID, bob)
	d, err := NewInviteLimiter().Evaluate(context.Background(), newTestContext(t, ev, room, alice))
	require.NoError(t, err)
	assert.Equal(t, api.Allow(), d)
}
