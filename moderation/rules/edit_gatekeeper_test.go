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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/test"
)

func TestEditGatekeeper(t *testing.T) {
	alice := test.NewUser(t)
	bob := test.NewUser(t)

	tests := []struct {
		name  string
		level int64
		edit  bool
		want  api.Decision
	}{
		{name: "edit below threshold", level: 10, edit: true, want: api.Block("You need PL 50 or to be a server admin to edit messages in this room.")},
		{name: "edit at threshold", level: 50, edit: true, want: api.Allow()},
		{name: "edit above threshold", level: 75, edit: true, want: api.Allow()},
		{name: "plain message below threshold", level: 10, want: api.Allow()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := test.NewRoom(t, alice)
			room.Join(t, bob)
			room.SetPowerLevel(t, bob, tt.level)
			ev := test.NewTextMessage(t, bob, room.ID, "hello")
			if tt.edit {
				ev = test.NewEditMessage(t, bob, room.ID, "$orig:test", "hello")
			}
			rctx := newTestContext(t, ev, room, alice, bob)
			d, err := NewEditGatekeeper(50).Evaluate(context.Background(), rctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestEditGatekeeperIgnoresOtherRelations(t *testing.T) {
	alice := test.NewUser(t)
	room := test.NewRoom(t, alice)
	bob := test.NewUser(t)
	room.Join(t, bob)
	ev := test.NewEvent(t, api.KindMessage, bob, room.ID, map[string]interface{}{
		"msgtype": api.MsgTypeText,
		"body":    "in a thread",
		"m.relates_to": map[string]string{
			"rel_type": "m.thread",
			"event_id": "$root:test",
		},
	})
	stateAPI := test.NewFakeRoomStateAPI(room)
	adminAPI := test.NewFakeAdminAPI(bob)
	d, err := NewEditGatekeeper(50).Evaluate(context.Background(), newTestContextWith(ev, stateAPI, adminAPI))
	require.NoError(t, err)
	assert.Equal(t, api.Allow(), d)
	assert.Equal(t, 0, stateAPI.Calls())
	assert.Equal(t, 0, adminAPI.Calls())
}

func TestEditGatekeeperCustomThreshold(t *testing.T) {
	alice := test.NewUser(t)
	bob := test.NewUser(t)
	room := test.NewRoom(t, alice)
	room.SetPowerLevel(t, bob, 75)
	ev := test.NewEditMessage(t, bob, room.ID, "$orig:test", "hello")
	d, err := NewEditGatekeeper(100).Evaluate(context.Background(), newTestContext(t, ev, room, bob))
	require.NoError(t, err)
	assert.Equal(t, api.Block("You need PL 100 or to be a server admin to edit messages in this room."), d)
}
