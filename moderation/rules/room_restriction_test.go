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

func TestRoomRestrictionCreate(t *testing.T) {
	admin := test.NewUser(t, test.WithAdmin())
	alice := test.NewUser(t)
	tests := []struct {
		name    string
		sender  *test.User
		request map[string]interface{}
		want    api.Decision
	}{
		{name: "direct by non-admin", sender: alice, request: map[string]interface{}{"is_direct": true, "preset": "trusted_private_chat"}, want: api.Allow()},
		{name: "group by non-admin", sender: alice, request: map[string]interface{}{"is_direct": false, "name": "My group"}, want: api.Block(roomCreateReason)},
		{name: "no flag by non-admin", sender: alice, request: map[string]interface{}{}, want: api.Block(roomCreateReason)},
		{name: "group by admin", sender: admin, request: map[string]interface{}{"preset": "public_chat"}, want: api.Allow()},
		{name: "direct by admin", sender: admin, request: map[string]interface{}{"is_direct": true}, want: api.Allow()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := test.NewEvent(t, api.KindRoomCreate, tt.sender, "", tt.request)
			d, err := NewRoomRestriction().Evaluate(context.Background(), newTestContext(t, ev, nil, admin, alice))
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestRoomRestrictionUsesKnownAdminStatus(t *testing.T) {
	alice := test.NewUser(t)
	ev := test.NewEvent(t, api.KindRoomCreate, alice, "", map[string]interface{}{"preset": "public_chat"})
	adminAPI := test.NewFakeAdminAPI()
	rctx := newTestContextWith(ev, nil, adminAPI)
	rctx.SetAdmin(true)
	d, err := NewRoomRestriction().Evaluate(context.Background(), rctx)
	require.NoError(t, err)
	assert.Equal(t, api.Allow(), d)
	assert.Equal(t, 0, adminAPI.Calls())
}

func TestRoomRestrictionVisibility(t *testing.T) {
	admin := test.NewUser(t, test.WithAdmin())
	alice := test.NewUser(t)
	room := test.NewRoom(t, alice, test.RoomPreset(test.PresetPrivateChat))

	tests := []struct {
		name      string
		sender    *test.User
		eventType string
		content   interface{}
		want      api.Decision
	}{
		{name: "non-admin opens room", sender: alice, eventType: spec.MRoomJoinRules, content: map[string]string{"join_rule": "public"}, want: api.Block(visibilityReason)},
		{name: "non-admin closes room", sender: alice, eventType: spec.MRoomJoinRules, content: map[string]string{"join_rule": "invite"}, want: api.Block(visibilityReason)},
		{name: "admin opens room", sender: admin, eventType: spec.MRoomJoinRules, content: map[string]string{"join_rule": "public"}, want: api.Allow()},
		{name: "non-admin sets topic", sender: alice, eventType: "m.room.topic", content: map[string]string{"topic": "hi"}, want: api.Allow()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := test.NewStateChange(t, tt.sender, room.ID, tt.eventType, "", tt.content)
			d, err := NewRoomRestriction().Evaluate(context.Background(), newTestContext(t, ev, room, admin, alice))
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}
