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

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/roomctx"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

const inviteLimitReason = "Inviting more users to a direct/private message is not allowed."

// InviteLimiter stops DMs and private rooms from growing past two
// members. Admins are not exempt.
type InviteLimiter struct{}

func NewInviteLimiter() *InviteLimiter { return &InviteLimiter{} }

func (r *InviteLimiter) Name() string           { return config.RuleInviteLimiter }
func (r *InviteLimiter) Kinds() []api.EventKind { return []api.EventKind{api.KindInvite} }

func (r *InviteLimiter) Evaluate(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
	state, err := rctx.RoomState(ctx)
	if err != nil {
		return api.Allow(), err
	}
	facts := roomctx.Resolve(state)
	if !facts.IsDirect && !facts.IsPrivate {
		return api.Allow(), nil
	}
	if len(roomctx.JoinedMembers(state)) >= 2 {
		return api.Block(inviteLimitReason), nil
	}
	return api.Allow(), nil
}
