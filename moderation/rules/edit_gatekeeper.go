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
	"fmt"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/inspect"
	"github.com/FapBot-tech/MatrixSetup/moderation/roomctx"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

// EditGatekeeper only lets admins and users with enough power edit
// messages.
type EditGatekeeper struct {
	requiredPowerLevel int64
}

func NewEditGatekeeper(requiredPowerLevel int64) *EditGatekeeper {
	return &EditGatekeeper{requiredPowerLevel: requiredPowerLevel}
}

func (r *EditGatekeeper) Name() string           { return config.RuleEditGatekeeper }
func (r *EditGatekeeper) Kinds() []api.EventKind { return []api.EventKind{api.KindMessage} }

func (r *EditGatekeeper) Evaluate(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
	msg, ok := rctx.Event.Message()
	if !ok || !inspect.IsEdit(msg) {
		return api.Allow(), nil
	}
	isAdmin, err := rctx.IsAdmin(ctx)
	if err != nil {
		return api.Allow(), err
	}
	if isAdmin {
		return api.Allow(), nil
	}
	level, err := rctx.PowerLevel(ctx)
	if err != nil {
		return api.Allow(), err
	}
	if level < r.requiredPowerLevel {
		return api.Block(fmt.Sprintf(
			"You need PL %d or to be a server admin to edit messages in this room.", r.requiredPowerLevel,
		)), nil
	}
	return api.Allow(), nil
}
