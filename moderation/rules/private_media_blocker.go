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

const privateMediaReason = "File sharing is disabled in DMs and Private channels."

var fileMsgTypes = map[string]struct{}{
	api.MsgTypeImage: {},
	api.MsgTypeVideo: {},
	api.MsgTypeAudio: {},
	api.MsgTypeFile:  {},
}

// PrivateMediaBlocker stops non-admins sharing files in DMs and private
// rooms.
type PrivateMediaBlocker struct{}

func NewPrivateMediaBlocker() *PrivateMediaBlocker { return &PrivateMediaBlocker{} }

func (r *PrivateMediaBlocker) Name() string           { return config.RulePrivateMediaBlocker }
func (r *PrivateMediaBlocker) Kinds() []api.EventKind { return []api.EventKind{api.KindMessage} }

func (r *PrivateMediaBlocker) Evaluate(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
	msg, ok := rctx.Event.Message()
	if !ok {
		return api.Allow(), nil
	}
	if _, ok = fileMsgTypes[msg.MsgType]; !ok {
		return api.Allow(), nil
	}
	isAdmin, err := rctx.IsAdmin(ctx)
	if err != nil {
		return api.Allow(), err
	}
	if isAdmin {
		return api.Allow(), nil
	}
	facts, err := rctx.Room(ctx)
	if err != nil {
		return api.Allow(), err
	}
	if facts.IsDirect || facts.IsPrivate {
		return api.Block(privateMediaReason), nil
	}
	return api.Allow(), nil
}
