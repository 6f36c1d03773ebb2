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

	"github.com/matrix-org/gomatrixserverlib/spec"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/roomctx"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

const (
	roomCreateReason = "Only admins can create group channels."
	visibilityReason = "You are not allowed to change room visibility."
)

// RoomRestriction reserves group rooms for admins. Anyone may create a
// DM, but only admins may create other rooms or change a room's join
// rules, whatever the new join rule is.
type RoomRestriction struct{}

func NewRoomRestriction() *RoomRestriction { return &RoomRestriction{} }

func (r *RoomRestriction) Name() string { return config.RuleRoomRestriction }
func (r *RoomRestriction) Kinds() []api.EventKind {
	return []api.EventKind{api.KindRoomCreate, api.KindStateChange}
}

func (r *RoomRestriction) Evaluate(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
	switch rctx.Event.Kind() {
	case api.KindRoomCreate:
		return r.evaluateCreate(ctx, rctx)
	case api.KindStateChange:
		return r.evaluateStateChange(ctx, rctx)
	}
	return api.Allow(), nil
}

func (r *RoomRestriction) evaluateCreate(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
	create, _ := rctx.Event.RoomCreate()
	isAdmin, err := rctx.IsAdmin(ctx)
	if err != nil {
		return api.Allow(), err
	}
	if isAdmin || create.IsDirect {
		return api.Allow(), nil
	}
	return api.Block(roomCreateReason), nil
}

func (r *RoomRestriction) evaluateStateChange(ctx context.Context, rctx *roomctx.Context) (api.Decision, error) {
	change, _ := rctx.Event.StateChange()
	if change.EventType != spec.MRoomJoinRules {
		return api.Allow(), nil
	}
	isAdmin, err := rctx.IsAdmin(ctx)
	if err != nil {
		return api.Allow(), err
	}
	if isAdmin {
		return api.Allow(), nil
	}
	return api.Block(visibilityReason), nil
}
