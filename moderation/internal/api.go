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

package internal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/moderation/roomctx"
)

// ModerationInternalAPI is an implementation of api.ModerationInternalAPI
type ModerationInternalAPI struct {
	Dispatcher *Dispatcher
	StateAPI   api.RoomStateAPI
	AdminAPI   api.AdminAPI
}

func (m *ModerationInternalAPI) Decide(
	ctx context.Context, req *api.DecideRequest, res *api.DecideResponse,
) error {
	if req.Event == nil || req.Event.Payload == nil {
		return fmt.Errorf("decide request has no event")
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "Decide")
	defer span.Finish()

	res.DecisionID = uuid.NewString()
	logger := logrus.WithFields(logrus.Fields{
		"decision_id": res.DecisionID,
		"kind":        req.Event.Kind(),
		"event_id":    req.Event.EventID,
		"room_id":     req.Event.RoomID,
		"sender":      req.Event.Sender,
	})
	rctx := roomctx.NewContext(req.Event, req.RoomState, m.StateAPI, m.AdminAPI, logger)
	res.Decision, res.Event = m.Dispatcher.Dispatch(ctx, rctx)
	return nil
}

func (m *ModerationInternalAPI) DecideRoomCreate(
	ctx context.Context, req *api.DecideRoomCreateRequest, res *api.DecideRoomCreateResponse,
) error {
	ev, err := api.NewEvent(api.KindRoomCreate, "", req.Sender, "", req.Request)
	if err != nil {
		return fmt.Errorf("api.NewEvent: %w", err)
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "DecideRoomCreate")
	defer span.Finish()

	logger := logrus.WithFields(logrus.Fields{
		"kind":   api.KindRoomCreate,
		"sender": req.Sender,
	})
	rctx := roomctx.NewContext(ev, nil, m.StateAPI, m.AdminAPI, logger)
	rctx.SetAdmin(req.IsAdmin)
	res.Decision, _ = m.Dispatcher.Dispatch(ctx, rctx)
	return nil
}
