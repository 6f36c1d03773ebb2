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
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
)

// Context is the evaluation context for one decision. Room state and the
// admin status of the sender are looked up lazily, at most once, and
// shared by every rule evaluated for the event.
//
// A Context is owned by a single decision and must not be shared between
// goroutines.
type Context struct {
	Event  *api.Event
	Logger *logrus.Entry

	stateAPI api.RoomStateAPI
	adminAPI api.AdminAPI

	state        *api.RoomState
	stateErr     error
	stateFetched bool

	admin        bool
	adminErr     error
	adminFetched bool
}

// NewContext creates an evaluation context. If snapshot is non-nil it is
// used as the room state and stateAPI is never called.
func NewContext(
	ev *api.Event, snapshot *api.RoomState,
	stateAPI api.RoomStateAPI, adminAPI api.AdminAPI,
	logger *logrus.Entry,
) *Context {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Context{
		Event:    ev,
		Logger:   logger,
		stateAPI: stateAPI,
		adminAPI: adminAPI,
	}
	if snapshot != nil {
		c.state = snapshot
		c.stateFetched = true
	}
	return c
}

// SetEvent replaces the event under evaluation, e.g. after a rewrite.
func (c *Context) SetEvent(ev *api.Event) {
	c.Event = ev
}

// SetAdmin records the sender's admin status when the host already
// knows it, so that no lookup is made.
func (c *Context) SetAdmin(isAdmin bool) {
	c.admin = isAdmin
	c.adminErr = nil
	c.adminFetched = true
}

// RoomState returns the state of the event's room. On failure it returns
// an empty snapshot together with a *api.ContextFault.
func (c *Context) RoomState(ctx context.Context) (*api.RoomState, error) {
	if !c.stateFetched {
		c.stateFetched = true
		c.state, c.stateErr = c.fetchState(ctx)
		if c.stateErr != nil {
			c.state = api.NewRoomState(c.Event.RoomID)
		}
	}
	return c.state, c.stateErr
}

func (c *Context) fetchState(ctx context.Context) (*api.RoomState, error) {
	fault := &api.ContextFault{Op: "QueryRoomState", RoomID: c.Event.RoomID}
	if c.stateAPI == nil {
		fault.Err = fmt.Errorf("no room state provider")
		return nil, fault
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "QueryRoomState")
	defer span.Finish()
	state, err := c.stateAPI.QueryRoomState(ctx, c.Event.RoomID)
	if err != nil {
		fault.Err = err
		return nil, fault
	}
	if state == nil {
		fault.Err = fmt.Errorf("room state not found")
		return nil, fault
	}
	return state, nil
}

// IsAdmin returns whether the sender is a server admin. On failure the
// sender is treated as a non-admin and a *api.ContextFault is returned.
func (c *Context) IsAdmin(ctx context.Context) (bool, error) {
	if !c.adminFetched {
		c.adminFetched = true
		c.admin, c.adminErr = c.fetchAdmin(ctx)
		if c.adminErr != nil {
			c.admin = false
		}
	}
	return c.admin, c.adminErr
}

func (c *Context) fetchAdmin(ctx context.Context) (bool, error) {
	fault := &api.ContextFault{Op: "IsAdmin", UserID: c.Event.Sender}
	if c.adminAPI == nil {
		fault.Err = fmt.Errorf("no admin status provider")
		return false, fault
	}
	span, ctx := opentracing.StartSpanFromContext(ctx, "IsAdmin")
	defer span.Finish()
	admin, err := c.adminAPI.IsAdmin(ctx, c.Event.Sender)
	if err != nil {
		fault.Err = err
		return false, fault
	}
	return admin, nil
}

// Room returns the room facts for the event's room.
func (c *Context) Room(ctx context.Context) (Facts, error) {
	state, err := c.RoomState(ctx)
	if err != nil {
		return Facts{}, err
	}
	return Resolve(state), nil
}

// PowerLevel returns the sender's power level in the event's room.
func (c *Context) PowerLevel(ctx context.Context) (int64, error) {
	state, err := c.RoomState(ctx)
	if err != nil {
		return 0, err
	}
	return PowerLevelOf(state, c.Event.Sender), nil
}

// Actor resolves the full actor context. Lookup faults leave the
// conservative values in place and are returned as the error; the
// first fault wins.
func (c *Context) Actor(ctx context.Context) (ActorContext, error) {
	var actor ActorContext
	admin, adminErr := c.IsAdmin(ctx)
	actor.IsAdmin = admin
	state, stateErr := c.RoomState(ctx)
	if stateErr == nil {
		facts := Resolve(state)
		actor.IsDirectRoom = facts.IsDirect
		actor.IsPrivate = facts.IsPrivate
		actor.PowerLevel = PowerLevelOf(state, c.Event.Sender)
	}
	if adminErr != nil {
		return actor, adminErr
	}
	return actor, stateErr
}
