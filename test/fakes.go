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

package test

import (
	"context"
	"fmt"
	"sync"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
)

// FakeRoomStateAPI serves room state from memory and counts lookups.
type FakeRoomStateAPI struct {
	mu     sync.Mutex
	States map[string]*api.RoomState
	Err    error
	calls  int
}

func NewFakeRoomStateAPI(rooms ...*Room) *FakeRoomStateAPI {
	f := &FakeRoomStateAPI{States: make(map[string]*api.RoomState)}
	for _, r := range rooms {
		f.States[r.ID] = r.State()
	}
	return f
}

func (f *FakeRoomStateAPI) QueryRoomState(ctx context.Context, roomID string) (*api.RoomState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	state, ok := f.States[roomID]
	if !ok {
		return nil, fmt.Errorf("unknown room %s", roomID)
	}
	return state, nil
}

// Calls returns the number of QueryRoomState calls so far.
func (f *FakeRoomStateAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeAdminAPI reports admin status for the users it knows about.
type FakeAdminAPI struct {
	mu     sync.Mutex
	Admins map[string]bool
	Err    error
	calls  int
}

func NewFakeAdminAPI(users ...*User) *FakeAdminAPI {
	f := &FakeAdminAPI{Admins: make(map[string]bool)}
	for _, u := range users {
		f.Admins[u.ID] = u.Admin
	}
	return f
}

func (f *FakeAdminAPI) IsAdmin(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return false, f.Err
	}
	return f.Admins[userID], nil
}

func (f *FakeAdminAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// StateChange is a state event recorded by FakeRoomMutationAPI.
type StateChange struct {
	RoomID    string
	EventType string
	StateKey  string
	Content   interface{}
}

// FakeRoomMutationAPI records mutations. Failures can be injected per
// state event type, or for directory publishing with FailPublish.
type FakeRoomMutationAPI struct {
	mu           sync.Mutex
	FailTypes    map[string]error
	FailPublish  error
	StateChanges []StateChange
	Published    []string
	Notices      []string
	eventCounter int
}

func NewFakeRoomMutationAPI() *FakeRoomMutationAPI {
	return &FakeRoomMutationAPI{FailTypes: make(map[string]error)}
}

func (f *FakeRoomMutationAPI) SubmitStateChange(ctx context.Context, roomID, eventType, stateKey string, content interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailTypes[eventType]; err != nil {
		return "", err
	}
	f.eventCounter++
	f.StateChanges = append(f.StateChanges, StateChange{
		RoomID: roomID, EventType: eventType, StateKey: stateKey, Content: content,
	})
	return fmt.Sprintf("$%d:%s", f.eventCounter, ServerName), nil
}

func (f *FakeRoomMutationAPI) PublishRoom(ctx context.Context, roomID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailPublish != nil {
		return f.FailPublish
	}
	f.Published = append(f.Published, roomID)
	return nil
}

func (f *FakeRoomMutationAPI) SubmitNotice(ctx context.Context, roomID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Notices = append(f.Notices, text)
	return nil
}

// RecordedNotices returns a copy of the notices sent so far.
func (f *FakeRoomMutationAPI) RecordedNotices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Notices...)
}

// RecordedStateChanges returns a copy of the state changes submitted so far.
func (f *FakeRoomMutationAPI) RecordedStateChanges() []StateChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StateChange(nil), f.StateChanges...)
}

// PublishedRooms returns a copy of the rooms published so far.
func (f *FakeRoomMutationAPI) PublishedRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Published...)
}
