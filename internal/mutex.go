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

import "sync"

// MutexByRoom serialises work per room. Entries are dropped once no
// caller holds or waits for them.
type MutexByRoom struct {
	mu       sync.Mutex // protects the map
	roomToMu map[string]*roomMutex
}

type roomMutex struct {
	sync.Mutex
	refs int
}

func NewMutexByRoom() *MutexByRoom {
	return &MutexByRoom{
		roomToMu: make(map[string]*roomMutex),
	}
}

func (m *MutexByRoom) Lock(roomID string) {
	m.mu.Lock()
	roomMu := m.roomToMu[roomID]
	if roomMu == nil {
		roomMu = &roomMutex{}
		m.roomToMu[roomID] = roomMu
	}
	roomMu.refs++
	m.mu.Unlock()
	// don't lock inside m.mu else we can deadlock
	roomMu.Lock()
}

func (m *MutexByRoom) Unlock(roomID string) {
	m.mu.Lock()
	roomMu := m.roomToMu[roomID]
	if roomMu == nil {
		m.mu.Unlock()
		panic("MutexByRoom: Unlock before Lock")
	}
	roomMu.refs--
	if roomMu.refs == 0 {
		delete(m.roomToMu, roomID)
	}
	m.mu.Unlock()

	roomMu.Unlock()
}

// Len returns the number of rooms currently locked or waited on.
func (m *MutexByRoom) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.roomToMu)
}
