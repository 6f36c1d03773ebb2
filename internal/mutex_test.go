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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMutexByRoom(t *testing.T) {
	m := NewMutexByRoom()

	// Each counter is only touched while its room is locked.
	counts := map[string]*int{"!a:test": new(int), "!b:test": new(int)}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for roomID, n := range counts {
			wg.Add(1)
			go func(roomID string, n *int) {
				defer wg.Done()
				m.Lock(roomID)
				defer m.Unlock(roomID)
				*n++
			}(roomID, n)
		}
	}
	wg.Wait()
	assert.Equal(t, 50, *counts["!a:test"])
	assert.Equal(t, 50, *counts["!b:test"])
	assert.Equal(t, 0, m.Len())

	m.Lock("!a:test")
	assert.Equal(t, 1, m.Len())
	m.Unlock("!a:test")
	assert.Equal(t, 0, m.Len())

	assert.Panics(t, func() { m.Unlock("!c:test") })
}
