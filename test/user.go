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
	"fmt"
	"sync/atomic"
	"testing"
)

var userIDCounter = int64(0)

const ServerName = "test"

type User struct {
	ID        string
	Localpart string
	// Admin is reported by FakeAdminAPI for users created through a
	// FakeAdminAPI-aware helper.
	Admin bool
}

type UserOpt func(*User)

func WithAdmin() UserOpt {
	return func(u *User) {
		u.Admin = true
	}
}

func WithLocalpart(localpart string) UserOpt {
	return func(u *User) {
		u.Localpart = localpart
	}
}

// NewUser creates a user with a unique ID on the test server.
func NewUser(t *testing.T, opts ...UserOpt) *User {
	t.Helper()
	counter := atomic.AddInt64(&userIDCounter, 1)
	u := &User{Localpart: fmt.Sprintf("%d", counter)}
	for _, opt := range opts {
		opt(u)
	}
	u.ID = fmt.Sprintf("@%s:%s", u.Localpart, ServerName)
	return u
}
