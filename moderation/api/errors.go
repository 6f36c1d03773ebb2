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

package api

import "fmt"

// SniffUnknown is the MIME type reported when the content of a file
// could not be read.
const SniffUnknown = "unknown/unknown"

// ContextFault is returned when room state or admin status could not
// be looked up. Rules fail open on it.
type ContextFault struct {
	Op     string
	RoomID string
	UserID string
	Err    error
}

func (e *ContextFault) Error() string {
	switch {
	case e.RoomID != "":
		return fmt.Sprintf("%s failed for room %s: %s", e.Op, e.RoomID, e.Err)
	case e.UserID != "":
		return fmt.Sprintf("%s failed for user %s: %s", e.Op, e.UserID, e.Err)
	default:
		return fmt.Sprintf("%s failed: %s", e.Op, e.Err)
	}
}

func (e *ContextFault) Unwrap() error { return e.Err }

// InspectionFault is returned when content could not be classified,
// e.g. an uploaded file could not be read for sniffing.
type InspectionFault struct {
	Path string
	Err  error
}

func (e *InspectionFault) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("inspection failed: %s", e.Err)
	}
	return fmt.Sprintf("inspection of %q failed: %s", e.Path, e.Err)
}

func (e *InspectionFault) Unwrap() error { return e.Err }

// MutationFault is returned when a room mutation submitted on behalf of
// the engine failed.
type MutationFault struct {
	Step   string
	RoomID string
	Err    error
}

func (e *MutationFault) Error() string {
	return fmt.Sprintf("%s in room %s: %s", e.Step, e.RoomID, e.Err)
}

func (e *MutationFault) Unwrap() error { return e.Err }
