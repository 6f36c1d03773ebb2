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

package jetstream

import (
	"time"

	"github.com/nats-io/nats.go"
)

// Message headers
const (
	RoomID     = "room_id"
	EventID    = "event_id"
	Sender     = "sender"
	EventKind  = "event_kind"
	DecisionID = "decision_id"
	Verdict    = "verdict"
	Error      = "error"
)

var (
	InputModerationEvent     = "InputModerationEvent"
	OutputModerationDecision = "OutputModerationDecision"
	// RequestModerationDecision is a core NATS request/reply subject, not
	// a stream.
	RequestModerationDecision = "RequestModerationDecision"
)

var streams = []*nats.StreamConfig{
	{
		Name:      InputModerationEvent,
		Retention: nats.InterestPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    time.Hour,
	},
	{
		Name:      OutputModerationDecision,
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    time.Hour * 24,
	},
}
