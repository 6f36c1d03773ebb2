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

package testrig

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
	"github.com/FapBot-tech/MatrixSetup/setup/jetstream"
	"github.com/FapBot-tech/MatrixSetup/setup/process"
)

var prefixCounter int64

// JetStream is an in-memory JetStream set up for one test.
type JetStream struct {
	Cfg     *config.JetStream
	Process *process.ProcessContext
	JS      nats.JetStreamContext
	Conn    *nats.Conn
}

// NewJetStream starts an in-process NATS server with the moderation
// streams under a prefix unique to the test. Everything is shut down
// when the test finishes.
func NewJetStream(t *testing.T) *JetStream {
	t.Helper()
	var cfg config.JetStream
	cfg.Defaults(false)
	cfg.Enabled = true
	cfg.InMemory = true
	cfg.StoragePath = config.Path(t.TempDir())
	cfg.TopicPrefix = fmt.Sprintf("Test%d", atomic.AddInt64(&prefixCounter, 1))

	proc := process.NewProcessContext()
	js, nc, err := jetstream.Prepare(proc, &cfg)
	if err != nil {
		t.Fatalf("NewJetStream: %s", err)
	}
	t.Cleanup(func() {
		nc.Close()
		proc.Shutdown()
		proc.WaitForComponentsToFinish()
	})
	return &JetStream{Cfg: &cfg, Process: proc, JS: js, Conn: nc}
}

func MustPublishMsgs(t *testing.T, jsctx nats.JetStreamContext, msgs ...*nats.Msg) {
	t.Helper()
	for _, msg := range msgs {
		if _, err := jsctx.PublishMsg(msg); err != nil {
			t.Fatalf("MustPublishMsgs: failed to publish message: %s", err)
		}
	}
}

// NewInputModerationMsg wraps a decide request in a message for the
// input stream.
func NewInputModerationMsg(t *testing.T, cfg *config.JetStream, req *api.DecideRequest) *nats.Msg {
	t.Helper()
	msg := nats.NewMsg(cfg.Prefixed(jetstream.InputModerationEvent))
	if req.Event != nil {
		msg.Header.Set(jetstream.RoomID, req.Event.RoomID)
		msg.Header.Set(jetstream.EventID, req.Event.EventID)
	}
	var err error
	msg.Data, err = json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %s", err)
	}
	return msg
}
