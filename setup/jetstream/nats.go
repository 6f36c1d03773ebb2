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
	"fmt"
	"strings"
	"sync"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/FapBot-tech/MatrixSetup/setup/config"
	"github.com/FapBot-tech/MatrixSetup/setup/process"
)

var natsServer *natsserver.Server
var natsServerMutex sync.Mutex

// Prepare connects to JetStream and makes sure the moderation streams
// exist. If no addresses are configured then an in-process NATS server
// is started, which is stopped when the process shuts down.
func Prepare(proc *process.ProcessContext, cfg *config.JetStream) (nats.JetStreamContext, *nats.Conn, error) {
	// check if we need an in-process NATS Server
	if len(cfg.Addresses) != 0 {
		nc, err := nats.Connect(strings.Join(cfg.Addresses, ","))
		if err != nil {
			return nil, nil, fmt.Errorf("nats.Connect: %w", err)
		}
		return setupNATS(cfg, nc)
	}
	natsServerMutex.Lock()
	if natsServer == nil {
		var err error
		natsServer, err = natsserver.NewServer(&natsserver.Options{
			ServerName:      "moderation-engine",
			DontListen:      true,
			JetStream:       true,
			StoreDir:        string(cfg.StoragePath),
			NoSystemAccount: true,
			MaxPayload:      16 * 1024 * 1024,
			NoSigs:          true,
		})
		if err != nil {
			natsServerMutex.Unlock()
			return nil, nil, fmt.Errorf("natsserver.NewServer: %w", err)
		}
		natsServer.SetLoggerV2(NewLogAdapter(proc.Degraded), false, false, false)
		go natsServer.Start()
		proc.ComponentStarted()
		go func(s *natsserver.Server) {
			<-proc.WaitForShutdown()
			logrus.Infoln("Shutting down NATS Server")
			s.Shutdown()
			s.WaitForShutdown()
			natsServerMutex.Lock()
			if natsServer == s {
				natsServer = nil
			}
			natsServerMutex.Unlock()
			proc.ComponentFinished()
		}(natsServer)
	}
	s := natsServer
	natsServerMutex.Unlock()
	if !s.ReadyForConnections(time.Second * 10) {
		return nil, nil, fmt.Errorf("NATS did not start in time")
	}
	nc, err := nats.Connect("", nats.InProcessServer(s))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create NATS client: %w", err)
	}
	return setupNATS(cfg, nc)
}

func setupNATS(cfg *config.JetStream, nc *nats.Conn) (nats.JetStreamContext, *nats.Conn, error) {
	s, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("unable to get JetStream context: %w", err)
	}

	for _, stream := range streams { // streams are defined in streams.go
		name := cfg.Prefixed(stream.Name)
		info, err := s.StreamInfo(name)
		if err != nil && err != nats.ErrStreamNotFound {
			nc.Close()
			return nil, nil, fmt.Errorf("unable to get stream info for %q: %w", name, err)
		}
		if info == nil {
			// Copy the stream config so that prefixing doesn't leak between
			// engines sharing this process, e.g. in tests.
			namespaced := *stream
			namespaced.Name = name
			namespaced.Subjects = []string{name}
			// If we're trying to keep everything in memory (e.g. unit tests)
			// then overwrite the storage policy.
			if cfg.InMemory {
				namespaced.Storage = nats.MemoryStorage
			}

			if _, err = s.AddStream(&namespaced); err != nil {
				nc.Close()
				return nil, nil, fmt.Errorf("unable to add stream %q: %w", name, err)
			}
			logrus.WithField("stream", name).Info("Created JetStream stream")
		}
	}
	return s, nc, nil
}
