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

package config

import (
	"fmt"
)

type JetStream struct {
	// A list of NATS addresses to connect to. If none are specified, an
	// internal NATS server will be used.
	Addresses []string `yaml:"addresses"`
	// The prefix to use for stream names for this engine - really only
	// useful if running more than one engine on the same NATS deployment.
	TopicPrefix string `yaml:"topic_prefix"`
	// Keep all storage in memory. This is mostly useful for unit tests.
	InMemory bool `yaml:"in_memory"`
	// Persistent directory to store JetStream streams in.
	StoragePath Path `yaml:"storage_path"`
	// Whether to consume moderation requests from JetStream at all.
	Enabled bool `yaml:"enabled"`
}

func (c *JetStream) Prefixed(name string) string {
	return fmt.Sprintf("%s%s", c.TopicPrefix, name)
}

func (c *JetStream) Durable(name string) string {
	return c.Prefixed(name)
}

func (c *JetStream) Defaults(generate bool) {
	c.Addresses = []string{}
	c.TopicPrefix = "Moderation"
	c.StoragePath = Path("./")
	if generate {
		c.StoragePath = Path("./jetstream")
	}
}

func (c *JetStream) Verify(configErrs *ConfigErrors) {
	if c.Enabled && len(c.Addresses) == 0 && !c.InMemory {
		checkNotEmpty(configErrs, "global.jetstream.storage_path", string(c.StoragePath))
	}
}
