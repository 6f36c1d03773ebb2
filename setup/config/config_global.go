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
	"net/url"
	"time"

	"github.com/matrix-org/gomatrixserverlib/spec"
)

type Global struct {
	// The name of the homeserver whose events are moderated, e.g 'matrix.org'.
	ServerName spec.ServerName `yaml:"server_name"`

	// The address the internal moderation API and metrics listen on.
	Listen Address `yaml:"listen"`

	// The homeserver the engine reads room state from and submits
	// provisioning changes to.
	Homeserver Homeserver `yaml:"homeserver"`

	// JetStream configuration
	JetStream JetStream `yaml:"jetstream"`

	// Metrics configuration
	Metrics Metrics `yaml:"metrics"`

	// Sentry configuration
	Sentry Sentry `yaml:"sentry"`

	// Caching of admin status lookups
	AdminCache AdminCache `yaml:"admin_cache"`
}

func (c *Global) Defaults(generate bool) {
	if generate {
		c.ServerName = "localhost"
	}
	c.Listen = "127.0.0.1:7780"

	c.Homeserver.Defaults(generate)
	c.JetStream.Defaults(generate)
	c.Metrics.Defaults(generate)
	c.Sentry.Defaults()
	c.AdminCache.Defaults()
}

func (c *Global) Verify(configErrs *ConfigErrors) {
	checkNotEmpty(configErrs, "global.server_name", string(c.ServerName))
	checkNotEmpty(configErrs, "global.listen", string(c.Listen))

	c.Homeserver.Verify(configErrs)
	c.JetStream.Verify(configErrs)
	c.Metrics.Verify(configErrs)
	c.Sentry.Verify(configErrs)
	c.AdminCache.Verify(configErrs)
}

// Homeserver configures access to the client-server and admin APIs of
// the homeserver. The access token must belong to a server admin so that
// admin status can be queried and provisioning changes applied.
type Homeserver struct {
	// The base URL of the homeserver, e.g. https://matrix.example.com
	BaseURL string `yaml:"base_url"`
	// The user the engine acts as when provisioning rooms.
	UserID string `yaml:"user_id"`
	// The access token of that user.
	AccessToken string `yaml:"access_token"`
	// How long to wait for a single request to the homeserver.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

func (c *Homeserver) Defaults(generate bool) {
	if generate {
		c.BaseURL = "http://localhost:8008"
		c.UserID = "@moderation:localhost"
	}
	c.RequestTimeout = time.Second * 10
}

func (c *Homeserver) Verify(configErrs *ConfigErrors) {
	checkNotEmpty(configErrs, "global.homeserver.base_url", c.BaseURL)
	checkNotEmpty(configErrs, "global.homeserver.user_id", c.UserID)
	checkNotEmpty(configErrs, "global.homeserver.access_token", c.AccessToken)
	checkPositive(configErrs, "global.homeserver.request_timeout", int64(c.RequestTimeout))
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			configErrs.Add("invalid value for config key \"global.homeserver.base_url\": " + c.BaseURL)
		}
	}
}

// The configuration to use for Prometheus metrics
type Metrics struct {
	// Whether or not the metrics are enabled
	Enabled bool `yaml:"enabled"`
	// Use BasicAuth for Authorization
	BasicAuth struct {
		// Authorization via Static Username & Password
		// Hardcoded Username and Password
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"basic_auth"`
}

func (c *Metrics) Defaults(generate bool) {
	c.Enabled = false
	if generate {
		c.BasicAuth.Username = "metrics"
		c.BasicAuth.Password = "metrics"
	}
}

func (c *Metrics) Verify(configErrs *ConfigErrors) {
}

// The configuration to use for Sentry error reporting
type Sentry struct {
	Enabled bool `yaml:"enabled"`
	// The DSN to connect to e.g "https://examplePublicKey@o0.ingest.sentry.io/0"
	// See https://docs.sentry.io/platforms/go/configuration/options/
	DSN string `yaml:"dsn"`
	// The environment e.g "production"
	// See https://docs.sentry.io/platforms/go/configuration/environments/
	Environment string `yaml:"environment"`
}

func (c *Sentry) Defaults() {
	c.Enabled = false
}

func (c *Sentry) Verify(configErrs *ConfigErrors) {
	if c.Enabled {
		checkNotEmpty(configErrs, "global.sentry.dsn", c.DSN)
	}
}

const (
	AdminCacheMemory = "memory"
	AdminCacheRedis  = "redis"
)

// AdminCache controls how long admin status lookups are remembered.
type AdminCache struct {
	// Either "memory" or "redis". Redis lets several engine instances
	// share lookups.
	Backend string `yaml:"backend"`
	// How long a cached admin status is trusted.
	TTL time.Duration `yaml:"ttl"`
	// Maximum memory used by the in-memory cache, in bytes.
	MaxSizeBytes int64 `yaml:"max_size_bytes"`
	Redis        struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		// Prefix for the keys written to redis.
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`
}

func (c *AdminCache) Defaults() {
	c.Backend = AdminCacheMemory
	c.TTL = time.Minute * 5
	c.MaxSizeBytes = 1024 * 1024
	c.Redis.Prefix = "moderation:admin:"
}

func (c *AdminCache) Verify(configErrs *ConfigErrors) {
	checkPositive(configErrs, "global.admin_cache.ttl", int64(c.TTL))
	checkPositive(configErrs, "global.admin_cache.max_size_bytes", c.MaxSizeBytes)
	switch c.Backend {
	case AdminCacheMemory:
	case AdminCacheRedis:
		checkNotEmpty(configErrs, "global.admin_cache.redis.address", c.Redis.Address)
	default:
		configErrs.Add("invalid value for config key \"global.admin_cache.backend\": " + c.Backend)
	}
}
