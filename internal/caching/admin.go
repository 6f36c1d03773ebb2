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

package caching

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/FapBot-tech/MatrixSetup/moderation/api"
	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

var adminLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "moderation",
		Subsystem: "caching",
		Name:      "admin_lookups_total",
		Help:      "Admin status lookups, by whether they were answered from the cache",
	},
	[]string{"result"},
)

// NewCaches creates the caches selected by cfg.Backend.
func NewCaches(cfg *config.AdminCache, enablePrometheus bool) (*Caches, error) {
	switch cfg.Backend {
	case config.AdminCacheRedis:
		return NewRedisCache(cfg)
	case config.AdminCacheMemory, "":
		return NewRistrettoCache(CacheSize(cfg.MaxSizeBytes), cfg.TTL, enablePrometheus)
	default:
		return nil, fmt.Errorf("unknown admin cache backend %q", cfg.Backend)
	}
}

// AdminStatusCache remembers the answers of an api.AdminAPI. Concurrent
// lookups for the same user are collapsed into one. Failed lookups are
// not cached.
type AdminStatusCache struct {
	inner api.AdminAPI
	cache Cache[string, bool]
	group singleflight.Group
}

func NewAdminStatusCache(inner api.AdminAPI, cache Cache[string, bool]) *AdminStatusCache {
	return &AdminStatusCache{
		inner: inner,
		cache: cache,
	}
}

func (c *AdminStatusCache) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if admin, ok := c.cache.Get(ctx, userID); ok {
		adminLookups.WithLabelValues("hit").Inc()
		return admin, nil
	}
	adminLookups.WithLabelValues("miss").Inc()
	// The shared lookup outlives any one caller giving up on it.
	lookupCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(userID, func() (interface{}, error) {
		admin, err := c.inner.IsAdmin(lookupCtx, userID)
		if err != nil {
			return false, err
		}
		c.cache.Set(lookupCtx, userID, admin)
		return admin, nil
	})
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	}
}

// Forget drops the cached status of userID.
func (c *AdminStatusCache) Forget(ctx context.Context, userID string) {
	c.cache.Unset(ctx, userID)
}
