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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

type mapCache struct {
	mu sync.Mutex
	m  map[string]bool
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string]bool)} }

func (c *mapCache) Get(_ context.Context, key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

func (c *mapCache) Unset(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

type countingAdminAPI struct {
	calls   atomic.Int32
	admins  map[string]bool
	err     error
	started chan struct{}
	release chan struct{}
}

func (a *countingAdminAPI) IsAdmin(ctx context.Context, userID string) (bool, error) {
	a.calls.Add(1)
	if a.started != nil {
		a.started <- struct{}{}
		select {
		case <-a.release:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if a.err != nil {
		return false, a.err
	}
	return a.admins[userID], nil
}

func TestAdminStatusCacheRemembers(t *testing.T) {
	ctx := context.Background()
	inner := &countingAdminAPI{admins: map[string]bool{"@admin:test": true}}
	c := NewAdminStatusCache(inner, newMapCache())

	for i := 0; i < 3; i++ {
		admin, err := c.IsAdmin(ctx, "@admin:test")
		require.NoError(t, err)
		assert.True(t, admin)
		admin, err = c.IsAdmin(ctx, "@user:test")
		require.NoError(t, err)
		assert.False(t, admin)
	}
	assert.Equal(t, int32(2), inner.calls.Load())

	c.Forget(ctx, "@admin:test")
	_, err := c.IsAdmin(ctx, "@admin:test")
	require.NoError(t, err)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestAdminStatusCacheDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	inner := &countingAdminAPI{err: errors.New("homeserver unavailable")}
	c := NewAdminStatusCache(inner, newMapCache())

	_, err := c.IsAdmin(ctx, "@admin:test")
	assert.Error(t, err)
	_, err = c.IsAdmin(ctx, "@admin:test")
	assert.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestAdminStatusCacheCollapsesConcurrentLookups(t *testing.T) {
	ctx := context.Background()
	inner := &countingAdminAPI{
		admins:  map[string]bool{"@admin:test": true},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := NewAdminStatusCache(inner, newMapCache())

	var wg sync.WaitGroup
	results := make([]bool, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			admin, err := c.IsAdmin(ctx, "@admin:test")
			assert.NoError(t, err)
			results[i] = admin
		}(i)
	}
	<-inner.started
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.Equal(t, int32(1), inner.calls.Load())
	for _, admin := range results {
		assert.True(t, admin)
	}
}

func TestAdminStatusCacheSurvivesFirstCallerCancelling(t *testing.T) {
	inner := &countingAdminAPI{
		admins:  map[string]bool{"@admin:test": true},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	cached := newMapCache()
	c := NewAdminStatusCache(inner, cached)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.IsAdmin(firstCtx, "@admin:test")
		firstErr <- err
	}()
	<-inner.started

	type result struct {
		admin bool
		err   error
	}
	second := make(chan result, 1)
	go func() {
		admin, err := c.IsAdmin(context.Background(), "@admin:test")
		second <- result{admin, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(inner.release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.True(t, res.admin)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting caller did not return")
	}
	assert.Equal(t, int32(1), inner.calls.Load())

	admin, ok := cached.Get(context.Background(), "@admin:test")
	assert.True(t, ok)
	assert.True(t, admin)
}

func TestRistrettoCachePartition(t *testing.T) {
	ctx := context.Background()
	caches, err := NewRistrettoCache(1*MB, time.Minute, false)
	require.NoError(t, err)
	partition := caches.AdminStatus.(*RistrettoCachePartition[string, bool])

	_, ok := partition.Get(ctx, "@alice:test")
	assert.False(t, ok)

	partition.Set(ctx, "@alice:test", true)
	partition.wait()
	admin, ok := partition.Get(ctx, "@alice:test")
	assert.True(t, ok)
	assert.True(t, admin)

	partition.Unset(ctx, "@alice:test")
	_, ok = partition.Get(ctx, "@alice:test")
	assert.False(t, ok)
}

func TestRedisCachePartitionLocalOnly(t *testing.T) {
	ctx := context.Background()
	partition := &RedisCachePartition[string, bool]{
		data:   cache.New(&cache.Options{LocalCache: cache.NewTinyLFU(100, time.Minute)}),
		Prefix: "moderation:admin:",
		Name:   "admin_status",
		MaxAge: time.Minute,
	}
	assert.Equal(t, "moderation:admin:admin_status/@alice:test", partition.key("@alice:test"))

	_, ok := partition.Get(ctx, "@alice:test")
	assert.False(t, ok)

	partition.Set(ctx, "@alice:test", true)
	admin, ok := partition.Get(ctx, "@alice:test")
	assert.True(t, ok)
	assert.True(t, admin)

	partition.Unset(ctx, "@alice:test")
	_, ok = partition.Get(ctx, "@alice:test")
	assert.False(t, ok)
}

func TestNewCaches(t *testing.T) {
	var cfg config.AdminCache
	cfg.Defaults()
	caches, err := NewCaches(&cfg, false)
	require.NoError(t, err)
	assert.IsType(t, &RistrettoCachePartition[string, bool]{}, caches.AdminStatus)

	cfg.Backend = "memcached"
	_, err = NewCaches(&cfg, false)
	assert.Error(t, err)
}
