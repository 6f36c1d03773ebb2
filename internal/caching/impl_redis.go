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
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/FapBot-tech/MatrixSetup/setup/config"
)

// localCacheSize is the number of entries kept in process in front of
// redis.
const localCacheSize = 10_000

// NewRedisCache creates caches backed by redis, so that several engine
// instances share lookups. A small in-process cache sits in front.
func NewRedisCache(cfg *config.AdminCache) (*Caches, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	// check redis connection
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, fmt.Errorf("could not connect to redis admin cache: %w", err)
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(localCacheSize, cfg.TTL),
	})
	return &Caches{
		AdminStatus: &RedisCachePartition[string, bool]{
			data:   data,
			Prefix: cfg.Redis.Prefix,
			Name:   "admin_status",
			MaxAge: cfg.TTL,
		},
	}, nil
}

type RedisCachePartition[K keyable, V any] struct {
	data   *cache.Cache
	Prefix string
	Name   string
	MaxAge time.Duration
}

func (c *RedisCachePartition[K, V]) key(key K) string {
	return fmt.Sprintf("%s%s/%v", c.Prefix, c.Name, key)
}

func (c *RedisCachePartition[K, V]) Get(ctx context.Context, key K) (value V, ok bool) {
	err := c.data.Get(ctx, c.key(key), &value)
	if err == nil {
		return value, true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logrus.WithError(err).WithField("cache", c.Name).Warn("Failed to read from redis cache")
	}
	var empty V
	return empty, false
}

func (c *RedisCachePartition[K, V]) Set(ctx context.Context, key K, value V) {
	err := c.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   c.key(key),
		Value: value,
		TTL:   c.MaxAge,
	})
	if err != nil {
		logrus.WithError(err).WithField("cache", c.Name).Warn("Failed to write to redis cache")
	}
}

func (c *RedisCachePartition[K, V]) Unset(ctx context.Context, key K) {
	err := c.data.Delete(ctx, c.key(key))
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		logrus.WithError(err).WithField("cache", c.Name).Warn("Failed to delete from redis cache")
	}
}
