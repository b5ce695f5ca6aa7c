// Copyright 2025 UMH Systems GmbH
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

// Package rowcache keeps each collection's fetched rows for a short TTL.
//
// Reads within the TTL share one remote fetch. Every write to a collection must
// call Invalidate, after which the next read is guaranteed to fetch again, even if
// a fetch that started before the invalidation is still in flight.
package rowcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rentalhub/rental-core/pkg/backoff"
	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/logger"
	"github.com/rentalhub/rental-core/pkg/metrics"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
)

// FetchFunc loads a collection's rows from the remote store.
type FetchFunc func(ctx context.Context) ([]sheets.Row, error)

type entry struct {
	rows      []sheets.Row
	fetchedAt time.Time
}

// Stats are cumulative counters since the cache was created.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Fetches       uint64
	Invalidations uint64
}

// Cache is safe for concurrent use.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	retry backoff.RetryOptions
	log   *zap.SugaredLogger

	entries *gocache.Cache
	group   singleflight.Group

	// generations are bumped on invalidation; a fetch only stores its result
	// if the generation it started with is still current.
	mu          sync.Mutex
	generations map[string]uint64

	hits, misses, fetches, invalidations atomic.Uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long fetched rows stay valid.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for validity checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRetryOptions sets the retry policy for fetches.
func WithRetryOptions(opts backoff.RetryOptions) Option {
	return func(c *Cache) { c.retry = opts }
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Cache) { c.log = logger.OrNop(log) }
}

// New creates a Cache with a 5s TTL unless configured otherwise.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:         constants.RowCacheTTL,
		now:         time.Now,
		retry:       backoff.DefaultRetryOptions(),
		log:         logger.For(logger.ComponentRowCache),
		generations: make(map[string]uint64),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.entries = gocache.New(c.ttl, constants.RowCacheCleanupInterval)

	return c
}

// TTL returns the configured validity window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the rows of collection, fetching them when there is no valid entry
// or forceRefresh is set. Concurrent non-forced misses share one fetch. A forced
// refresh always performs its own fetch and replaces the entry.
func (c *Cache) Get(ctx context.Context, collection string, forceRefresh bool, fetch FetchFunc) ([]sheets.Row, error) {
	if !forceRefresh {
		if rows, ok := c.lookup(collection); ok {
			c.hits.Add(1)
			metrics.RecordCacheLookup(collection, true)

			return rows, nil
		}
	}

	c.misses.Add(1)
	metrics.RecordCacheLookup(collection, false)

	if forceRefresh {
		return c.fetch(ctx, collection, fetch)
	}

	// the shared fetch must not die with the first caller's context
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(collection, func() (interface{}, error) {
		return c.fetch(shared, collection, fetch)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.([]sheets.Row), nil
	}
}

func (c *Cache) lookup(collection string) ([]sheets.Row, bool) {
	v, ok := c.entries.Get(collection)
	if !ok {
		return nil, false
	}

	e := v.(*entry)
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}

	return e.rows, true
}

func (c *Cache) fetch(ctx context.Context, collection string, fetch FetchFunc) ([]sheets.Row, error) {
	gen := c.generation(collection)

	rows, err := backoff.RetryValue(ctx, "getRows", func() ([]sheets.Row, error) {
		c.fetches.Add(1)

		return fetch(ctx)
	}, c.retry, c.log)
	if err != nil {
		return nil, err
	}

	c.store(collection, gen, rows)

	return rows, nil
}

func (c *Cache) generation(collection string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	gen, ok := c.generations[collection]
	if !ok {
		// register so InvalidateAll can see fetches of never-cached collections
		c.generations[collection] = 0
	}

	return gen
}

func (c *Cache) store(collection string, gen uint64, rows []sheets.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[collection] != gen {
		c.log.Debugw("Dropping rows fetched before invalidation", "collection", collection)

		return
	}

	c.entries.Set(collection, &entry{rows: rows, fetchedAt: c.now()}, gocache.DefaultExpiration)
}

// Invalidate drops the entry for collection. The next Get fetches again.
func (c *Cache) Invalidate(collection string) {
	c.mu.Lock()
	c.generations[collection]++
	c.entries.Delete(collection)
	c.mu.Unlock()

	// in-flight shared fetches started before this point must not be joined
	c.group.Forget(collection)

	c.invalidations.Add(1)
	metrics.RecordCacheInvalidation(collection)
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()

	for collection := range c.generations {
		c.generations[collection]++
		c.group.Forget(collection)
	}

	c.entries.Flush()
	c.mu.Unlock()

	c.invalidations.Add(1)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Fetches:       c.fetches.Load(),
		Invalidations: c.invalidations.Load(),
	}
}
