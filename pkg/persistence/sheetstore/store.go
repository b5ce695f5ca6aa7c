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

// Package sheetstore is a document store over a spreadsheet: one worksheet per
// collection, one row per document.
//
// Reads go through a short-TTL row cache and a MongoDB-style matcher. Writes
// grow the header row as needed, append or rewrite rows, and invalidate the
// collection's cache entry so the next read in this process sees the change.
//
// There is no locking across processes. Two concurrent UpdateByID calls on one
// document may lose one of the changes unless WithOptimisticLocking is enabled.
package sheetstore

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rentalhub/rental-core/pkg/backoff"
	"github.com/rentalhub/rental-core/pkg/ctxutil/ctxmutex"
	"github.com/rentalhub/rental-core/pkg/logger"
	"github.com/rentalhub/rental-core/pkg/persistence"
	"github.com/rentalhub/rental-core/pkg/persistence/ids"
	"github.com/rentalhub/rental-core/pkg/persistence/marshal"
	"github.com/rentalhub/rental-core/pkg/persistence/matcher"
	"github.com/rentalhub/rental-core/pkg/persistence/rowcache"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
)

// Store hands out collections over one spreadsheet session. Create one per process.
type Store struct {
	session sheets.Session
	cache   *rowcache.Cache
	ids     *ids.Generator
	now     func() time.Time
	retry   backoff.RetryOptions
	log     *zap.SugaredLogger

	schema  persistence.Schema
	schemas map[string]persistence.Schema

	ensureHeadersOnUpdate bool
	optimisticLocking     bool

	mu          sync.Mutex
	collections map[string]*Collection
}

// Option configures a Store.
type Option func(*Store)

// WithCache replaces the default row cache.
func WithCache(cache *rowcache.Cache) Option {
	return func(s *Store) { s.cache = cache }
}

// WithRetryOptions sets the retry policy for remote writes and header management.
// The row cache has its own policy, see rowcache.WithRetryOptions.
func WithRetryOptions(opts backoff.RetryOptions) Option {
	return func(s *Store) { s.retry = opts }
}

// WithSchema sets the field kinds used by every collection without its own schema.
func WithSchema(schema persistence.Schema) Option {
	return func(s *Store) { s.schema = schema }
}

// WithCollectionSchema sets the field kinds of one collection.
func WithCollectionSchema(collection string, schema persistence.Schema) Option {
	return func(s *Store) { s.schemas[collection] = schema }
}

// WithEnsureHeadersOnUpdate makes UpdateByID add header columns for new patch
// fields. Off by default: patch fields without a column are silently dropped.
func WithEnsureHeadersOnUpdate(enabled bool) Option {
	return func(s *Store) { s.ensureHeadersOnUpdate = enabled }
}

// WithOptimisticLocking makes UpdateByID fail with persistence.ErrConflict when
// the row changed between the read and the save.
func WithOptimisticLocking(enabled bool) Option {
	return func(s *Store) { s.optimisticLocking = enabled }
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the id generator used by Create.
func WithIDGenerator(gen *ids.Generator) Option {
	return func(s *Store) {
		if gen != nil {
			s.ids = gen
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Store) { s.log = logger.OrNop(log) }
}

// NewStore creates a Store over session.
func NewStore(session sheets.Session, opts ...Option) *Store {
	s := &Store{
		session:     session,
		now:         time.Now,
		retry:       backoff.DefaultRetryOptions(),
		log:         logger.For(logger.ComponentStore),
		schema:      persistence.DefaultSchema(),
		schemas:     make(map[string]persistence.Schema),
		collections: make(map[string]*Collection),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cache == nil {
		s.cache = rowcache.New(rowcache.WithRetryOptions(s.retry), rowcache.WithLogger(s.log))
	}

	if s.ids == nil {
		s.ids = ids.NewGenerator(s.now)
	}

	return s
}

// Collection returns the collection backed by the worksheet called name.
// The worksheet is created with the default header on first access.
func (s *Store) Collection(name string) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c
	}

	schema, ok := s.schemas[name]
	if !ok {
		schema = s.schema
	}

	c := &Collection{
		store:      s,
		name:       name,
		marshaller: marshal.New(schema),
		match:      matcher.Options{Schema: schema},
		sheetMu:    ctxmutex.NewCtxMutex(),
		log:        s.log.With("collection", name),
	}
	s.collections[name] = c

	return c
}

// Collections lists the collections handed out so far, sorted by name.
func (s *Store) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Cache returns the row cache shared by all collections.
func (s *Store) Cache() *rowcache.Cache {
	return s.cache
}
