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

package sheetstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rentalhub/rental-core/pkg/backoff"
	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/ctxutil/ctxmutex"
	"github.com/rentalhub/rental-core/pkg/metrics"
	"github.com/rentalhub/rental-core/pkg/persistence"
	"github.com/rentalhub/rental-core/pkg/persistence/ids"
	"github.com/rentalhub/rental-core/pkg/persistence/marshal"
	"github.com/rentalhub/rental-core/pkg/persistence/matcher"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
)

// Operation names used for metrics and logs.
const (
	opFind      = "find"
	opFindOne   = "findOne"
	opFindByID  = "findById"
	opCreate    = "create"
	opUpdate    = "updateById"
	opDelete    = "deleteById"
	opCount     = "countDocuments"
	opAggregate = "aggregate"
)

// Collection is one worksheet seen as a collection of documents.
// It is safe for concurrent use.
type Collection struct {
	store      *Store
	name       string
	marshaller *marshal.Marshaller
	match      matcher.Options
	log        *zap.SugaredLogger

	// sheetMu serializes sheet resolution and header rewrites.
	sheetMu *ctxmutex.CtxMutex
	sheet   sheets.Sheet
}

// Name returns the collection (and worksheet) name.
func (c *Collection) Name() string {
	return c.name
}

// observe records an operation's outcome. Use as: defer c.observe(op, time.Now(), &err).
func (c *Collection) observe(op string, start time.Time, err *error) {
	metrics.ObserveStoreOp(c.name, op, *err, time.Since(start))

	if *err != nil {
		c.log.Errorw("Store operation failed", "operation", op, "error", *err)
	}
}

// resolveSheet returns the worksheet handle, creating the worksheet with the
// default header if it does not exist yet.
func (c *Collection) resolveSheet(ctx context.Context) (sheets.Sheet, error) {
	if err := c.sheetMu.Lock(ctx); err != nil {
		return nil, err
	}
	defer c.sheetMu.Unlock()

	if c.sheet != nil {
		return c.sheet, nil
	}

	sheet, err := backoff.RetryValue(ctx, "loadSheet", func() (sheets.Sheet, error) {
		return c.store.session.Sheet(ctx, c.name)
	}, c.store.retry, c.log)
	if errors.Is(err, sheets.ErrSheetNotFound) {
		c.log.Infow("Creating sheet for new collection", "header", constants.DefaultHeaders)

		sheet, err = backoff.RetryValue(ctx, "createSheet", func() (sheets.Sheet, error) {
			return c.store.session.CreateSheet(ctx, c.name, constants.DefaultHeaders)
		}, c.store.retry, c.log)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load sheet %q: %w", c.name, err)
	}

	c.sheet = sheet

	return sheet, nil
}

// rows returns cached-or-live rows; forceRefresh always goes to the remote store.
func (c *Collection) rows(ctx context.Context, forceRefresh bool) ([]sheets.Row, error) {
	sheet, err := c.resolveSheet(ctx)
	if err != nil {
		return nil, err
	}

	return c.store.cache.Get(ctx, c.name, forceRefresh, sheet.Rows)
}

// findRow locates the row whose _id normalizes to id.
func findRow(rows []sheets.Row, id string) sheets.Row {
	for _, row := range rows {
		if ids.CompareIDs(row.Get(constants.FieldID), id) {
			return row
		}
	}

	return nil
}

func (c *Collection) timestamp() string {
	return c.store.now().UTC().Format(constants.TimestampLayout)
}

// Find returns every document matching filter. A nil or empty filter matches all.
func (c *Collection) Find(ctx context.Context, filter persistence.Filter) (docs []persistence.Document, err error) {
	defer c.observe(opFind, time.Now(), &err)

	return c.find(ctx, filter, -1)
}

func (c *Collection) find(ctx context.Context, filter persistence.Filter, limit int) ([]persistence.Document, error) {
	m, err := matcher.Compile(filter, c.match)
	if err != nil {
		return nil, err
	}

	rows, err := c.rows(ctx, false)
	if err != nil {
		return nil, err
	}

	docs := make([]persistence.Document, 0)

	for _, row := range rows {
		obj := row.ToObject()
		if !m.Matches(obj) {
			continue
		}

		docs = append(docs, c.marshaller.RowToDocument(obj))
		if limit > 0 && len(docs) == limit {
			break
		}
	}

	return docs, nil
}

// FindOne returns the first document matching filter, or nil.
func (c *Collection) FindOne(ctx context.Context, filter persistence.Filter) (doc persistence.Document, err error) {
	defer c.observe(opFindOne, time.Now(), &err)

	docs, err := c.find(ctx, filter, 1)
	if err != nil || len(docs) == 0 {
		return nil, err
	}

	return docs[0], nil
}

// FindByID returns the document with the given id, or nil. id may be any shape
// ids.NormalizeID understands, e.g. a populated relation.
func (c *Collection) FindByID(ctx context.Context, id interface{}) (doc persistence.Document, err error) {
	defer c.observe(opFindByID, time.Now(), &err)

	key, ok := ids.NormalizeID(id)
	if !ok {
		return nil, nil
	}

	rows, err := c.rows(ctx, false)
	if err != nil {
		return nil, err
	}

	row := findRow(rows, key)
	if row == nil {
		return nil, nil
	}

	return c.marshaller.RowToDocument(row.ToObject()), nil
}

// Create stores doc as a new row. It assigns an _id if doc has none and stamps
// createdAt and updatedAt. Ids are not checked for uniqueness.
func (c *Collection) Create(ctx context.Context, doc persistence.Document) (created persistence.Document, err error) {
	defer c.observe(opCreate, time.Now(), &err)

	d := doc.Clone()
	if d == nil {
		d = persistence.Document{}
	}

	if id, ok := ids.NormalizeID(d[constants.FieldID]); ok {
		d[constants.FieldID] = id
	} else {
		d[constants.FieldID] = c.store.ids.NewID()
	}

	now := c.timestamp()
	d[constants.FieldCreatedAt] = now
	d[constants.FieldUpdatedAt] = now

	values := c.marshaller.DocumentToRow(d)

	sheet, err := c.resolveSheet(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := c.ensureHeaders(ctx, sheet, fieldNames(values)); err != nil {
		return nil, err
	}

	row, err := backoff.RetryValue(ctx, "appendRow", func() (sheets.Row, error) {
		return sheet.AppendRow(ctx, values)
	}, c.store.retry, c.log)
	if err != nil {
		return nil, fmt.Errorf("failed to append row: %w", err)
	}

	c.store.cache.Invalidate(c.name)

	return c.marshaller.RowToDocument(row.ToObject()), nil
}

// UpdateByID applies patch to the document with the given id and returns the
// updated document, or nil if there is none. The rows are always re-read from the
// remote store first. "_id" and nil values in patch are ignored; updatedAt is stamped.
//
// Without WithEnsureHeadersOnUpdate, patch fields that have no column are dropped.
func (c *Collection) UpdateByID(ctx context.Context, id interface{}, patch persistence.Document) (updated persistence.Document, err error) {
	defer c.observe(opUpdate, time.Now(), &err)

	key, ok := ids.NormalizeID(id)
	if !ok {
		return nil, nil
	}

	rows, err := c.rows(ctx, true)
	if err != nil {
		return nil, err
	}

	row := findRow(rows, key)
	if row == nil {
		return nil, nil
	}

	values := make(map[string]string, len(patch)+1)
	for field, v := range patch {
		if field == constants.FieldID {
			continue
		}

		if s, ok := c.marshaller.EncodeField(field, v); ok {
			values[field] = s
		}
	}

	values[constants.FieldUpdatedAt] = c.timestamp()

	// whatever happens next, the next read must refetch
	defer c.store.cache.Invalidate(c.name)

	if c.store.ensureHeadersOnUpdate {
		sheet, err := c.resolveSheet(ctx)
		if err != nil {
			return nil, err
		}

		added, err := c.ensureHeaders(ctx, sheet, fieldNames(values))
		if err != nil {
			return nil, err
		}

		if len(added) > 0 {
			// handles only know the header they were read with
			rows, err = c.rows(ctx, true)
			if err != nil {
				return nil, err
			}

			if row = findRow(rows, key); row == nil {
				return nil, nil
			}
		}
	}

	var revision uint64
	if c.store.optimisticLocking {
		revision = rowRevision(row.ToObject())
	}

	// the handle may be shared through the cache; unsaved values must not be
	// visible to other readers
	c.store.cache.Invalidate(c.name)

	for field, s := range values {
		row.Set(field, s)
	}

	if c.store.optimisticLocking {
		if err := c.checkRevision(ctx, key, revision); err != nil {
			return nil, err
		}
	}

	if err := backoff.Retry(ctx, "saveRow", func() error {
		return row.Save(ctx)
	}, c.store.retry, c.log); err != nil {
		return nil, fmt.Errorf("failed to save row: %w", err)
	}

	return c.marshaller.RowToDocument(row.ToObject()), nil
}

// FindByIDAndUpdate is an alias of UpdateByID.
func (c *Collection) FindByIDAndUpdate(ctx context.Context, id interface{}, patch persistence.Document) (persistence.Document, error) {
	return c.UpdateByID(ctx, id, patch)
}

// checkRevision re-reads the live row and compares it with the revision the
// update was based on.
func (c *Collection) checkRevision(ctx context.Context, key string, revision uint64) error {
	live, err := c.rows(ctx, true)
	if err != nil {
		return err
	}

	current := findRow(live, key)
	if current == nil {
		return fmt.Errorf("%w: document %q was deleted concurrently", persistence.ErrConflict, key)
	}

	if rowRevision(current.ToObject()) != revision {
		return fmt.Errorf("%w: document %q changed since it was read", persistence.ErrConflict, key)
	}

	return nil
}

// DeleteByID removes the document's row and reports whether one was found.
func (c *Collection) DeleteByID(ctx context.Context, id interface{}) (deleted bool, err error) {
	defer c.observe(opDelete, time.Now(), &err)

	key, ok := ids.NormalizeID(id)
	if !ok {
		return false, nil
	}

	rows, err := c.rows(ctx, true)
	if err != nil {
		return false, err
	}

	row := findRow(rows, key)
	if row == nil {
		return false, nil
	}

	defer c.store.cache.Invalidate(c.name)

	if err := backoff.Retry(ctx, "deleteRow", func() error {
		return row.Delete(ctx)
	}, c.store.retry, c.log); err != nil {
		return false, fmt.Errorf("failed to delete row: %w", err)
	}

	return true, nil
}

// CountDocuments returns the number of documents matching filter.
func (c *Collection) CountDocuments(ctx context.Context, filter persistence.Filter) (n int, err error) {
	defer c.observe(opCount, time.Now(), &err)

	docs, err := c.find(ctx, filter, -1)
	if err != nil {
		return 0, err
	}

	return len(docs), nil
}
