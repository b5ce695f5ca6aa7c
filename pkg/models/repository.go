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

package models

import (
	"context"
	"fmt"

	"github.com/rentalhub/rental-core/pkg/persistence"
)

// Collection is the part of sheetstore.Collection a Repository needs.
type Collection interface {
	Name() string
	Find(ctx context.Context, filter persistence.Filter) ([]persistence.Document, error)
	FindByID(ctx context.Context, id interface{}) (persistence.Document, error)
	Create(ctx context.Context, doc persistence.Document) (persistence.Document, error)
	UpdateByID(ctx context.Context, id interface{}, patch persistence.Document) (persistence.Document, error)
	DeleteByID(ctx context.Context, id interface{}) (bool, error)
	Aggregate(ctx context.Context, pipeline persistence.Pipeline) ([]persistence.Document, error)
}

// Repository reads and writes one entity type through a collection.
type Repository[T any] struct {
	coll Collection
}

// NewRepository returns a Repository of T over coll.
func NewRepository[T any](coll Collection) *Repository[T] {
	return &Repository[T]{coll: coll}
}

func (r *Repository[T]) decodeAll(docs []persistence.Document) ([]T, error) {
	out := make([]T, 0, len(docs))

	for _, doc := range docs {
		v, err := FromDocument[T](doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.coll.Name(), err)
		}

		out = append(out, *v)
	}

	return out, nil
}

// Find returns the entities matching filter.
func (r *Repository[T]) Find(ctx context.Context, filter persistence.Filter) ([]T, error) {
	docs, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	return r.decodeAll(docs)
}

// Query runs q as an aggregation pipeline.
func (r *Repository[T]) Query(ctx context.Context, q *persistence.Query) ([]T, error) {
	docs, err := r.coll.Aggregate(ctx, q.ToPipeline())
	if err != nil {
		return nil, err
	}

	return r.decodeAll(docs)
}

// Get returns the entity with id, or persistence.ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := r.coll.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if doc == nil {
		return nil, fmt.Errorf("%w: %s %q", persistence.ErrNotFound, r.coll.Name(), id)
	}

	return FromDocument[T](doc)
}

// Create stores v and returns it as stored, with _id and timestamps.
func (r *Repository[T]) Create(ctx context.Context, v *T) (*T, error) {
	doc, err := ToDocument(v)
	if err != nil {
		return nil, err
	}

	created, err := r.coll.Create(ctx, doc)
	if err != nil {
		return nil, err
	}

	return FromDocument[T](created)
}

// Update applies patch to the entity with id, or returns persistence.ErrNotFound.
func (r *Repository[T]) Update(ctx context.Context, id string, patch persistence.Document) (*T, error) {
	doc, err := r.coll.UpdateByID(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	if doc == nil {
		return nil, fmt.Errorf("%w: %s %q", persistence.ErrNotFound, r.coll.Name(), id)
	}

	return FromDocument[T](doc)
}

// Delete removes the entity with id and reports whether it existed.
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	return r.coll.DeleteByID(ctx, id)
}
