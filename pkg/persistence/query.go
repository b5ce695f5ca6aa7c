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

package persistence

import "strings"

// Operator represents MongoDB-style query operators for filtering documents.
//
// Example usage:
//
//	query := persistence.NewQuery().
//	    Filter("status", persistence.Eq, "active").
//	    Filter("rent", persistence.Gt, 3000000).
//	    Filter("buildingId", persistence.In, []string{"b1", "b2"})
type Operator string

const (
	Eq      Operator = "$eq"      // Equal: field == value
	Ne      Operator = "$ne"      // Not equal: field != value
	Gt      Operator = "$gt"      // Greater than: field > value
	Gte     Operator = "$gte"     // Greater than or equal: field >= value
	Lt      Operator = "$lt"      // Less than: field < value
	Lte     Operator = "$lte"     // Less than or equal: field <= value
	In      Operator = "$in"      // In array: field IN (value1, value2, ...)
	Nin     Operator = "$nin"     // Not in array: field NOT IN (value1, value2, ...)
	Regex   Operator = "$regex"   // Pattern match, flags in $options
	Options Operator = "$options" // Flags for $regex: i, m, s, x
	Exists  Operator = "$exists"  // Field presence: true or false
)

// FilterCondition represents a single filter criterion.
type FilterCondition struct {
	Field string
	Op    Operator
	Value interface{}
}

// SortOrder represents sort direction, 1 ascending and -1 descending.
type SortOrder int

const (
	Asc  SortOrder = 1
	Desc SortOrder = -1
)

// SortField represents a field to sort by and its direction.
type SortField struct {
	Field string
	Order SortOrder
}

// Query is a builder for filtering, sorting and pagination criteria.
// Multiple Filter calls are ANDed; the first Sort call is the primary key.
//
//	query := persistence.NewQuery().
//	    Filter("status", persistence.Eq, "unpaid").
//	    Sort("dueDate", persistence.Asc).
//	    Limit(10).
//	    Skip(20)
//
//	docs, err := coll.Aggregate(ctx, query.ToPipeline())
type Query struct {
	Filters    []FilterCondition
	SortBy     []SortField
	LimitCount int
	SkipCount  int
}

// NewQuery creates an empty query builder.
func NewQuery() *Query {
	return &Query{}
}

// Filter adds a filter condition to the query.
func (q *Query) Filter(field string, op Operator, value interface{}) *Query {
	q.Filters = append(q.Filters, FilterCondition{
		Field: field,
		Op:    op,
		Value: value,
	})

	return q
}

// Sort adds a sort field to the query.
func (q *Query) Sort(field string, order SortOrder) *Query {
	q.SortBy = append(q.SortBy, SortField{
		Field: field,
		Order: order,
	})

	return q
}

// Limit sets the maximum number of documents to return. Negative values mean no limit.
func (q *Query) Limit(count int) *Query {
	if count < 0 {
		count = 0
	}

	q.LimitCount = count

	return q
}

// Skip sets the number of documents to skip before returning results. Negative values are treated as 0.
func (q *Query) Skip(count int) *Query {
	if count < 0 {
		count = 0
	}

	q.SkipCount = count

	return q
}

// ToFilter folds the query's conditions into a Filter. Conditions on the same
// field are merged into one operator map, so they are ANDed by the matcher.
// When the same operator is used twice on one field, the last value wins.
func (q *Query) ToFilter() Filter {
	filter := Filter{}

	for _, c := range q.Filters {
		ops, ok := filter[c.Field].(map[string]interface{})
		if !ok {
			ops = map[string]interface{}{}
			filter[c.Field] = ops
		}

		ops[string(c.Op)] = c.Value
	}

	return filter
}

// ToPipeline translates the query into aggregation stages: $match, the sort keys,
// $skip and $limit. Sort stages are stable, so they are emitted from the least to
// the most significant key.
func (q *Query) ToPipeline() Pipeline {
	var pipeline Pipeline

	if len(q.Filters) > 0 {
		pipeline = append(pipeline, MatchStage(q.ToFilter()))
	}

	for i := len(q.SortBy) - 1; i >= 0; i-- {
		pipeline = append(pipeline, SortStage(q.SortBy[i].Field, q.SortBy[i].Order))
	}

	if q.SkipCount > 0 {
		pipeline = append(pipeline, SkipStage(q.SkipCount))
	}

	if q.LimitCount > 0 {
		pipeline = append(pipeline, LimitStage(q.LimitCount))
	}

	return pipeline
}

// ListPipeline builds the pipeline behind a list request: an optional $match,
// one sort key where a "-" prefix means descending, $skip when positive and
// $limit when non-negative.
func ListPipeline(filter Filter, sortSpec string, skip, limit int) Pipeline {
	var pipeline Pipeline
	if len(filter) > 0 {
		pipeline = append(pipeline, MatchStage(filter))
	}

	if sortSpec != "" {
		order := Asc
		if field, ok := strings.CutPrefix(sortSpec, "-"); ok {
			sortSpec, order = field, Desc
		}

		pipeline = append(pipeline, SortStage(sortSpec, order))
	}

	if skip > 0 {
		pipeline = append(pipeline, SkipStage(skip))
	}

	if limit >= 0 {
		pipeline = append(pipeline, LimitStage(limit))
	}

	return pipeline
}
