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

import (
	"fmt"
	"math"
)

// StageKind names an aggregation stage.
type StageKind string

const (
	StageMatch StageKind = "$match"
	StageSort  StageKind = "$sort"
	StageLimit StageKind = "$limit"
	StageSkip  StageKind = "$skip"
)

// Stage is one aggregation stage in MongoDB form, e.g. {"$sort": {"createdAt": -1}}.
// It decodes directly from the JSON a client sends.
type Stage map[string]interface{}

// Pipeline is an ordered list of stages applied to a collection's documents.
type Pipeline []Stage

// ParsedStage is a validated Stage.
type ParsedStage struct {
	Kind  StageKind
	Match Filter
	Sort  SortField
	Count int // $limit / $skip
}

func MatchStage(filter Filter) Stage {
	return Stage{string(StageMatch): filter}
}

func SortStage(field string, order SortOrder) Stage {
	return Stage{string(StageSort): map[string]interface{}{field: int(order)}}
}

func LimitStage(n int) Stage {
	return Stage{string(StageLimit): n}
}

func SkipStage(n int) Stage {
	return Stage{string(StageSkip): n}
}

// Parse validates the stage. A stage has exactly one key. $sort takes exactly
// one field with direction 1 or -1; $limit and $skip take a non-negative integer.
func (s Stage) Parse() (ParsedStage, error) {
	if len(s) != 1 {
		return ParsedStage{}, fmt.Errorf("%w: stage must have exactly one key, got %d", ErrInvalidPipeline, len(s))
	}

	for key, arg := range s {
		switch StageKind(key) {
		case StageMatch:
			filter, ok := asFilter(arg)
			if !ok {
				return ParsedStage{}, fmt.Errorf("%w: $match expects an object, got %T", ErrInvalidPipeline, arg)
			}

			return ParsedStage{Kind: StageMatch, Match: filter}, nil

		case StageSort:
			keys, ok := asFilter(arg)
			if !ok || len(keys) != 1 {
				return ParsedStage{}, fmt.Errorf("%w: $sort expects exactly one field", ErrInvalidPipeline)
			}

			for field, dir := range keys {
				n, ok := asInt(dir)
				if !ok || (n != 1 && n != -1) {
					return ParsedStage{}, fmt.Errorf("%w: $sort direction for %q must be 1 or -1", ErrInvalidPipeline, field)
				}

				return ParsedStage{Kind: StageSort, Sort: SortField{Field: field, Order: SortOrder(n)}}, nil
			}

		case StageLimit, StageSkip:
			n, ok := asInt(arg)
			if !ok || n < 0 {
				return ParsedStage{}, fmt.Errorf("%w: %s expects a non-negative integer, got %v", ErrInvalidPipeline, key, arg)
			}

			return ParsedStage{Kind: StageKind(key), Count: n}, nil

		default:
			return ParsedStage{}, fmt.Errorf("%w: unsupported stage %q", ErrInvalidPipeline, key)
		}
	}

	return ParsedStage{}, ErrInvalidPipeline
}

// Parse validates every stage of the pipeline.
func (p Pipeline) Parse() ([]ParsedStage, error) {
	parsed := make([]ParsedStage, 0, len(p))

	for i, stage := range p {
		ps, err := stage.Parse()
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}

		parsed = append(parsed, ps)
	}

	return parsed, nil
}

func asFilter(v interface{}) (Filter, bool) {
	switch f := v.(type) {
	case Filter:
		return f, true
	case map[string]interface{}:
		return Filter(f), true
	case Document:
		return Filter(f), true
	default:
		return nil, false
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case SortOrder:
		return int(n), true
	case float32:
		return asInt(float64(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}

		return int(n), true
	default:
		return 0, false
	}
}
