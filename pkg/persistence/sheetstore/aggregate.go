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
	"sort"
	"time"

	"github.com/rentalhub/rental-core/pkg/persistence"
	"github.com/rentalhub/rental-core/pkg/persistence/matcher"
)

// Aggregate runs a pipeline of $match, $sort, $skip and $limit stages over the
// collection's documents, in order. The pipeline is validated before any read.
func (c *Collection) Aggregate(ctx context.Context, pipeline persistence.Pipeline) (docs []persistence.Document, err error) {
	defer c.observe(opAggregate, time.Now(), &err)

	stages, err := pipeline.Parse()
	if err != nil {
		return nil, err
	}

	// compile every $match first so a bad filter fails without a fetch
	matchers := make(map[int]*matcher.Matcher)
	for i, st := range stages {
		if st.Kind != persistence.StageMatch {
			continue
		}

		m, err := matcher.Compile(st.Match, c.match)
		if err != nil {
			return nil, err
		}

		matchers[i] = m
	}

	docs, err = c.find(ctx, nil, -1)
	if err != nil {
		return nil, err
	}

	for i, st := range stages {
		switch st.Kind {
		case persistence.StageMatch:
			docs = filterDocs(docs, matchers[i])
		case persistence.StageSort:
			sortDocs(docs, st.Sort)
		case persistence.StageSkip:
			if st.Count >= len(docs) {
				docs = docs[:0]
			} else {
				docs = docs[st.Count:]
			}
		case persistence.StageLimit:
			if st.Count < len(docs) {
				docs = docs[:st.Count]
			}
		}
	}

	return docs, nil
}

func filterDocs(docs []persistence.Document, m *matcher.Matcher) []persistence.Document {
	out := make([]persistence.Document, 0, len(docs))
	for _, d := range docs {
		if m.Matches(d) {
			out = append(out, d)
		}
	}

	return out
}

// sortDocs is a stable sort. Missing values order before present ones, and
// values of different families keep their relative order.
func sortDocs(docs []persistence.Document, by persistence.SortField) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, aok := docs[i][by.Field]
		b, bok := docs[j][by.Field]

		var cmp int

		switch {
		case !aok && !bok:
			return false
		case !aok:
			cmp = -1
		case !bok:
			cmp = 1
		default:
			var ok bool
			if cmp, ok = matcher.Compare(a, b); !ok {
				return false
			}
		}

		if by.Order == persistence.Desc {
			return cmp > 0
		}

		return cmp < 0
	})
}
