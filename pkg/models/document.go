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
	"fmt"
	"strings"

	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/persistence"
	"github.com/rentalhub/rental-core/pkg/persistence/ids"
	"github.com/rentalhub/rental-core/pkg/tools/safejson"
)

// ToDocument converts an entity to a store document. The store-managed
// timestamps are left out; _id is kept when set.
func ToDocument(v interface{}) (persistence.Document, error) {
	data, err := safejson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}

	var doc persistence.Document
	if err := safejson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}

	delete(doc, constants.FieldCreatedAt)
	delete(doc, constants.FieldUpdatedAt)

	return doc, nil
}

// FromDocument decodes a store document into a new T. Populated relations
// (objects under an "...Id" key, or lists of them under "...Ids") are reduced
// to their ids first.
func FromDocument[T any](doc persistence.Document) (*T, error) {
	data, err := safejson.Marshal(normalizeRefs(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	out := new(T)
	if err := safejson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to decode document into %T: %w", out, err)
	}

	return out, nil
}

func normalizeRefs(doc persistence.Document) persistence.Document {
	out := make(persistence.Document, len(doc))

	for k, v := range doc {
		switch {
		case k == constants.FieldID:
			if id, ok := ids.NormalizeID(v); ok {
				v = id
			}
		case strings.HasSuffix(k, "Ids"):
			v = ids.NormalizeIDArray(v)
		case strings.HasSuffix(k, "Id"):
			if id, ok := ids.NormalizeID(v); ok {
				v = id
			}
		}

		out[k] = v
	}

	return out
}
