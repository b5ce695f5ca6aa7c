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
	"errors"

	"github.com/tiendc/go-deepcopy"
)

// Document is one logical record: a string-keyed map of scalar or composite values.
//
// Every stored document carries an "_id" plus the store-managed "createdAt" and
// "updatedAt" timestamps. Composite values (slices, maps) survive a round trip
// through the spreadsheet as JSON text.
//
// Example:
//
//	doc := persistence.Document{
//	    "hoTen":       "Nguyen Van A",
//	    "soDienThoai": "0912345678",
//	    "tags":        []interface{}{"vip"},
//	}
type Document map[string]interface{}

// ID returns the document's "_id" if it is a non-empty string.
func (d Document) ID() (string, bool) {
	id, ok := d["_id"].(string)
	if !ok || id == "" {
		return "", false
	}

	return id, true
}

// Clone returns a deep copy of d, so callers can mutate nested values freely.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}

	var out Document
	if err := deepcopy.Copy(&out, &d); err != nil {
		// deepcopy only fails on unsupported kinds (funcs, channels), which never
		// come out of a spreadsheet; fall back to a shallow copy.
		out = make(Document, len(d))
		for k, v := range d {
			out[k] = v
		}
	}

	return out
}

// Filter is a MongoDB-style filter: field name to literal or operator map.
//
//	persistence.Filter{
//	    "status": "active",
//	    "rent":   map[string]interface{}{"$gte": 3000000},
//	}
type Filter map[string]interface{}

// ErrNotFound indicates a document or collection was not found.
// Store reads report absence as nil/false; this sentinel is for outer layers.
var ErrNotFound = errors.New("document not found")

// ErrConflict indicates the stored row changed between read and write.
var ErrConflict = errors.New("document conflict")

// ErrInvalidFilter indicates a filter that cannot be compiled, e.g. an unknown operator.
var ErrInvalidFilter = errors.New("invalid filter")

// ErrInvalidPipeline indicates an aggregation stage that is not supported or malformed.
var ErrInvalidPipeline = errors.New("invalid pipeline")
