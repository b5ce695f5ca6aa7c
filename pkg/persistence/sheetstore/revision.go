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
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// rowRevision hashes a row's cells in column order. Two reads of an unchanged
// row give the same revision.
func rowRevision(cells map[string]interface{}) uint64 {
	keys := make([]string, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	h := xxhash.New()
	for _, k := range keys {
		_, _ = fmt.Fprintf(h, "%s\x00%T\x00%v\x01", k, cells[k], cells[k])
	}

	return h.Sum64()
}
