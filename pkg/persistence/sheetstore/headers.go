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
	"fmt"
	"sort"

	"github.com/rentalhub/rental-core/pkg/backoff"
	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
)

// fieldNames returns the keys of a row value map.
func fieldNames(values map[string]string) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}

	return names
}

// canonicalOrder sorts fields with the reserved ones first, the rest by name.
func canonicalOrder(fields []string) []string {
	rank := func(f string) int {
		for i, reserved := range constants.DefaultHeaders {
			if f == reserved {
				return i
			}
		}

		return len(constants.DefaultHeaders)
	}

	out := append([]string(nil), fields...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}

		return out[i] < out[j]
	})

	return out
}

// ensureHeaders appends a column for every field the header row lacks and
// returns the columns it added. Existing columns never move or disappear.
func (c *Collection) ensureHeaders(ctx context.Context, sheet sheets.Sheet, fields []string) ([]string, error) {
	if err := c.sheetMu.Lock(ctx); err != nil {
		return nil, err
	}
	defer c.sheetMu.Unlock()

	header, err := backoff.RetryValue(ctx, "headerRow", func() ([]string, error) {
		return sheet.HeaderRow(ctx)
	}, c.store.retry, c.log)
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}

	var missing []string

	if len(header) == 0 {
		// a blank sheet starts from the reserved columns
		missing = append(missing, constants.DefaultHeaders...)
		for _, col := range constants.DefaultHeaders {
			present[col] = true
		}
	}

	for _, f := range fields {
		if !present[f] {
			missing = append(missing, f)
			present[f] = true
		}
	}

	if len(missing) == 0 {
		return nil, nil
	}

	missing = canonicalOrder(missing)
	next := append(append([]string(nil), header...), missing...)

	if err := backoff.Retry(ctx, "setHeaderRow", func() error {
		return sheet.SetHeaderRow(ctx, next)
	}, c.store.retry, c.log); err != nil {
		return nil, fmt.Errorf("failed to extend header row: %w", err)
	}

	c.log.Debugw("Extended header row", "added", missing)

	return missing, nil
}
