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

package google

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/metrics"
	"github.com/rentalhub/rental-core/pkg/persistence/ids"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
)

// Row is a data row as it was when read. Rows are addressed by position, so a
// handle is only valid until rows above it are deleted.
type Row struct {
	sheet     *Sheet
	header    []string
	rowNumber int

	mu    sync.Mutex
	cells []interface{}
	dirty map[int]string
}

var _ sheets.Row = (*Row)(nil)

func (sh *Sheet) newRow(header []string, rowNumber int, cells []interface{}) *Row {
	padded := make([]interface{}, len(header))
	copy(padded, cells)

	return &Row{
		sheet:     sh,
		header:    header,
		rowNumber: rowNumber,
		cells:     padded,
		dirty:     make(map[int]string),
	}
}

// RowNumber returns the 1-based sheet row.
func (r *Row) RowNumber() int {
	return r.rowNumber
}

func (r *Row) Get(column string) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := slices.Index(r.header, column); i >= 0 {
		return r.cells[i]
	}

	return nil
}

func (r *Row) Set(column string, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.Index(r.header, column)
	if i < 0 {
		return
	}

	r.cells[i] = sheets.Coerce(value)
	r.dirty[i] = value
}

// Save writes the cells changed by Set since the last Save. Like Delete it
// first checks that the row still holds the same document and returns
// ErrRowGone otherwise, so a patch never lands on a neighbour.
func (r *Row) Save(ctx context.Context) error {
	r.mu.Lock()
	data := make([]*sheetsapi.ValueRange, 0, len(r.dirty))
	for i, v := range r.dirty {
		data = append(data, &sheetsapi.ValueRange{
			Range:  r.sheet.a1(columnName(i) + strconv.Itoa(r.rowNumber)),
			Values: [][]interface{}{{v}},
		})
	}
	r.mu.Unlock()

	if len(data) == 0 {
		return nil
	}

	if err := r.verifyPosition(ctx); err != nil {
		return err
	}

	metrics.IncRemoteCall(backendName, "saveRow")

	_, err := r.sheet.values().BatchUpdate(r.sheet.session.spreadsheetID, &sheetsapi.BatchUpdateValuesRequest{
		ValueInputOption: valueInputUserEntered,
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return err
	}

	r.mu.Lock()
	clear(r.dirty)
	r.mu.Unlock()

	return nil
}

// Delete removes the row. When the sheet has an _id column, the row at this
// position is re-read first and ErrRowGone is returned if it now holds another
// document, so a retried delete cannot remove a neighbour.
func (r *Row) Delete(ctx context.Context) error {
	if err := r.verifyPosition(ctx); err != nil {
		return err
	}

	sheetID, err := r.sheet.session.sheetID(ctx, r.sheet.name)
	if err != nil {
		return err
	}

	metrics.IncRemoteCall(backendName, "deleteRow")

	_, err = r.sheet.session.svc.Spreadsheets.BatchUpdate(r.sheet.session.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			DeleteDimension: &sheetsapi.DeleteDimensionRequest{
				Range: &sheetsapi.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(r.rowNumber - 1),
					EndIndex:   int64(r.rowNumber),
					// the first sheet has id 0 and the first data row index 1
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}).Context(ctx).Do()

	return err
}

func (r *Row) verifyPosition(ctx context.Context) error {
	col := slices.Index(r.header, constants.FieldID)
	if col < 0 {
		return nil
	}

	want := r.Get(constants.FieldID)
	ref := columnName(col) + strconv.Itoa(r.rowNumber)

	metrics.IncRemoteCall(backendName, "verifyRow")

	vr, err := r.sheet.values().Get(r.sheet.session.spreadsheetID, r.sheet.a1(ref)).
		ValueRenderOption(valueRenderUnformatted).
		Context(ctx).Do()
	if err != nil {
		return err
	}

	var got interface{}
	if len(vr.Values) > 0 && len(vr.Values[0]) > 0 {
		got = vr.Values[0][0]
	}

	if !ids.CompareIDs(got, want) {
		return fmt.Errorf("%w: row %d of %q holds %v", sheets.ErrRowGone, r.rowNumber, r.sheet.name, got)
	}

	return nil
}

func (r *Row) ToObject() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := make(map[string]interface{}, len(r.header))
	for i, col := range r.header {
		if col == "" || r.cells[i] == nil || r.cells[i] == "" {
			continue
		}

		obj[col] = r.cells[i]
	}

	return obj
}
