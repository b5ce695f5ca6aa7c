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
	"regexp"
	"strconv"
	"strings"

	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/rentalhub/rental-core/pkg/metrics"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
)

// Sheet is one worksheet of a Session.
type Sheet struct {
	session *Session
	name    string
}

var _ sheets.Sheet = (*Sheet)(nil)

func (sh *Sheet) Name() string { return sh.name }

// a1 returns an A1 range on this sheet, e.g. 'rooms'!A2:C2. An empty ref is the whole sheet.
func (sh *Sheet) a1(ref string) string {
	quoted := "'" + strings.ReplaceAll(sh.name, "'", "''") + "'"
	if ref == "" {
		return quoted
	}

	return quoted + "!" + ref
}

func (sh *Sheet) values() *sheetsapi.SpreadsheetsValuesService {
	return sh.session.svc.Spreadsheets.Values
}

func (sh *Sheet) HeaderRow(ctx context.Context) ([]string, error) {
	metrics.IncRemoteCall(backendName, "headerRow")

	vr, err := sh.values().Get(sh.session.spreadsheetID, sh.a1("1:1")).
		ValueRenderOption(valueRenderUnformatted).
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	if len(vr.Values) == 0 {
		return []string{}, nil
	}

	return headerStrings(vr.Values[0]), nil
}

// SetHeaderRow writes columns into row 1 as raw text.
func (sh *Sheet) SetHeaderRow(ctx context.Context, columns []string) error {
	metrics.IncRemoteCall(backendName, "setHeaderRow")

	cells := make([]interface{}, len(columns))
	for i, c := range columns {
		cells[i] = c
	}

	_, err := sh.values().Update(sh.session.spreadsheetID, sh.a1("A1"), &sheetsapi.ValueRange{
		Values: [][]interface{}{cells},
	}).ValueInputOption(valueInputRaw).Context(ctx).Do()

	return err
}

func (sh *Sheet) Rows(ctx context.Context) ([]sheets.Row, error) {
	metrics.IncRemoteCall(backendName, "rows")

	vr, err := sh.values().Get(sh.session.spreadsheetID, sh.a1("")).
		ValueRenderOption(valueRenderUnformatted).
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	if len(vr.Values) < 2 {
		return []sheets.Row{}, nil
	}

	header := headerStrings(vr.Values[0])
	rows := make([]sheets.Row, 0, len(vr.Values)-1)

	for i, cells := range vr.Values[1:] {
		if blank(cells) {
			continue
		}

		// values[0] is row 1
		rows = append(rows, sh.newRow(header, i+2, cells))
	}

	return rows, nil
}

// AppendRow writes values as user input below the last row.
func (sh *Sheet) AppendRow(ctx context.Context, values map[string]string) (sheets.Row, error) {
	header, err := sh.HeaderRow(ctx)
	if err != nil {
		return nil, err
	}

	cells := make([]interface{}, len(header))
	for i, col := range header {
		cells[i] = values[col]
	}

	metrics.IncRemoteCall(backendName, "appendRow")

	resp, err := sh.values().Append(sh.session.spreadsheetID, sh.a1("A1"), &sheetsapi.ValueRange{
		Values: [][]interface{}{cells},
	}).
		ValueInputOption(valueInputUserEntered).
		InsertDataOption("INSERT_ROWS").
		IncludeValuesInResponse(true).
		ResponseValueRenderOption(valueRenderUnformatted).
		Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	if resp.Updates == nil {
		return nil, fmt.Errorf("append to %q returned no update range", sh.name)
	}

	rowNumber, err := firstRowOf(resp.Updates.UpdatedRange)
	if err != nil {
		return nil, err
	}

	stored := make([]interface{}, len(header))
	if resp.Updates.UpdatedData != nil && len(resp.Updates.UpdatedData.Values) > 0 {
		copy(stored, resp.Updates.UpdatedData.Values[0])
	} else {
		for i, col := range header {
			stored[i] = sheets.Coerce(values[col])
		}
	}

	return sh.newRow(header, rowNumber, stored), nil
}

func headerStrings(cells []interface{}) []string {
	header := make([]string, len(cells))
	for i, c := range cells {
		if c != nil {
			header[i] = strings.TrimSpace(fmt.Sprint(c))
		}
	}

	return header
}

func blank(cells []interface{}) bool {
	for _, c := range cells {
		if c != nil && c != "" {
			return false
		}
	}

	return true
}

var rangeRowPattern = regexp.MustCompile(`![A-Z]+([0-9]+)`)

// firstRowOf extracts the first row number of an A1 range such as 'rooms'!A5:E5.
func firstRowOf(a1 string) (int, error) {
	m := rangeRowPattern.FindStringSubmatch(a1)
	if m == nil {
		return 0, fmt.Errorf("cannot parse row from range %q", a1)
	}

	return strconv.Atoi(m[1])
}

// columnName converts a 0-based column index to its A1 letters.
func columnName(i int) string {
	name := ""
	for i++; i > 0; i = (i - 1) / 26 {
		name = string(rune('A'+(i-1)%26)) + name
	}

	return name
}
