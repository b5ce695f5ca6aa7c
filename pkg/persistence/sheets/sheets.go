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

// Package sheets defines the remote spreadsheet the document store sits on:
// one worksheet per collection, a header row naming the columns, and one row per document.
package sheets

import (
	"context"
	"errors"
)

// ErrSheetNotFound is returned by Session.Sheet when no worksheet has the given title.
var ErrSheetNotFound = errors.New("sheet not found")

// ErrRowGone is returned when saving or deleting a row that no longer exists.
var ErrRowGone = errors.New("row no longer exists")

// Session is an open spreadsheet. Implementations are safe for concurrent use.
type Session interface {
	// Sheet resolves a worksheet by title, or returns ErrSheetNotFound.
	Sheet(ctx context.Context, name string) (Sheet, error)
	// CreateSheet adds a worksheet with the given header row.
	CreateSheet(ctx context.Context, name string, header []string) (Sheet, error)
}

// Sheet is one worksheet.
type Sheet interface {
	Name() string
	// HeaderRow returns the column names, empty when the sheet has no header yet.
	HeaderRow(ctx context.Context) ([]string, error)
	// SetHeaderRow replaces the header row. Existing cells keep their positions.
	SetHeaderRow(ctx context.Context, columns []string) error
	// Rows fetches all data rows.
	Rows(ctx context.Context) ([]Row, error)
	// AppendRow appends one row. Keys without a header column are dropped.
	AppendRow(ctx context.Context, values map[string]string) (Row, error)
}

// Row is a handle on one data row. Values read back as string, float64 or bool.
type Row interface {
	// Get returns the cell under column, or nil.
	Get(column string) interface{}
	// Set stages a new cell value, interpreted like user input on Save.
	// Columns missing from the header the row was read with are ignored.
	Set(column string, value string)
	// Save writes staged values.
	Save(ctx context.Context) error
	// Delete removes the row from the sheet.
	Delete(ctx context.Context) error
	// ToObject returns the row's non-empty cells by column.
	ToObject() map[string]interface{}
}
