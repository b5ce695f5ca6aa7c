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

// Package memory provides an in-process implementation of sheets.Session.
//
// It behaves like a spreadsheet written with "user entered" input: a leading
// apostrophe forces text, numeric text becomes a number and TRUE/FALSE become
// booleans. Row handles are snapshots, so a handle saved after someone else
// changed the row overwrites their change, exactly like the remote API.
//
// # Test hooks
//
// Calls and Fetches count operations, and FailNext queues errors that the next
// calls of an operation return instead of touching the data.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/tiendc/go-deepcopy"

	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
)

// Op names a remote operation for counters and failure injection.
type Op string

const (
	OpLoadSheet   Op = "loadSheet"
	OpCreateSheet Op = "createSheet"
	OpHeaderRow   Op = "headerRow"
	OpSetHeader   Op = "setHeaderRow"
	OpRows        Op = "rows"
	OpAppend      Op = "appendRow"
	OpSave        Op = "saveRow"
	OpDelete      Op = "deleteRow"
)

type storedRow struct {
	id    uint64
	cells []interface{}
}

type worksheet struct {
	header []string
	rows   []*storedRow
}

// Spreadsheet is an in-memory spreadsheet. The zero value is not usable; call New.
type Spreadsheet struct {
	mu        sync.RWMutex
	sheets    map[string]*worksheet
	nextRowID uint64

	calls    map[Op]int
	fetches  map[string]int
	failures map[Op][]error
}

var _ sheets.Session = (*Spreadsheet)(nil)

// New creates an empty spreadsheet.
func New() *Spreadsheet {
	return &Spreadsheet{
		sheets:   make(map[string]*worksheet),
		calls:    make(map[Op]int),
		fetches:  make(map[string]int),
		failures: make(map[Op][]error),
	}
}

// FailNext makes the next len(errs) calls of op return errs in order.
func (s *Spreadsheet) FailNext(op Op, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[op] = append(s.failures[op], errs...)
}

// Calls returns how many times op was attempted, failed attempts included.
func (s *Spreadsheet) Calls(op Op) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.calls[op]
}

// Fetches returns how many times the rows of sheet name were fetched.
func (s *Spreadsheet) Fetches(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.fetches[name]
}

// Snapshot returns a copy of a worksheet's header and cells.
func (s *Spreadsheet) Snapshot(name string) ([]string, [][]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.sheets[name]
	if !ok {
		return nil, nil, false
	}

	rows := make([][]interface{}, len(ws.rows))
	for i, r := range ws.rows {
		rows[i] = copyCells(r.cells)
	}

	return slices.Clone(ws.header), rows, true
}

// begin counts op and pops an injected failure. Callers must hold s.mu.
func (s *Spreadsheet) begin(ctx context.Context, op Op) error {
	s.calls[op]++

	if err := ctx.Err(); err != nil {
		return err
	}

	if queued := s.failures[op]; len(queued) > 0 {
		s.failures[op] = queued[1:]

		return queued[0]
	}

	return nil
}

func (s *Spreadsheet) Sheet(ctx context.Context, name string) (sheets.Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(ctx, OpLoadSheet); err != nil {
		return nil, err
	}

	if _, ok := s.sheets[name]; !ok {
		return nil, fmt.Errorf("%w: %s", sheets.ErrSheetNotFound, name)
	}

	return &Sheet{ss: s, name: name}, nil
}

func (s *Spreadsheet) CreateSheet(ctx context.Context, name string, header []string) (sheets.Sheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(ctx, OpCreateSheet); err != nil {
		return nil, err
	}

	if _, exists := s.sheets[name]; exists {
		return nil, fmt.Errorf("a sheet with the name %q already exists", name)
	}

	s.sheets[name] = &worksheet{header: slices.Clone(header)}

	return &Sheet{ss: s, name: name}, nil
}

// Sheet is a handle on one worksheet of a Spreadsheet.
type Sheet struct {
	ss   *Spreadsheet
	name string
}

func (sh *Sheet) Name() string { return sh.name }

// worksheet returns the backing data. Callers must hold sh.ss.mu.
func (sh *Sheet) worksheet() (*worksheet, error) {
	ws, ok := sh.ss.sheets[sh.name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", sheets.ErrSheetNotFound, sh.name)
	}

	return ws, nil
}

func (sh *Sheet) HeaderRow(ctx context.Context) ([]string, error) {
	sh.ss.mu.Lock()
	defer sh.ss.mu.Unlock()

	if err := sh.ss.begin(ctx, OpHeaderRow); err != nil {
		return nil, err
	}

	ws, err := sh.worksheet()
	if err != nil {
		return nil, err
	}

	return slices.Clone(ws.header), nil
}

func (sh *Sheet) SetHeaderRow(ctx context.Context, columns []string) error {
	sh.ss.mu.Lock()
	defer sh.ss.mu.Unlock()

	if err := sh.ss.begin(ctx, OpSetHeader); err != nil {
		return err
	}

	ws, err := sh.worksheet()
	if err != nil {
		return err
	}

	ws.header = slices.Clone(columns)

	return nil
}

func (sh *Sheet) Rows(ctx context.Context) ([]sheets.Row, error) {
	sh.ss.mu.Lock()
	defer sh.ss.mu.Unlock()

	if err := sh.ss.begin(ctx, OpRows); err != nil {
		return nil, err
	}

	ws, err := sh.worksheet()
	if err != nil {
		return nil, err
	}

	sh.ss.fetches[sh.name]++

	rows := make([]sheets.Row, 0, len(ws.rows))
	for _, r := range ws.rows {
		rows = append(rows, sh.handle(ws.header, r))
	}

	return rows, nil
}

func (sh *Sheet) AppendRow(ctx context.Context, values map[string]string) (sheets.Row, error) {
	sh.ss.mu.Lock()
	defer sh.ss.mu.Unlock()

	if err := sh.ss.begin(ctx, OpAppend); err != nil {
		return nil, err
	}

	ws, err := sh.worksheet()
	if err != nil {
		return nil, err
	}

	cells := make([]interface{}, len(ws.header))
	for i, col := range ws.header {
		if v, ok := values[col]; ok {
			cells[i] = sheets.Coerce(v)
		}
	}

	sh.ss.nextRowID++
	stored := &storedRow{id: sh.ss.nextRowID, cells: cells}
	ws.rows = append(ws.rows, stored)

	return sh.handle(ws.header, stored), nil
}

// handle snapshots a stored row. Callers must hold sh.ss.mu.
func (sh *Sheet) handle(header []string, r *storedRow) *Row {
	cells := copyCells(r.cells)
	for len(cells) < len(header) {
		cells = append(cells, nil)
	}

	return &Row{sheet: sh, id: r.id, header: slices.Clone(header), cells: cells}
}

func copyCells(src []interface{}) []interface{} {
	var dst []interface{}
	if err := deepcopy.Copy(&dst, &src); err != nil {
		dst = slices.Clone(src)
	}

	return dst
}

// Row is a snapshot of one row, taken when it was fetched or appended.
type Row struct {
	sheet  *Sheet
	id     uint64
	header []string

	mu    sync.Mutex
	cells []interface{}
}

func (r *Row) index(column string) int {
	return slices.Index(r.header, column)
}

func (r *Row) Get(column string) interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.index(column); i >= 0 {
		return r.cells[i]
	}

	return nil
}

func (r *Row) Set(column string, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.index(column); i >= 0 {
		r.cells[i] = sheets.Coerce(value)
	}
}

// Save writes the whole row back, overwriting any change made since it was read.
func (r *Row) Save(ctx context.Context) error {
	r.mu.Lock()
	cells := copyCells(r.cells)
	r.mu.Unlock()

	ss := r.sheet.ss
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if err := ss.begin(ctx, OpSave); err != nil {
		return err
	}

	stored, err := r.stored()
	if err != nil {
		return err
	}

	for len(stored.cells) < len(cells) {
		stored.cells = append(stored.cells, nil)
	}

	copy(stored.cells, cells)

	return nil
}

func (r *Row) Delete(ctx context.Context) error {
	ss := r.sheet.ss
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if err := ss.begin(ctx, OpDelete); err != nil {
		return err
	}

	ws, err := r.sheet.worksheet()
	if err != nil {
		return err
	}

	i := slices.IndexFunc(ws.rows, func(s *storedRow) bool { return s.id == r.id })
	if i < 0 {
		return sheets.ErrRowGone
	}

	ws.rows = slices.Delete(ws.rows, i, i+1)

	return nil
}

// stored finds the backing row. Callers must hold the spreadsheet lock.
func (r *Row) stored() (*storedRow, error) {
	ws, err := r.sheet.worksheet()
	if err != nil {
		return nil, err
	}

	for _, s := range ws.rows {
		if s.id == r.id {
			return s, nil
		}
	}

	return nil, sheets.ErrRowGone
}

func (r *Row) ToObject() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := make(map[string]interface{}, len(r.header))
	for i, col := range r.header {
		if col == "" || i >= len(r.cells) {
			continue
		}

		v := r.cells[i]
		if v == nil {
			continue
		}

		if s, ok := v.(string); ok && s == "" {
			continue
		}

		obj[col] = v
	}

	return obj
}
