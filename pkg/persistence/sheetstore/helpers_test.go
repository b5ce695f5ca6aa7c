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

package sheetstore_test

import (
	"context"
	"sync"
	"time"

	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}

// hookSession wraps a session so tests can act between two row fetches.
type hookSession struct {
	sheets.Session

	mu     sync.Mutex
	calls  int
	onRows func(call int, inner sheets.Sheet)
}

func (h *hookSession) Sheet(ctx context.Context, name string) (sheets.Sheet, error) {
	sh, err := h.Session.Sheet(ctx, name)
	if err != nil {
		return nil, err
	}

	return &hookSheet{Sheet: sh, session: h}, nil
}

func (h *hookSession) CreateSheet(ctx context.Context, name string, header []string) (sheets.Sheet, error) {
	sh, err := h.Session.CreateSheet(ctx, name, header)
	if err != nil {
		return nil, err
	}

	return &hookSheet{Sheet: sh, session: h}, nil
}

type hookSheet struct {
	sheets.Sheet

	session *hookSession
}

func (h *hookSheet) Rows(ctx context.Context) ([]sheets.Row, error) {
	h.session.mu.Lock()
	h.session.calls++
	call, hook := h.session.calls, h.session.onRows
	h.session.mu.Unlock()

	if hook != nil {
		hook(call, h.Sheet)
	}

	return h.Sheet.Rows(ctx)
}
