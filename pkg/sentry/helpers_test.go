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

package sentry

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

type eventStore struct {
	mu     sync.Mutex
	events []*sentry.Event
}

func (s *eventStore) Add(event *sentry.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *eventStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.events)
}

func (s *eventStore) GetAll() []*sentry.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*sentry.Event, len(s.events))
	copy(out, s.events)

	return out
}

type mockTransport struct {
	store *eventStore
}

func (t *mockTransport) Configure(options sentry.ClientOptions)    {}
func (t *mockTransport) Flush(timeout time.Duration) bool          { return true }
func (t *mockTransport) FlushWithContext(ctx context.Context) bool { return true }
func (t *mockTransport) Close()                                    {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.store.Add(event)
}

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (d *discardWriter) Sync() error                 { return nil }

// initTestSentry points the global hub at an in-memory transport.
func initTestSentry() *eventStore {
	store := &eventStore{}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:       "https://test@sentry.io/123",
		Transport: &mockTransport{store: store},
	})
	if err != nil {
		panic(err)
	}

	return store
}
