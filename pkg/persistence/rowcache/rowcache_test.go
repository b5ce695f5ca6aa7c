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

package rowcache_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/api/googleapi"

	"github.com/rentalhub/rental-core/pkg/backoff"
	"github.com/rentalhub/rental-core/pkg/metrics"
	"github.com/rentalhub/rental-core/pkg/persistence/rowcache"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets/memory"
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

var fastRetry = backoff.RetryOptions{MaxRetries: 2, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 2 * time.Millisecond}

var _ = Describe("Cache", func() {
	var (
		ctx   context.Context
		clock *fakeClock
		cache *rowcache.Cache
		ss    *memory.Spreadsheet
		sheet sheets.Sheet
		fetch rowcache.FetchFunc
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		cache = rowcache.New(
			rowcache.WithTTL(5*time.Second),
			rowcache.WithClock(clock.Now),
			rowcache.WithRetryOptions(fastRetry),
		)

		ss = memory.New()

		var err error
		sheet, err = ss.CreateSheet(ctx, "rooms", []string{"_id"})
		Expect(err).NotTo(HaveOccurred())
		_, err = sheet.AppendRow(ctx, map[string]string{"_id": "r-1"})
		Expect(err).NotTo(HaveOccurred())

		fetch = sheet.Rows
	})

	It("serves reads within the TTL from one fetch", func() {
		rows, err := cache.Get(ctx, "rooms", false, fetch)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))

		clock.Advance(4 * time.Second)
		_, err = cache.Get(ctx, "rooms", false, fetch)
		Expect(err).NotTo(HaveOccurred())

		Expect(ss.Fetches("rooms")).To(Equal(1))
		Expect(cache.Stats()).To(Equal(rowcache.Stats{Hits: 1, Misses: 1, Fetches: 1}))
	})

	It("fetches again once the TTL has elapsed", func() {
		_, _ = cache.Get(ctx, "rooms", false, fetch)
		clock.Advance(5 * time.Second)
		_, _ = cache.Get(ctx, "rooms", false, fetch)

		Expect(ss.Fetches("rooms")).To(Equal(2))
	})

	It("fetches again after an invalidation", func() {
		_, _ = cache.Get(ctx, "rooms", false, fetch)
		_, _ = sheet.AppendRow(ctx, map[string]string{"_id": "r-2"})
		cache.Invalidate("rooms")

		rows, err := cache.Get(ctx, "rooms", false, fetch)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(ss.Fetches("rooms")).To(Equal(2))
		Expect(cache.Stats().Invalidations).To(Equal(uint64(1)))
	})

	It("bypasses a valid entry on forced refresh and replaces it", func() {
		_, _ = cache.Get(ctx, "rooms", false, fetch)
		_, _ = sheet.AppendRow(ctx, map[string]string{"_id": "r-2"})

		rows, _ := cache.Get(ctx, "rooms", true, fetch)
		Expect(rows).To(HaveLen(2))

		rows, _ = cache.Get(ctx, "rooms", false, fetch)
		Expect(rows).To(HaveLen(2))
		Expect(ss.Fetches("rooms")).To(Equal(2))
	})

	It("drops everything on InvalidateAll", func() {
		_, _ = cache.Get(ctx, "rooms", false, fetch)
		cache.InvalidateAll()
		_, _ = cache.Get(ctx, "rooms", false, fetch)

		Expect(ss.Fetches("rooms")).To(Equal(2))
	})

	It("shares one fetch between concurrent misses", func() {
		release := make(chan struct{})
		var calls atomic.Int32

		slow := func(ctx context.Context) ([]sheets.Row, error) {
			calls.Add(1)
			<-release

			return sheet.Rows(ctx)
		}

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				rows, err := cache.Get(ctx, "rooms", false, slow)
				Expect(err).NotTo(HaveOccurred())
				Expect(rows).To(HaveLen(1))
			}()
		}

		Eventually(calls.Load).Should(Equal(int32(1)))
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		Expect(calls.Load()).To(Equal(int32(1)))
	})

	It("does not store rows fetched before an invalidation", func() {
		started := make(chan struct{})
		release := make(chan struct{})

		stale := func(ctx context.Context) ([]sheets.Row, error) {
			close(started)
			<-release

			return sheet.Rows(ctx)
		}

		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)

			_, err := cache.Get(ctx, "rooms", false, stale)
			Expect(err).NotTo(HaveOccurred())
		}()

		<-started
		cache.Invalidate("rooms")
		close(release)
		<-done

		_, _ = cache.Get(ctx, "rooms", false, fetch)
		Expect(ss.Fetches("rooms")).To(Equal(2))
	})

	It("retries transient fetch failures", func() {
		ss.FailNext(memory.OpRows, &googleapi.Error{Code: http.StatusTooManyRequests})

		rows, err := cache.Get(ctx, "rooms", false, fetch)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
		Expect(cache.Stats().Fetches).To(Equal(uint64(2)))
	})

	It("propagates permanent failures without caching", func() {
		boom := errors.New("permission denied")
		ss.FailNext(memory.OpRows, boom)

		_, err := cache.Get(ctx, "rooms", false, fetch)
		Expect(err).To(BeIdenticalTo(boom))

		_, err = cache.Get(ctx, "rooms", false, fetch)
		Expect(err).NotTo(HaveOccurred())
		Expect(cache.Stats().Misses).To(Equal(uint64(2)))
	})

	It("returns when the caller's context ends while waiting", func() {
		release := make(chan struct{})
		defer close(release)

		blocked := func(context.Context) ([]sheets.Row, error) {
			<-release

			return nil, nil
		}

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := cache.Get(cctx, "rooms", false, blocked)
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})

	It("exports hit and miss counters", func() {
		before := testutil.ToFloat64(metrics.CacheLookups("metered", true))

		_, _ = cache.Get(ctx, "metered", false, fetch)
		_, _ = cache.Get(ctx, "metered", false, fetch)

		Expect(testutil.ToFloat64(metrics.CacheLookups("metered", true)) - before).To(Equal(float64(1)))
	})
})
