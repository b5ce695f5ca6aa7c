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

package backoff_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/googleapi"

	"github.com/rentalhub/rental-core/pkg/backoff"
)

var _ = Describe("Retry", func() {
	var (
		ctx  context.Context
		opts backoff.RetryOptions
	)

	rateLimited := &googleapi.Error{Code: http.StatusTooManyRequests, Message: "Quota exceeded"}

	BeforeEach(func() {
		ctx = context.Background()
		opts = backoff.RetryOptions{
			MaxRetries:   3,
			InitialDelay: time.Millisecond,
			Multiplier:   2,
			MaxDelay:     3 * time.Millisecond,
		}
	})

	It("returns immediately on success", func() {
		calls := 0
		err := backoff.Retry(ctx, "fetch", func() error {
			calls++

			return nil
		}, opts, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(1))
	})

	It("makes at most maxRetries+1 attempts and returns the last error unchanged", func() {
		calls := 0
		err := backoff.Retry(ctx, "fetch", func() error {
			calls++

			return rateLimited
		}, opts, nil)

		Expect(calls).To(Equal(4))
		Expect(err).To(BeIdenticalTo(rateLimited))
	})

	It("waits min(initial*multiplier^n, max) between attempts", func() {
		var delays []time.Duration
		opts.OnRetry = func(_ int, _ error, d time.Duration) {
			delays = append(delays, d)
		}

		_ = backoff.Retry(ctx, "fetch", func() error { return rateLimited }, opts, nil)

		Expect(delays).To(Equal([]time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}))
	})

	It("reports 1-based attempt numbers to OnRetry", func() {
		var attempts []int
		opts.OnRetry = func(attempt int, _ error, _ time.Duration) {
			attempts = append(attempts, attempt)
		}

		_ = backoff.Retry(ctx, "fetch", func() error { return rateLimited }, opts, nil)

		Expect(attempts).To(Equal([]int{1, 2, 3}))
	})

	It("stops retrying once the call succeeds", func() {
		calls := 0
		err := backoff.Retry(ctx, "append", func() error {
			calls++
			if calls < 3 {
				return errors.New("Rate Limit Exceeded")
			}

			return nil
		}, opts, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(3))
	})

	It("does not retry non-retryable errors", func() {
		notFound := &googleapi.Error{Code: http.StatusNotFound, Message: "Requested entity was not found"}
		calls := 0
		err := backoff.Retry(ctx, "fetch", func() error {
			calls++

			return notFound
		}, opts, nil)

		Expect(calls).To(Equal(1))
		Expect(err).To(BeIdenticalTo(notFound))
	})

	It("makes a single attempt with a negative budget", func() {
		opts.MaxRetries = -1
		calls := 0
		_ = backoff.Retry(ctx, "fetch", func() error {
			calls++

			return rateLimited
		}, opts, nil)

		Expect(calls).To(Equal(1))
	})

	It("stops waiting when the context is cancelled", func() {
		opts.InitialDelay = time.Hour
		opts.MaxDelay = time.Hour

		cctx, cancel := context.WithCancel(ctx)
		opts.OnRetry = func(int, error, time.Duration) { cancel() }

		calls := 0
		done := make(chan error, 1)
		go func() {
			done <- backoff.Retry(cctx, "fetch", func() error {
				calls++

				return rateLimited
			}, opts, nil)
		}()

		Eventually(done, time.Second).Should(Receive(BeIdenticalTo(rateLimited)))
		Expect(calls).To(Equal(1))
	})

	It("returns the produced value from RetryValue", func() {
		calls := 0
		v, err := backoff.RetryValue(ctx, "fetch", func() (int, error) {
			calls++
			if calls == 1 {
				return 0, rateLimited
			}

			return 42, nil
		}, opts, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(42))
	})
})

var _ = Describe("RetryOptions", func() {
	It("uses the store defaults for an empty struct", func() {
		o := backoff.RetryOptions{}
		Expect(o.Delay(0)).To(Equal(2 * time.Second))
		Expect(o.Delay(1)).To(Equal(4 * time.Second))
		Expect(o.Delay(2)).To(Equal(8 * time.Second))
		Expect(o.Delay(3)).To(Equal(10 * time.Second))
	})

	It("exposes the defaults", func() {
		def := backoff.DefaultRetryOptions()
		Expect(def.MaxRetries).To(Equal(3))
		Expect(def.RandomizationFactor).To(BeZero())
	})
})
