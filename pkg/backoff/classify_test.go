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
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/googleapi"

	"github.com/rentalhub/rental-core/pkg/backoff"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

var _ = Describe("IsRetryable", func() {
	DescribeTable("classifies errors",
		func(err error, expected bool) {
			Expect(backoff.IsRetryable(err)).To(Equal(expected))
		},
		Entry("nil", nil, false),
		Entry("googleapi 429", &googleapi.Error{Code: http.StatusTooManyRequests}, true),
		Entry("googleapi 503", &googleapi.Error{Code: http.StatusServiceUnavailable}, true),
		Entry("googleapi 400", &googleapi.Error{Code: http.StatusBadRequest, Message: "bad range"}, false),
		Entry("wrapped googleapi 500", fmt.Errorf("fetch: %w", &googleapi.Error{Code: 500}), true),
		Entry("status coder 502", statusErr(http.StatusBadGateway), true),
		Entry("status coder 404", statusErr(http.StatusNotFound), false),
		Entry("quota message", errors.New("Quota exceeded for quota metric 'Read requests'"), true),
		Entry("rate limit message", errors.New("rateLimitExceeded"), true),
		Entry("plain error", errors.New("boom"), false),
		Entry("permanent wins over marker", backoff.NewPermanentError(errors.New("quota")), false),
		Entry("explicit transient", backoff.NewTransientError(errors.New("boom")), true),
	)

	It("extracts status codes", func() {
		Expect(backoff.StatusCode(&googleapi.Error{Code: 429})).To(Equal(429))
		Expect(backoff.StatusCode(errors.New("x"))).To(Equal(0))
	})
})

var _ = Describe("ErrorCategory", func() {
	It("categorizes uncategorized errors", func() {
		Expect(backoff.IsTransientError(backoff.CategorizeError(&googleapi.Error{Code: 429}))).To(BeTrue())
		Expect(backoff.IsPermanentError(backoff.CategorizeError(errors.New("boom")))).To(BeTrue())
		Expect(backoff.CategorizeError(nil)).To(BeNil())
	})

	It("keeps existing categories", func() {
		ignored := backoff.NewIgnoredError(errors.New("gone"))
		Expect(backoff.CategorizeError(ignored)).To(BeIdenticalTo(ignored))
		Expect(backoff.IsIgnoredError(ignored)).To(BeTrue())
	})

	It("unwraps to the root cause", func() {
		root := errors.New("root")
		wrapped := fmt.Errorf("outer: %w", backoff.NewPermanentError(root))
		Expect(backoff.ExtractOriginalError(wrapped)).To(BeIdenticalTo(root))
		Expect(wrapped.Error()).To(Equal("outer: root"))
	})
})
