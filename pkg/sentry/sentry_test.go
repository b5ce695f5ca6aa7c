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
	"errors"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

var _ = Describe("Reporting", func() {
	var events *eventStore

	BeforeEach(func() {
		events = initTestSentry()
		EnableTestMode()
	})

	AfterEach(func() {
		DisableTestMode()
	})

	Describe("getMeaningfulErrorTitle", func() {
		It("cuts at the first separator", func() {
			Expect(getMeaningfulErrorTitle(errors.New("sheet not found: rooms"))).To(Equal("sheet not found"))
		})

		It("truncates long messages", func() {
			title := getMeaningfulErrorTitle(errors.New(strings.Repeat("x", 150)))
			Expect(title).To(HaveLen(100))
			Expect(title).To(HaveSuffix("..."))
		})
	})

	Describe("ReportStoreError", func() {
		It("sends an error event tagged with collection and operation", func() {
			ReportStoreError(zap.NewNop().Sugar(), "invoices", "insertOne", errors.New("append failed"))
			sentry.Flush(time.Second)

			Eventually(events.Len, time.Second, 10*time.Millisecond).Should(Equal(1))

			event := events.GetAll()[0]
			Expect(event.Level).To(Equal(sentry.LevelError))
			Expect(event.Tags).To(HaveKeyWithValue("collection", "invoices"))
			Expect(event.Tags).To(HaveKeyWithValue("operation", "insertOne"))
			Expect(event.Fingerprint).To(ContainElement("collection: invoices"))
		})
	})

	Describe("createSentryEventWithContext", func() {
		It("puts structured values into Extra", func() {
			event := createSentryEventWithContext(sentry.LevelWarning, errors.New("w"), map[string]interface{}{
				"ids":   []string{"a", "b"},
				"count": 2,
			})

			Expect(event.Tags).To(HaveKeyWithValue("count", "2"))
			Expect(event.Extra).To(HaveKey("ids"))
			Expect(event.Threads).To(BeEmpty())
		})
	})

	Describe("debouncing", func() {
		It("drops repeated warnings inside the window", func() {
			DisableTestMode()
			warningDebouncer.lastSent = time.Time{}

			ReportIssue(errors.New("first"), IssueTypeWarning, nil)
			ReportIssue(errors.New("second"), IssueTypeWarning, nil)
			sentry.Flush(time.Second)

			Eventually(events.Len, time.Second, 10*time.Millisecond).Should(Equal(1))
			Consistently(events.Len, 100*time.Millisecond, 10*time.Millisecond).Should(Equal(1))
		})
	})
})
