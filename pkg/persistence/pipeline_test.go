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

package persistence_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rentalhub/rental-core/pkg/persistence"
)

var _ = Describe("Stage", func() {
	It("parses stages decoded from JSON", func() {
		pipeline := persistence.Pipeline{
			{"$match": map[string]interface{}{"status": "active"}},
			{"$sort": map[string]interface{}{"createdAt": float64(-1)}},
			{"$limit": float64(5)},
		}

		stages, err := pipeline.Parse()
		Expect(err).NotTo(HaveOccurred())
		Expect(stages[0].Match).To(Equal(persistence.Filter{"status": "active"}))
		Expect(stages[1].Sort.Order).To(Equal(persistence.Desc))
		Expect(stages[2].Count).To(Equal(5))
	})

	DescribeTable("rejects malformed stages",
		func(stage persistence.Stage) {
			_, err := stage.Parse()
			Expect(errors.Is(err, persistence.ErrInvalidPipeline)).To(BeTrue())
		},
		Entry("group", persistence.Stage{"$group": map[string]interface{}{}}),
		Entry("two keys", persistence.Stage{"$limit": 1, "$skip": 1}),
		Entry("multi-key sort", persistence.Stage{"$sort": map[string]interface{}{"a": 1, "b": -1}}),
		Entry("sort direction 2", persistence.Stage{"$sort": map[string]interface{}{"a": 2}}),
		Entry("negative limit", persistence.Stage{"$limit": -1}),
		Entry("fractional skip", persistence.Stage{"$skip": 1.5}),
		Entry("match not an object", persistence.Stage{"$match": "x"}),
	)

	It("reports the failing stage index", func() {
		_, err := persistence.Pipeline{persistence.LimitStage(1), {"$lookup": nil}}.Parse()
		Expect(err).To(MatchError(ContainSubstring("stage 1")))
	})
})
