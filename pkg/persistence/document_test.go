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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rentalhub/rental-core/pkg/persistence"
)

var _ = Describe("Document", func() {
	It("returns the _id only when it is a non-empty string", func() {
		id, ok := persistence.Document{"_id": "abc"}.ID()
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal("abc"))

		_, ok = persistence.Document{"_id": ""}.ID()
		Expect(ok).To(BeFalse())

		_, ok = persistence.Document{}.ID()
		Expect(ok).To(BeFalse())
	})

	It("clones nested values", func() {
		doc := persistence.Document{
			"tags": []interface{}{"a", "b"},
			"meta": map[string]interface{}{"floor": float64(2)},
		}

		clone := doc.Clone()
		clone["tags"].([]interface{})[0] = "z"
		clone["meta"].(map[string]interface{})["floor"] = float64(3)

		Expect(doc["tags"]).To(Equal([]interface{}{"a", "b"}))
		Expect(doc["meta"]).To(Equal(map[string]interface{}{"floor": float64(2)}))
	})
})

var _ = Describe("Schema", func() {
	It("marks the default phone, secret and email fields", func() {
		schema := persistence.DefaultSchema()

		Expect(schema.Kind("soDienThoai")).To(Equal(persistence.KindPhone))
		Expect(schema.Kind("phone")).To(Equal(persistence.KindPhone))
		Expect(schema.Kind("matKhau")).To(Equal(persistence.KindSecret))
		Expect(schema.Kind("email")).To(Equal(persistence.KindEmail))
		Expect(schema.Kind("hoTen")).To(Equal(persistence.KindAuto))
	})

	It("applies overrides without touching the original", func() {
		base := persistence.DefaultSchema()
		schema := base.With(map[string]persistence.FieldKind{"tags": persistence.KindJSON, "email": persistence.KindText})

		Expect(schema.Kind("tags")).To(Equal(persistence.KindJSON))
		Expect(schema.Kind("email")).To(Equal(persistence.KindText))
		Expect(base.Kind("email")).To(Equal(persistence.KindEmail))
	})

	It("treats a zero schema as all-auto", func() {
		Expect(persistence.Schema{}.Kind("phone")).To(Equal(persistence.KindAuto))
	})

	DescribeTable("parses kind names",
		func(name string, kind persistence.FieldKind) {
			parsed, err := persistence.ParseFieldKind(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(kind))
			Expect(parsed.String()).To(Equal(kind.String()))
		},
		Entry("phone", "phone", persistence.KindPhone),
		Entry("upper-case json", " JSON ", persistence.KindJSON),
		Entry("secret", "secret", persistence.KindSecret),
	)

	It("rejects unknown kind names", func() {
		_, err := persistence.ParseFieldKind("blob")
		Expect(err).To(HaveOccurred())
	})
})
