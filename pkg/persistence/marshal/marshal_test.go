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

package marshal_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rentalhub/rental-core/pkg/persistence"
	"github.com/rentalhub/rental-core/pkg/persistence/marshal"
)

type status string

var _ = Describe("Marshaller", func() {
	var m *marshal.Marshaller

	BeforeEach(func() {
		m = marshal.New(persistence.DefaultSchema())
	})

	Describe("DocumentToRow", func() {
		It("encodes scalars, composites and phone numbers", func() {
			row := m.DocumentToRow(persistence.Document{
				"hoTen":       "Nguyen Van A",
				"soTien":      1500000,
				"dienTich":    25.5,
				"daThanhToan": true,
				"tags":        []string{"a", "b"},
				"diaChi":      map[string]interface{}{"quan": "1"},
				"soDienThoai": "912345678",
				"trangThai":   status("active"),
				"ngayKy":      time.Date(2024, 3, 1, 8, 0, 0, 0, time.FixedZone("ICT", 7*3600)),
				"ghiChu":      nil,
			})

			Expect(row).To(Equal(map[string]string{
				"hoTen":       "Nguyen Van A",
				"soTien":      "1500000",
				"dienTich":    "25.5",
				"daThanhToan": "true",
				"tags":        `["a","b"]`,
				"diaChi":      `{"quan":"1"}`,
				"soDienThoai": "'912345678",
				"trangThai":   "active",
				"ngayKy":      "2024-03-01T01:00:00.000Z",
			}))
		})

		It("does not double the text prefix on phone numbers", func() {
			s, ok := m.EncodeField("phone", "'0912345678")
			Expect(ok).To(BeTrue())
			Expect(s).To(Equal("'0912345678"))
		})

		It("writes numeric phone numbers as numbers", func() {
			s, _ := m.EncodeField("soDienThoai", 912345678)
			Expect(s).To(Equal("912345678"))
		})

		It("forces declared text fields to stay text", func() {
			mm := marshal.New(persistence.DefaultSchema().With(map[string]persistence.FieldKind{"maPhong": persistence.KindText}))
			s, _ := mm.EncodeField("maPhong", "0101")
			Expect(s).To(Equal("'0101"))
		})

		It("keeps ids and timestamps as text", func() {
			row := m.DocumentToRow(persistence.Document{
				"_id":       "00123",
				"createdAt": "2024-01-01T00:00:00.000Z",
				"updatedAt": "2024-01-01T00:00:00.000Z",
			})

			Expect(row).To(Equal(map[string]string{
				"_id":       "'00123",
				"createdAt": "'2024-01-01T00:00:00.000Z",
				"updatedAt": "'2024-01-01T00:00:00.000Z",
			}))
		})

		DescribeTable("keeps strings that would be read as formulas as text",
			func(in, want string) {
				s, ok := m.EncodeField("ghiChu", in)
				Expect(ok).To(BeTrue())
				Expect(s).To(Equal(want))
			},
			Entry("formula", "=1+1", "'=1+1"),
			Entry("hyperlink", `=HYPERLINK("http://x")`, `'=HYPERLINK("http://x")`),
			Entry("plus", "+84 912", "'+84 912"),
			Entry("minus", "-5", "'-5"),
			Entry("at sign", "@home", "'@home"),
			Entry("leading apostrophe", "'quoted", "''quoted"),
			Entry("plain text", "Nguyen Van A", "Nguyen Van A"),
			Entry("empty", "", ""),
		)

		It("does not prefix negative numbers", func() {
			s, _ := m.EncodeField("soTien", -5)
			Expect(s).To(Equal("-5"))
		})

		It("always JSON-encodes declared JSON fields", func() {
			mm := marshal.New(persistence.Schema{Fields: map[string]persistence.FieldKind{"note": persistence.KindJSON}})
			s, _ := mm.EncodeField("note", "plain")
			Expect(s).To(Equal(`"plain"`))
			Expect(mm.DecodeField("note", s)).To(Equal("plain"))
		})
	})

	Describe("RowToDocument", func() {
		It("parses JSON-looking strings", func() {
			doc := m.RowToDocument(map[string]interface{}{
				"tags":   `["a","b"]`,
				"diaChi": `{"quan":"1","tang":2}`,
			})

			Expect(doc["tags"]).To(Equal([]interface{}{"a", "b"}))
			Expect(doc["diaChi"]).To(Equal(map[string]interface{}{"quan": "1", "tang": float64(2)}))
		})

		It("degrades malformed JSON to the raw string", func() {
			doc := m.RowToDocument(map[string]interface{}{"ghiChu": "[chua xac dinh"})
			Expect(doc["ghiChu"]).To(Equal("[chua xac dinh"))
		})

		It("never parses bcrypt hashes", func() {
			hash := "$2b$12$abcdefghijklmnopqrstuv"
			doc := m.RowToDocument(map[string]interface{}{"password": hash, "anything": hash})

			Expect(doc["password"]).To(Equal(hash))
			Expect(doc["anything"]).To(Equal(hash))
		})

		It("never parses LDAP-style hashes even though they start with a brace", func() {
			hash := "{SSHA}W6ph5Mm5Pz8GgiULbPgzG37mj9g="
			doc := m.RowToDocument(map[string]interface{}{"legacyHash": hash})
			Expect(doc["legacyHash"]).To(Equal(hash))
		})

		It("never parses secret fields", func() {
			doc := m.RowToDocument(map[string]interface{}{"matKhau": `{"not":"json"}`})
			Expect(doc["matKhau"]).To(Equal(`{"not":"json"}`))
		})

		It("treats empty cells as absent", func() {
			doc := m.RowToDocument(map[string]interface{}{"_id": "a", "ghiChu": "", "x": nil})
			Expect(doc).To(Equal(persistence.Document{"_id": "a"}))
		})

		It("denormalizes phone numbers", func() {
			doc := m.RowToDocument(map[string]interface{}{
				"soDienThoai": float64(901234567),
				"phone":       "'912345678",
			})

			Expect(doc["soDienThoai"]).To(Equal("0901234567"))
			Expect(doc["phone"]).To(Equal("0912345678"))
		})

		It("passes non-string cells through", func() {
			doc := m.RowToDocument(map[string]interface{}{"soTien": float64(1500000), "daThanhToan": true})
			Expect(doc["soTien"]).To(Equal(float64(1500000)))
			Expect(doc["daThanhToan"]).To(BeTrue())
		})

		It("decodes declared number and bool fields stored as text", func() {
			mm := marshal.New(persistence.Schema{Fields: map[string]persistence.FieldKind{
				"soTien": persistence.KindNumber,
				"daTra":  persistence.KindBool,
				"maSo":   persistence.KindText,
			}})

			doc := mm.RowToDocument(map[string]interface{}{"soTien": "2500", "daTra": "TRUE", "maSo": float64(101)})
			Expect(doc["soTien"]).To(Equal(float64(2500)))
			Expect(doc["daTra"]).To(BeTrue())
			Expect(doc["maSo"]).To(Equal("101"))
		})
	})

	It("round-trips composite documents", func() {
		doc := persistence.Document{
			"_id":    "abc",
			"hoTen":  "Tran Thi B",
			"tags":   []interface{}{"a", "b"},
			"diaChi": map[string]interface{}{"quan": "3", "phuong": []interface{}{"7"}},
		}

		cells := map[string]interface{}{}
		for k, v := range m.DocumentToRow(doc) {
			cells[k] = v
		}

		Expect(m.RowToDocument(cells)).To(Equal(doc))
	})
})
