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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rentalhub/rental-core/pkg/persistence/marshal"
)

var _ = Describe("Phone numbers", func() {
	DescribeTable("DenormalizePhone",
		func(raw interface{}, expected interface{}) {
			Expect(marshal.DenormalizePhone(raw)).To(Equal(expected))
		},
		Entry("9 digits without leading zero", "901234567", "0901234567"),
		Entry("stored as number", float64(901234567), "0901234567"),
		Entry("text prefix", "'0912345678", "0912345678"),
		Entry("already local", "0912345678", "0912345678"),
		Entry("10 digits without leading zero", "9123456789", "09123456789"),
		Entry("international stays untouched", "+84912345678", "+84912345678"),
		Entry("bool passes through", true, true),
	)

	It("canonicalizes every representation to the same digits", func() {
		want := "0912345678"

		Expect(marshal.CanonicalPhone("912345678")).To(Equal(want))
		Expect(marshal.CanonicalPhone(float64(912345678))).To(Equal(want))
		Expect(marshal.CanonicalPhone("0912 345 678")).To(Equal(want))
		Expect(marshal.CanonicalPhone("'0912-345-678")).To(Equal(want))
		Expect(marshal.CanonicalPhone(912345678)).To(Equal(want))
	})
})

var _ = Describe("IsSecretHash", func() {
	DescribeTable("recognizes hash formats",
		func(s string, expected bool) {
			Expect(marshal.IsSecretHash(s)).To(Equal(expected))
		},
		Entry("bcrypt 2b", "$2b$12$abcdefghijklmnopqrstuv", true),
		Entry("bcrypt 2a", "$2a$10$N9qo8uLOickgx2ZMRZoMye", true),
		Entry("argon2id", "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA", true),
		Entry("scrypt", "$scrypt$ln=16,r=8,p=1$c2FsdA$aGFzaA", true),
		Entry("pbkdf2", "$pbkdf2-sha256$29000$c2FsdA$aGFzaA", true),
		Entry("sha512-crypt", "$6$rounds=5000$salt$hash", true),
		Entry("ldap ssha", "{SSHA}W6ph5Mm5Pz8GgiULbPgzG37mj9g=", true),
		Entry("ldap pbkdf2", "{PBKDF2-SHA256}10000$salt$hash", true),
		Entry("json object", `{"a":1}`, false),
		Entry("price", "$100", false),
		Entry("plain text", "hello", false),
	)
})
