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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/rentalhub/rental-core/pkg/config"
	"github.com/rentalhub/rental-core/pkg/persistence"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets/memory"
	"github.com/rentalhub/rental-core/pkg/tools/safejson"
)

const testConfig = `
store:
  backend: memory
  cacheTTL: 1s
  retry:
    maxRetries: 1
    initialDelay: 1ms
    maxDelay: 1ms
  collections:
    rooms:
      fields:
        code: text
    parkingLots:
      fields:
        plate: text
sentryDSN: https://key@sentry.example.com/1
`

var _ = Describe("CLI", func() {
	var (
		configPath string
		shared     *memory.Spreadsheet
	)

	run := func(args ...string) (string, error) {
		out := &bytes.Buffer{}
		a := newApp(out)
		a.log = zap.NewNop().Sugar()
		a.openSession = func(context.Context, config.StoreConfig) (sheets.Session, error) {
			return shared, nil
		}

		root := newRootCmd(a)
		root.SetArgs(append([]string{"--config", configPath}, args...))
		err := root.ExecuteContext(context.Background())

		return out.String(), err
	}

	decode := func(out string) map[string]interface{} {
		var doc map[string]interface{}
		ExpectWithOffset(1, safejson.Unmarshal([]byte(strings.TrimSpace(out)), &doc)).To(Succeed())

		return doc
	}

	decodeList := func(out string) []map[string]interface{} {
		var docs []map[string]interface{}
		ExpectWithOffset(1, safejson.Unmarshal([]byte(strings.TrimSpace(out)), &docs)).To(Succeed())

		return docs
	}

	BeforeEach(func() {
		configPath = filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(configPath, []byte(testConfig), 0o600)).To(Succeed())
		shared = memory.New()
	})

	It("runs the document lifecycle", func() {
		out, err := run("create", "rooms", `{"_id":"r1","code":"007","floor":2,"status":"available"}`)
		Expect(err).NotTo(HaveOccurred())

		created := decode(out)
		Expect(created).To(HaveKeyWithValue("_id", "r1"))
		Expect(created).To(HaveKeyWithValue("code", "007"))
		Expect(created).To(HaveKey("createdAt"))

		_, err = run("create", "rooms", `{"_id":"r2","floor":5,"status":"occupied"}`)
		Expect(err).NotTo(HaveOccurred())

		out, err = run("find", "rooms", "--filter", `{"status":"available"}`)
		Expect(err).NotTo(HaveOccurred())

		found := decodeList(out)
		Expect(found).To(HaveLen(1))
		Expect(found[0]).To(HaveKeyWithValue("_id", "r1"))

		out, err = run("find", "rooms", "--sort=-floor", "--limit", "1")
		Expect(err).NotTo(HaveOccurred())
		found = decodeList(out)
		Expect(found).To(HaveLen(1))
		Expect(found[0]).To(HaveKeyWithValue("_id", "r2"))

		out, err = run("count", "rooms")
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.TrimSpace(out)).To(Equal("2"))

		out, err = run("update", "rooms", "r1", `{"status":"occupied"}`)
		Expect(err).NotTo(HaveOccurred())

		updated := decode(out)
		Expect(updated).To(HaveKeyWithValue("status", "occupied"))

		out, err = run("aggregate", "rooms", `[{"$match":{"status":"occupied"}},{"$sort":{"floor":1}}]`)
		Expect(err).NotTo(HaveOccurred())
		found = decodeList(out)
		Expect(found).To(HaveLen(2))
		Expect(found[0]).To(HaveKeyWithValue("_id", "r1"))

		out, err = run("delete", "rooms", "r1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("deleted rooms/r1"))

		_, err = run("get", "rooms", "r1")
		Expect(err).To(MatchError(persistence.ErrNotFound))

		out, err = run("get", "rooms", "r2")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring(`"occupied"`))
	})

	It("reports missing documents and malformed input", func() {
		_, err := run("update", "rooms", "nope", `{"a":1}`)
		Expect(err).To(MatchError(persistence.ErrNotFound))

		_, err = run("delete", "rooms", "nope")
		Expect(err).To(MatchError(persistence.ErrNotFound))

		_, err = run("find", "rooms", "--filter", `{"a":{"$near":1}}`)
		Expect(err).To(MatchError(persistence.ErrInvalidFilter))

		_, err = run("find", "rooms", "--filter", `not json`)
		Expect(err).To(MatchError(persistence.ErrInvalidFilter))

		_, err = run("aggregate", "rooms", `[{"$group":{}}]`)
		Expect(err).To(MatchError(persistence.ErrInvalidPipeline))

		_, err = run("create", "rooms", `[1,2]`)
		Expect(err).To(HaveOccurred())

		_, err = run("get", "rooms")
		Expect(err).To(HaveOccurred())
	})

	It("prints the configuration with credentials redacted", func() {
		out, err := run("config", "print")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("backend: memory"))
		Expect(out).To(ContainSubstring("<redacted>"))
		Expect(out).NotTo(ContainSubstring("sentry.example.com"))

		out, err = run("config", "validate")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("configuration is valid"))
	})

	It("fails validation for an unknown field kind", func() {
		Expect(os.WriteFile(configPath, []byte("store:\n  backend: memory\n  collections:\n    rooms:\n      fields:\n        code: bogus\n"), 0o600)).To(Succeed())

		_, err := run("config", "validate")
		Expect(err).To(MatchError(config.ErrInvalidConfig))
	})

	It("layers configured field kinds over the built-in collections", func() {
		cfg, err := config.ReadFile(configPath)
		Expect(err).NotTo(HaveOccurred())

		schemas, err := collectionSchemas(cfg.Store)
		Expect(err).NotTo(HaveOccurred())
		Expect(schemas["rooms"].Kind("code")).To(Equal(persistence.KindText))
		Expect(schemas["rooms"].Kind("roomNumber")).To(Equal(persistence.KindText))
		Expect(schemas["parkingLots"].Kind("plate")).To(Equal(persistence.KindText))

		Expect(servedCollections(cfg.Store)).To(ContainElements("rooms", "invoices", "parkingLots"))
	})
})
