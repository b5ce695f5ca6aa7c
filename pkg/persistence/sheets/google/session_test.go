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

package google_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/h2non/gock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/rentalhub/rental-core/pkg/backoff"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets/google"
	"github.com/rentalhub/rental-core/pkg/tools/safejson"
)

const apiHost = "https://sheets.googleapis.com"

// captureBody records the request body of a matched mock.
func captureBody(dst *[]byte) gock.MatchFunc {
	return func(req *http.Request, _ *gock.Request) (bool, error) {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return false, err
		}

		req.Body = io.NopCloser(bytes.NewReader(b))
		*dst = b

		return true, nil
	}
}

func mockMetadata() {
	gock.New(apiHost).
		Get("/v4/spreadsheets/sid$").
		MatchParam("fields", "sheets.properties").
		Reply(200).
		JSON(map[string]interface{}{
			"sheets": []map[string]interface{}{
				{"properties": map[string]interface{}{"sheetId": 0, "title": "rooms"}},
				{"properties": map[string]interface{}{"sheetId": 42, "title": "tenants"}},
			},
		})
}

var _ = Describe("Session", func() {
	var (
		ctx    context.Context
		client *http.Client
		creds  google.Credentials
	)

	newSession := func() *google.Session {
		s, err := google.NewSession(ctx, creds, "sid",
			google.WithHTTPClient(client),
			google.WithLogger(zap.NewNop().Sugar()))
		Expect(err).NotTo(HaveOccurred())

		return s
	}

	BeforeEach(func() {
		ctx = context.Background()
		client = &http.Client{}
		gock.InterceptClient(client)
		creds = google.Credentials{ClientEmail: "svc@project.iam.gserviceaccount.com", PrivateKey: testKey}
	})

	AfterEach(func() {
		gock.OffAll()
		gock.RestoreClient(client)
	})

	Describe("NewSession", func() {
		It("rejects missing or malformed credentials without retrying", func() {
			for _, c := range []google.Credentials{
				{PrivateKey: testKey},
				{ClientEmail: creds.ClientEmail},
				{ClientEmail: creds.ClientEmail, PrivateKey: "not a key"},
			} {
				_, err := google.NewSession(ctx, c, "sid", google.WithHTTPClient(client))
				Expect(errors.Is(err, google.ErrInvalidCredentials)).To(BeTrue())
				Expect(backoff.IsPermanentError(err)).To(BeTrue())
				Expect(backoff.IsRetryable(err)).To(BeFalse())
			}
		})

		It("rejects an empty spreadsheet id", func() {
			_, err := google.NewSession(ctx, creds, "", google.WithHTTPClient(client))
			Expect(err).To(MatchError(google.ErrInvalidCredentials))
		})

		It("accepts keys with escaped newlines", func() {
			creds.PrivateKey = strings.ReplaceAll(testKey, "\n", `\n`)
			newSession()
		})
	})

	Describe("Sheet", func() {
		It("resolves titles from one metadata read", func() {
			mockMetadata()
			s := newSession()

			sh, err := s.Sheet(ctx, "rooms")
			Expect(err).NotTo(HaveOccurred())
			Expect(sh.Name()).To(Equal("rooms"))

			_, err = s.Sheet(ctx, "tenants")
			Expect(err).NotTo(HaveOccurred())
			Expect(gock.IsDone()).To(BeTrue())
		})

		It("reports unknown titles as not found", func() {
			mockMetadata()
			s := newSession()

			_, err := s.Sheet(ctx, "contracts")
			Expect(err).To(MatchError(sheets.ErrSheetNotFound))
		})

		It("passes API errors through for classification", func() {
			gock.New(apiHost).
				Get("/v4/spreadsheets/sid$").
				Reply(429).
				JSON(map[string]interface{}{"error": map[string]interface{}{"code": 429, "message": "Quota exceeded"}})
			s := newSession()

			_, err := s.Sheet(ctx, "rooms")

			var gerr *googleapi.Error
			Expect(errors.As(err, &gerr)).To(BeTrue())
			Expect(gerr.Code).To(Equal(http.StatusTooManyRequests))
			Expect(backoff.IsRetryable(err)).To(BeTrue())
		})
	})

	Describe("CreateSheet", func() {
		It("adds the worksheet and writes its header", func() {
			var addBody, headerBody []byte

			gock.New(apiHost).
				Post("/v4/spreadsheets/sid:batchUpdate$").
				AddMatcher(captureBody(&addBody)).
				Reply(200).
				JSON(map[string]interface{}{
					"replies": []map[string]interface{}{
						{"addSheet": map[string]interface{}{"properties": map[string]interface{}{"sheetId": 7, "title": "invoices"}}},
					},
				})
			gock.New(apiHost).
				Put("/v4/spreadsheets/sid/values/.+A1$").
				MatchParam("valueInputOption", "RAW").
				AddMatcher(captureBody(&headerBody)).
				Reply(200).
				JSON(map[string]interface{}{})

			s := newSession()
			sh, err := s.CreateSheet(ctx, "invoices", []string{"_id", "createdAt", "updatedAt"})
			Expect(err).NotTo(HaveOccurred())
			Expect(sh.Name()).To(Equal("invoices"))
			Expect(gock.IsDone()).To(BeTrue())

			Expect(string(addBody)).To(ContainSubstring(`"title":"invoices"`))

			var vr struct {
				Values [][]interface{} `json:"values"`
			}
			Expect(safejson.Unmarshal(headerBody, &vr)).To(Succeed())
			Expect(vr.Values).To(Equal([][]interface{}{{"_id", "createdAt", "updatedAt"}}))

			// the id came from the reply, no metadata read needed
			_, err = s.Sheet(ctx, "invoices")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
