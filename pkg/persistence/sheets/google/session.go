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

// Package google implements sheets.Session on the Google Sheets v4 API,
// authenticated as a service account.
//
// Values are read unformatted and written as user input, so a leading
// apostrophe stores text and numeric text becomes a number, exactly as when a
// person types into the sheet.
package google

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/rentalhub/rental-core/pkg/backoff"
	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/logger"
	"github.com/rentalhub/rental-core/pkg/metrics"
	"github.com/rentalhub/rental-core/pkg/persistence/sheets"
)

// ErrInvalidCredentials is returned by NewSession for a missing client email or
// an unusable private key. It is never retried.
var ErrInvalidCredentials = errors.New("invalid service account credentials")

const (
	backendName = "google"

	// tokenURL is Google's OAuth2 token endpoint for service accounts.
	tokenURL = "https://oauth2.googleapis.com/token"

	valueRenderUnformatted = "UNFORMATTED_VALUE"
	valueInputUserEntered  = "USER_ENTERED"
	valueInputRaw          = "RAW"
)

// Credentials identify a service account.
type Credentials struct {
	ClientEmail string
	// PrivateKey is the PEM encoded key from the service account JSON.
	PrivateKey string
}

// Session is an open spreadsheet.
type Session struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	log           *zap.SugaredLogger

	// title -> sheet id
	sheetIDs *expiremap.ExpireMap[string, int64]
}

var _ sheets.Session = (*Session)(nil)

type sessionOptions struct {
	httpClient *http.Client
	endpoint   string
	log        *zap.SugaredLogger
	sheetIDTTL time.Duration
}

// Option configures NewSession.
type Option func(*sessionOptions)

// WithHTTPClient sends requests through client as is, without adding
// service account authentication.
func WithHTTPClient(client *http.Client) Option {
	return func(o *sessionOptions) { o.httpClient = client }
}

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) Option {
	return func(o *sessionOptions) { o.endpoint = endpoint }
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *sessionOptions) { o.log = logger.OrNop(log) }
}

// WithSheetIDTTL sets how long resolved sheet ids are reused.
func WithSheetIDTTL(ttl time.Duration) Option {
	return func(o *sessionOptions) { o.sheetIDTTL = ttl }
}

// newBaseClient returns the transport used below the OAuth2 layer.
// HTTP/2 is disabled, the same as our other outbound clients.
func newBaseClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
		},
		Timeout: 30 * time.Second,
	}
}

// NewSession validates creds and opens the spreadsheet with the given id.
// No request is made until the first sheet is resolved.
func NewSession(ctx context.Context, creds Credentials, spreadsheetID string, opts ...Option) (*Session, error) {
	o := sessionOptions{
		log:        logger.For(logger.ComponentSheets),
		sheetIDTTL: constants.SheetIDCacheTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if spreadsheetID == "" {
		return nil, backoff.NewPermanentError(fmt.Errorf("%w: spreadsheet id is empty", ErrInvalidCredentials))
	}

	key, err := validateCredentials(creds)
	if err != nil {
		return nil, backoff.NewPermanentError(err)
	}

	client := o.httpClient
	if client == nil {
		conf := &jwt.Config{
			Email:      creds.ClientEmail,
			PrivateKey: key,
			Scopes:     []string{sheetsapi.SpreadsheetsScope},
			TokenURL:   tokenURL,
		}
		client = conf.Client(context.WithValue(ctx, oauth2.HTTPClient, newBaseClient()))
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(client)}
	if o.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(o.endpoint))
	}

	svc, err := sheetsapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Session{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		log:           o.log,
		sheetIDs:      expiremap.NewEx[string, int64](o.sheetIDTTL, o.sheetIDTTL),
	}, nil
}

// validateCredentials checks the email and returns the PEM key with real newlines.
func validateCredentials(creds Credentials) ([]byte, error) {
	if strings.TrimSpace(creds.ClientEmail) == "" {
		return nil, fmt.Errorf("%w: client email is empty", ErrInvalidCredentials)
	}

	if strings.TrimSpace(creds.PrivateKey) == "" {
		return nil, fmt.Errorf("%w: private key is empty", ErrInvalidCredentials)
	}

	key := []byte(strings.ReplaceAll(creds.PrivateKey, `\n`, "\n"))

	block, _ := pem.Decode(key)
	if block == nil {
		return nil, fmt.Errorf("%w: private key is not PEM encoded", ErrInvalidCredentials)
	}

	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err != nil {
		if _, err1 := x509.ParsePKCS1PrivateKey(block.Bytes); err1 != nil {
			return nil, fmt.Errorf("%w: cannot parse private key: %w", ErrInvalidCredentials, err)
		}
	}

	return key, nil
}

// Sheet resolves a worksheet by title.
func (s *Session) Sheet(ctx context.Context, name string) (sheets.Sheet, error) {
	if _, ok := s.sheetIDs.Load(name); ok {
		return s.newSheet(name), nil
	}

	if err := s.loadSheetIDs(ctx); err != nil {
		return nil, err
	}

	if _, ok := s.sheetIDs.Load(name); !ok {
		return nil, fmt.Errorf("%w: %q", sheets.ErrSheetNotFound, name)
	}

	return s.newSheet(name), nil
}

// CreateSheet adds a worksheet and writes its header row.
func (s *Session) CreateSheet(ctx context.Context, name string, header []string) (sheets.Sheet, error) {
	metrics.IncRemoteCall(backendName, "addSheet")

	resp, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{Title: name},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		s.sheetIDs.Set(name, resp.Replies[0].AddSheet.Properties.SheetId)
	}

	s.log.Infow("Added worksheet", "sheet", name)

	sh := s.newSheet(name)
	if len(header) > 0 {
		if err := sh.SetHeaderRow(ctx, header); err != nil {
			return nil, err
		}
	}

	return sh, nil
}

// loadSheetIDs refreshes the title -> id map from the spreadsheet metadata.
func (s *Session) loadSheetIDs(ctx context.Context) error {
	metrics.IncRemoteCall(backendName, "getSpreadsheet")

	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return err
	}

	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}

		s.sheetIDs.Set(sh.Properties.Title, sh.Properties.SheetId)
	}

	return nil
}

// sheetID returns the numeric id of a worksheet, refreshing the metadata on a miss.
func (s *Session) sheetID(ctx context.Context, name string) (int64, error) {
	if id, ok := s.sheetIDs.Load(name); ok {
		return *id, nil
	}

	if err := s.loadSheetIDs(ctx); err != nil {
		return 0, err
	}

	id, ok := s.sheetIDs.Load(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", sheets.ErrSheetNotFound, name)
	}

	return *id, nil
}

func (s *Session) newSheet(name string) *Sheet {
	return &Sheet{session: s, name: name}
}
