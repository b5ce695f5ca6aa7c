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

package backoff

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// retryableStatus lists the HTTP status codes worth another attempt.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// rateLimitMarkers are lower-case fragments the Sheets API (and proxies in front of it)
// put into quota and rate-limit error messages.
var rateLimitMarkers = []string{
	"quota",
	"rate limit",
	"ratelimitexceeded",
	"resource_exhausted",
	"too many requests",
}

// statusCoder is implemented by errors that carry an HTTP-like status.
type statusCoder interface {
	StatusCode() int
}

// StatusCode extracts an HTTP-like status code from err, or 0 if there is none.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}

	return 0
}

// IsRetryable reports whether err is a rate-limit or server-side failure of the remote store.
// Errors explicitly categorized as permanent or ignored are never retryable; transient ones always are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category == CategoryTransient
	}

	if retryableStatus[StatusCode(err)] {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
