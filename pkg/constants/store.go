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

package constants

import "time"

const (
	// RowCacheTTL is how long a fetched row set stays valid before the next read refetches it.
	RowCacheTTL = 5 * time.Second

	// RowCacheCleanupInterval is how often expired row sets are purged from memory.
	RowCacheCleanupInterval = 30 * time.Second

	// SheetIDCacheTTL bounds how long a resolved worksheet id is reused.
	SheetIDCacheTTL = 5 * time.Minute
)

// Retry defaults for remote store calls.
const (
	RetryMaxRetries          = 3
	RetryInitialDelay        = 2 * time.Second
	RetryMultiplier          = 2.0
	RetryMaxDelay            = 10 * time.Second
	RetryRandomizationFactor = 0.0
)

// Reserved document fields managed by the store.
const (
	FieldID        = "_id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// TimestampLayout is the ISO-8601 layout used for createdAt/updatedAt (UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// DefaultHeaders is the header a collection gets when it is created lazily.
var DefaultHeaders = []string{FieldID, FieldCreatedAt, FieldUpdatedAt}

// DefaultPhoneFields are the fields treated as telephone numbers unless a schema says otherwise.
var DefaultPhoneFields = []string{"soDienThoai", "phone"}

// DefaultSecretFields are the fields holding password hashes.
var DefaultSecretFields = []string{"password", "matKhau", "passwordHash"}

// DefaultEmailFields are compared case-insensitively by the query matcher.
var DefaultEmailFields = []string{"email"}
