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

package persistence

import (
	"fmt"
	"strings"

	"github.com/rentalhub/rental-core/pkg/constants"
)

// FieldKind tells the marshaller how to encode and decode a field.
type FieldKind int

const (
	// KindAuto sniffs strings starting with "[" or "{" as JSON, unless they look like a secret hash.
	KindAuto FieldKind = iota
	// KindText is never parsed.
	KindText
	// KindNumber decodes numeric text to float64.
	KindNumber
	// KindBool decodes TRUE/FALSE.
	KindBool
	// KindJSON is always JSON-encoded and decoded.
	KindJSON
	// KindPhone is written as text and read back in leading-zero local format.
	KindPhone
	// KindSecret is an opaque hash, never parsed.
	KindSecret
	// KindEmail is text compared trimmed and case-insensitively by the matcher.
	KindEmail
)

var kindNames = map[FieldKind]string{
	KindAuto:   "auto",
	KindText:   "text",
	KindNumber: "number",
	KindBool:   "bool",
	KindJSON:   "json",
	KindPhone:  "phone",
	KindSecret: "secret",
	KindEmail:  "email",
}

func (k FieldKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// ParseFieldKind parses a kind name as used in the config file.
func ParseFieldKind(s string) (FieldKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for kind, n := range kindNames {
		if n == name {
			return kind, nil
		}
	}

	return KindAuto, fmt.Errorf("unknown field kind %q", s)
}

// Schema declares field kinds for a collection. Undeclared fields are KindAuto.
type Schema struct {
	Fields map[string]FieldKind
}

// DefaultSchema marks the well-known phone, secret and email fields, and keeps
// _id, createdAt and updatedAt as text.
func DefaultSchema() Schema {
	fields := make(map[string]FieldKind)

	for _, f := range constants.DefaultPhoneFields {
		fields[f] = KindPhone
	}

	for _, f := range constants.DefaultSecretFields {
		fields[f] = KindSecret
	}

	for _, f := range constants.DefaultEmailFields {
		fields[f] = KindEmail
	}

	// store-managed fields are always text, so ids and timestamps are never
	// reinterpreted as numbers or dates
	for _, f := range constants.DefaultHeaders {
		fields[f] = KindText
	}

	return Schema{Fields: fields}
}

// Kind returns the declared kind of field.
func (s Schema) Kind(field string) FieldKind {
	if s.Fields == nil {
		return KindAuto
	}

	return s.Fields[field]
}

// With returns a copy of s with overrides applied.
func (s Schema) With(overrides map[string]FieldKind) Schema {
	fields := make(map[string]FieldKind, len(s.Fields)+len(overrides))
	for k, v := range s.Fields {
		fields[k] = v
	}

	for k, v := range overrides {
		fields[k] = v
	}

	return Schema{Fields: fields}
}
