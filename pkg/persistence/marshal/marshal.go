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

// Package marshal converts between documents and spreadsheet rows.
//
// Write side: every value becomes the text the spreadsheet should see. Read side:
// cells come back as string, float64 or bool and are decoded per field kind.
// Neither direction fails; malformed data degrades to the raw value.
package marshal

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rentalhub/rental-core/pkg/constants"
	"github.com/rentalhub/rental-core/pkg/persistence"
	"github.com/rentalhub/rental-core/pkg/tools/safejson"
)

// Marshaller encodes and decodes fields according to a schema.
type Marshaller struct {
	Schema persistence.Schema
}

// New returns a Marshaller for schema.
func New(schema persistence.Schema) *Marshaller {
	return &Marshaller{Schema: schema}
}

// DocumentToRow encodes every non-nil field of doc.
func (m *Marshaller) DocumentToRow(doc persistence.Document) map[string]string {
	row := make(map[string]string, len(doc))

	for field, v := range doc {
		if s, ok := m.EncodeField(field, v); ok {
			row[field] = s
		}
	}

	return row
}

// EncodeField returns the cell text for v, or false if the field should not be written.
func (m *Marshaller) EncodeField(field string, v interface{}) (string, bool) {
	if v == nil {
		return "", false
	}

	switch m.Schema.Kind(field) {
	case persistence.KindPhone:
		if s, ok := v.(string); ok {
			return textPrefix + strings.TrimPrefix(s, textPrefix), true
		}

		return encodeScalar(v), true

	case persistence.KindText, persistence.KindSecret, persistence.KindEmail:
		if s, ok := v.(string); ok {
			if s == "" {
				return "", true
			}

			return textPrefix + s, true
		}

		return encodeScalar(v), true

	case persistence.KindJSON:
		return encodeJSON(v), true

	default:
		out := encodeScalar(v)
		if reflect.ValueOf(v).Kind() == reflect.String && startsLikeInput(out) {
			out = textPrefix + out
		}

		return out, true
	}
}

// startsLikeInput reports whether USER_ENTERED would read s as a formula or strip
// its leading apostrophe.
func startsLikeInput(s string) bool {
	if s == "" {
		return false
	}

	switch s[0] {
	case '=', '+', '-', '@', '\'':
		return true
	}

	return false
}

// encodeScalar renders strings, numbers, bools and times as text and everything else as JSON.
func encodeScalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(t).Int(), 10)
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(t).Uint(), 10)
	case float32:
		return formatNumber(float64(t))
	case float64:
		return formatNumber(t)
	case time.Time:
		return t.UTC().Format(constants.TimestampLayout)
	case fmt.Stringer:
		return t.String()
	}

	// named scalar types, e.g. type Status string
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return formatNumber(rv.Float())
	default:
		return encodeJSON(v)
	}
}

func formatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}

func encodeJSON(v interface{}) string {
	encoded, err := safejson.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}

	return string(encoded)
}

// RowToDocument decodes a row's cells. Empty cells are treated as absent.
func (m *Marshaller) RowToDocument(values map[string]interface{}) persistence.Document {
	doc := make(persistence.Document, len(values))

	for field, raw := range values {
		if isEmpty(raw) {
			continue
		}

		doc[field] = m.DecodeField(field, raw)
	}

	return doc
}

func isEmpty(raw interface{}) bool {
	if raw == nil {
		return true
	}

	s, ok := raw.(string)

	return ok && s == ""
}

// DecodeField turns a stored cell back into a document value.
func (m *Marshaller) DecodeField(field string, raw interface{}) interface{} {
	switch m.Schema.Kind(field) {
	case persistence.KindPhone:
		return DenormalizePhone(raw)

	case persistence.KindText, persistence.KindSecret, persistence.KindEmail:
		if s, ok := raw.(string); ok {
			return s
		}

		return encodeScalar(raw)

	case persistence.KindNumber:
		if s, ok := raw.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}

		return raw

	case persistence.KindBool:
		if s, ok := raw.(string); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
				return b
			}
		}

		return raw

	case persistence.KindJSON:
		if s, ok := raw.(string); ok {
			return decodeJSON(s)
		}

		return raw

	default:
		s, ok := raw.(string)
		if !ok || !looksLikeJSON(s) || IsSecretHash(s) {
			return raw
		}

		return decodeJSON(s)
	}
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")
}

func decodeJSON(s string) interface{} {
	var v interface{}
	if err := safejson.Unmarshal([]byte(s), &v); err != nil {
		return s
	}

	return v
}
