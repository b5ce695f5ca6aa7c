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

// Package ids turns the many shapes a reference can take into one comparable string.
//
// A relation field may hold a raw id ("abc123"), a populated object
// ({"_id": "abc123", "name": "Room 1"}), a one-element list, or a number that the
// spreadsheet handed back as float64. All of them normalize to "abc123".
package ids

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/rentalhub/rental-core/pkg/constants"
)

// NormalizeID returns the string form of an id-like value, or false if v does not
// carry an id.
func NormalizeID(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case int:
		return strconv.Itoa(t), true
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(t).Int(), 10), true
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(t).Uint(), 10), true
	case float32:
		return formatFloat(float64(t)), true
	case float64:
		return formatFloat(t), true
	case map[string]interface{}:
		return fromMap(t)
	case fmt.Stringer:
		return nonEmpty(t.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "", false
		}

		return NormalizeID(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return "", false
		}

		return NormalizeID(rv.Index(0).Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return "", false
		}

		m := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}

		return fromMap(m)
	case reflect.String:
		return nonEmpty(rv.String())
	default:
		return nonEmpty(fmt.Sprint(v))
	}
}

func fromMap(m map[string]interface{}) (string, bool) {
	if id, ok := NormalizeID(m[constants.FieldID]); ok {
		return id, true
	}

	return NormalizeID(m["id"])
}

func nonEmpty(s string) (string, bool) {
	return s, s != ""
}

// formatFloat renders integral floats without a fraction, so 42.0 and 42 agree.
func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}

// NormalizeIDArray normalizes every element of v and drops the ones without an id.
// A non-slice value is treated as a one-element list.
func NormalizeIDArray(v interface{}) []string {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		if id, ok := NormalizeID(v); ok {
			return []string{id}
		}

		return nil
	}

	out := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		if id, ok := NormalizeID(rv.Index(i).Interface()); ok {
			out = append(out, id)
		}
	}

	return out
}

// CompareIDs reports whether a and b refer to the same id. Two values without an id
// are never equal.
func CompareIDs(a, b interface{}) bool {
	idA, okA := NormalizeID(a)
	idB, okB := NormalizeID(b)

	return okA && okB && idA == idB
}

// IsIDInArray reports whether id appears in arr after normalization.
func IsIDInArray(id interface{}, arr interface{}) bool {
	want, ok := NormalizeID(id)
	if !ok {
		return false
	}

	for _, candidate := range NormalizeIDArray(arr) {
		if candidate == want {
			return true
		}
	}

	return false
}
