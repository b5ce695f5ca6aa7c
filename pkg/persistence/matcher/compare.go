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

package matcher

import (
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/rentalhub/rental-core/pkg/constants"
)

// toFloat converts any Go numeric value to float64.
func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

// equal is strict equality: numbers compare numerically across widths, a string
// never equals a number, and composites compare deeply.
func equal(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)

		return ok && fa == fb
	}

	switch ta := a.(type) {
	case string:
		tb, ok := b.(string)

		return ok && ta == tb
	case bool:
		tb, ok := b.(bool)

		return ok && ta == tb
	case nil:
		return b == nil
	}

	return reflect.DeepEqual(a, b)
}

// compare orders two values of the same family: numbers, strings or times.
func compare(a, b interface{}) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}

		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}

	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}

		return ta.Compare(tb), true
	}

	sa, ok := a.(string)
	if !ok {
		return 0, false
	}

	switch tb := b.(type) {
	case string:
		return strings.Compare(sa, tb), true
	case time.Time:
		// stored timestamps are ISO-8601 text
		return strings.Compare(sa, tb.UTC().Format(constants.TimestampLayout)), true
	default:
		return 0, false
	}
}

// Compare orders a and b the way range operators do. ok is false when the
// values are not of the same family.
func Compare(a, b interface{}) (result int, ok bool) {
	return compare(a, b)
}
