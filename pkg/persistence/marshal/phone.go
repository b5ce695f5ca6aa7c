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

package marshal

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// textPrefix forces the spreadsheet to keep a value as text ("0912..." stays "0912...").
const textPrefix = "'"

var barePhone = regexp.MustCompile(`^[1-9][0-9]{8,9}$`)

// DenormalizePhone turns a stored phone cell back into local format with its
// leading zero. Numbers are rendered as integers left-padded to 10 digits. Strings
// lose the text prefix, and bare 9-10 digit strings without a leading zero get one.
func DenormalizePhone(raw interface{}) interface{} {
	switch v := raw.(type) {
	case float64:
		return padPhone(v)
	case float32:
		return padPhone(float64(v))
	case int:
		return padPhone(float64(v))
	case int64:
		return padPhone(float64(v))
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(v, textPrefix))
		if barePhone.MatchString(s) {
			return "0" + s
		}

		return s
	default:
		return raw
	}
}

func padPhone(f float64) string {
	return fmt.Sprintf("%010d", int64(math.Round(f)))
}

// CanonicalPhone reduces a phone value to digits with the leading zero restored,
// so "0912 345 678", "912345678" and 912345678 all compare equal.
func CanonicalPhone(v interface{}) string {
	var s string
	switch t := DenormalizePhone(v).(type) {
	case string:
		s = t
	default:
		s = fmt.Sprint(t)
	}

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if barePhone.MatchString(digits) {
		return "0" + digits
	}

	return digits
}
