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

package sheets

import (
	"regexp"
	"strconv"
	"strings"
)

var numericText = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Coerce interprets cell input the way a spreadsheet does for typed-in values:
// a leading apostrophe forces text, numeric text becomes float64 and TRUE/FALSE
// become bool. Empty input is an empty cell (nil).
func Coerce(input string) interface{} {
	if input == "" {
		return nil
	}

	if strings.HasPrefix(input, "'") {
		return input[1:]
	}

	trimmed := strings.TrimSpace(input)
	if numericText.MatchString(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	}

	switch strings.ToUpper(trimmed) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}

	return input
}
