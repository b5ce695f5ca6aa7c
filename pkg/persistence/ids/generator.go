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

package ids

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const suffixLen = 9

// Generator produces process-unique document ids: the base-36 millisecond
// timestamp, a dash, and a random suffix. Ids sort roughly by creation time.
// They are not cryptographically unique and collisions are not formally excluded.
type Generator struct {
	now func() time.Time
}

// NewGenerator returns a Generator using clock, or time.Now when clock is nil.
func NewGenerator(clock func() time.Time) *Generator {
	if clock == nil {
		clock = time.Now
	}

	return &Generator{now: clock}
}

// NewID returns a fresh id such as "lqz3k2a1-4f9c0e2b7".
func (g *Generator) NewID() string {
	ts := strconv.FormatInt(g.now().UnixMilli(), 36)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]

	return ts + "-" + suffix
}

var defaultGenerator = NewGenerator(nil)

// NewID returns an id from the package default generator.
func NewID() string {
	return defaultGenerator.NewID()
}
