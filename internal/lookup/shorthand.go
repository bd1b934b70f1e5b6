// Copyright 2024 Google LLC
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

package lookup

import (
	"fmt"
	"strings"

	"github.com/scottrbailey/dbtk/internal/cursor"
)

// ParseShorthand resolves a transform string of the form
// "lookup:<table>:<keys>:<returns>[:<cache>]" or
// "validate:<table>:<keys>[:<cache>]" into a bound Lookup. keys/returns
// are comma-separated column lists. The shorthand binds to facade at
// table-construction time, same as every other shorthand transform.
func ParseShorthand(spec string, facade *cursor.Facade, onInvalid func(ValidationWarning)) (*Lookup, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 3 {
		return nil, fmt.Errorf("lookup: malformed shorthand %q", spec)
	}
	kind := parts[0]

	switch kind {
	case "lookup":
		if len(parts) < 4 || len(parts) > 5 {
			return nil, fmt.Errorf("lookup: malformed lookup shorthand %q, want lookup:<table>:<keys>:<returns>[:<cache>]", spec)
		}
		table := parts[1]
		keys := splitCols(parts[2])
		returns := splitCols(parts[3])
		cache := None
		if len(parts) == 5 {
			var err error
			cache, err = ParseCache(parts[4])
			if err != nil {
				return nil, err
			}
		}
		return New(facade, table, keys, returns, cache), nil

	case "validate":
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("lookup: malformed validate shorthand %q, want validate:<table>:<keys>[:<cache>]", spec)
		}
		table := parts[1]
		keys := splitCols(parts[2])
		cache := None
		if len(parts) == 4 {
			var err error
			cache, err = ParseCache(parts[3])
			if err != nil {
				return nil, err
			}
		}
		return NewValidate(facade, table, keys, cache, onInvalid), nil

	default:
		return nil, fmt.Errorf("lookup: unrecognized shorthand kind %q", kind)
	}
}

func splitCols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}
