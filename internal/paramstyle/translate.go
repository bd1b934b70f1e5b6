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

package paramstyle

import (
	"fmt"
	"strconv"
	"strings"
)

// TranslationError reports malformed canonical SQL or an unrecognized
// parameter style, raised at translate time rather than deferred to bind
// time.
type TranslationError struct {
	Query string
	Msg   string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("paramstyle: %s", e.Msg)
}

// Translated is a canonical query rewritten into a target Style, along with
// the ordered list of canonical parameter names each textual occurrence maps
// back to (repeated uses of the same name produce repeated entries).
type Translated struct {
	Query       string
	Style       Style
	Occurrences []string
}

// Names returns the distinct set of parameter names the query references, in
// first-occurrence order.
func (t *Translated) Names() []string {
	seen := make(map[string]bool, len(t.Occurrences))
	out := make([]string, 0, len(t.Occurrences))
	for _, n := range t.Occurrences {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// BindMap builds the mapping payload for named-style drivers: every
// referenced name is present, missing payload keys bind to nil, and extra
// payload keys are dropped.
func (t *Translated) BindMap(payload map[string]any) map[string]any {
	out := make(map[string]any, len(t.Occurrences))
	for _, n := range t.Names() {
		out[n] = payload[n]
	}
	return out
}

// BindPositional builds the positional payload for positional-style drivers:
// one slot per textual occurrence, in source order.
func (t *Translated) BindPositional(payload map[string]any) []any {
	out := make([]any, len(t.Occurrences))
	for i, n := range t.Occurrences {
		out[i] = payload[n]
	}
	return out
}

// Bind produces whatever payload shape t.Style expects: a map for named
// styles, a slice for positional styles.
func (t *Translated) Bind(payload map[string]any) any {
	if t.Style.IsPositional() {
		return t.BindPositional(payload)
	}
	return t.BindMap(payload)
}

func isIdentStart(r byte) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentCont(r byte) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

// Translate rewrites a canonical query (written using ":name" or "%(name)s"
// placeholders) into target's native style, honoring string literals and
// comments. Both canonical forms are recognised at every position, so one
// query may mix them.
func Translate(query string, target Style) (*Translated, error) {
	var out strings.Builder
	var occurrences []string
	counters := map[string]int{}
	order := 0

	i := 0
	n := len(query)
	for i < n {
		c := query[i]
		switch {
		case c == '\'':
			// Single-quoted string literal; '' is an escaped quote.
			j := i + 1
			for j < n {
				if query[j] == '\'' {
					if j+1 < n && query[j+1] == '\'' {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			out.WriteString(query[i:j])
			i = j
		case c == '-' && i+1 < n && query[i+1] == '-':
			j := strings.IndexByte(query[i:], '\n')
			if j < 0 {
				out.WriteString(query[i:])
				i = n
			} else {
				out.WriteString(query[i : i+j+1])
				i += j + 1
			}
		case c == '/' && i+1 < n && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				return nil, &TranslationError{Query: query, Msg: "unterminated block comment"}
			}
			j := i + 2 + end + 2
			out.WriteString(query[i:j])
			i = j
		case c == ':' && i+1 < n && isIdentStart(query[i+1]):
			j := i + 1
			for j < n && isIdentCont(query[j]) {
				j++
			}
			name := query[i+1 : j]
			order++
			occurrences = append(occurrences, name)
			out.WriteString(placeholder(target, name, counters, order))
			i = j
		case c == '%' && i+1 < n && query[i+1] == '(':
			close := strings.IndexByte(query[i+2:], ')')
			if close < 0 {
				return nil, &TranslationError{Query: query, Msg: "unterminated %(name)s placeholder"}
			}
			name := query[i+2 : i+2+close]
			j := i + 2 + close + 1
			if j >= n || query[j] != 's' {
				return nil, &TranslationError{Query: query, Msg: fmt.Sprintf("malformed %%(name)s placeholder for %q", name)}
			}
			j++
			order++
			occurrences = append(occurrences, name)
			out.WriteString(placeholder(target, name, counters, order))
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}

	return &Translated{Query: out.String(), Style: target, Occurrences: occurrences}, nil
}

// placeholder emits the target-style text for one occurrence of name. counters
// tracks per-name first-use ordinal for numbered/dollar/at styles so repeated
// uses of the same name bind to the same slot.
func placeholder(target Style, name string, counters map[string]int, order int) string {
	switch target {
	case Named:
		return ":" + name
	case NamedPercent:
		return "%(" + name + ")s"
	case QuestionPositional:
		return "?"
	case PercentPositional:
		return "%s"
	case NamedAt:
		return "@" + name
	case Numbered, DollarPositional, NumberedAt:
		idx, ok := counters[name]
		if !ok {
			idx = order
			counters[name] = idx
		}
		switch target {
		case Numbered:
			return ":" + strconv.Itoa(idx)
		case DollarPositional:
			return "$" + strconv.Itoa(idx)
		default: // NumberedAt
			return "@p" + strconv.Itoa(idx)
		}
	default:
		return ":" + name
	}
}
