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

package column

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/lookup"
	"github.com/scottrbailey/dbtk/internal/record"
	"github.com/scottrbailey/dbtk/internal/transform/expr"
)

// ParseTransform builds a TransformFunc from a shorthand string. Recognized
// forms:
//
//	int[:default]       parse as integer, default on failure/empty
//	float               parse as float64
//	bool                parse "true"/"1"/"yes"/"y"/"t" (case-insensitive) as true
//	digits              strip every non-digit rune
//	number              strip every rune that isn't a digit, '.', or '-'
//	lower               lowercase a string
//	upper               uppercase a string
//	strip               trim leading/trailing whitespace
//	maxlen:N             truncate a string to N runes
//	indicator[:inv][:T/F] map a boolean-ish value to two characters (default Y/N)
//	split:<delim>        split a string into []string
//	nth:N[:<delim>]      take the Nth (0-based) delimited field (default ",")
//	expr:<expression>    evaluate a govaluate expression against the whole record
//	lookup:<table>:<keys>:<returns>[:<cache>]  delegate to internal/lookup
//	validate:<table>:<keys>[:<cache>]          delegate to internal/lookup
//
// facade and onInvalid are passed through to lookup/validate shorthand and
// may be nil for every other form.
func ParseTransform(spec string, facade *cursor.Facade, onInvalid func(lookup.ValidationWarning)) (TransformFunc, error) {
	parts := strings.Split(spec, ":")
	kind := strings.ToLower(parts[0])

	switch kind {
	case "int":
		def := 0
		if len(parts) > 1 {
			d, err := strconv.Atoi(parts[1])
			if err != nil {
				return nil, fmt.Errorf("transform %q: bad int default: %w", spec, err)
			}
			def = d
		}
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			i, ok := toInt(value)
			if !ok {
				return def, nil
			}
			return i, nil
		}, nil

	case "float":
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			f, ok := toFloat(value)
			if !ok {
				return nil, nil
			}
			return f, nil
		}, nil

	case "bool":
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			return toBool(value), nil
		}, nil

	case "digits":
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			return filterRunes(value, func(r rune) bool { return r >= '0' && r <= '9' }), nil
		}, nil

	case "number":
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			return filterRunes(value, func(r rune) bool {
				return (r >= '0' && r <= '9') || r == '.' || r == '-'
			}), nil
		}, nil

	case "lower":
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			s, ok := value.(string)
			if !ok {
				return value, nil
			}
			return strings.ToLower(s), nil
		}, nil

	case "upper":
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			s, ok := value.(string)
			if !ok {
				return value, nil
			}
			return strings.ToUpper(s), nil
		}, nil

	case "strip":
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			s, ok := value.(string)
			if !ok {
				return value, nil
			}
			return strings.TrimSpace(s), nil
		}, nil

	case "maxlen":
		if len(parts) < 2 {
			return nil, fmt.Errorf("transform %q: maxlen requires a length", spec)
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("transform %q: bad maxlen: %w", spec, err)
		}
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			s, ok := value.(string)
			if !ok {
				return value, nil
			}
			r := []rune(s)
			if len(r) > n {
				return string(r[:n]), nil
			}
			return s, nil
		}, nil

	case "indicator":
		inv := false
		trueCh, falseCh := "Y", "N"
		for _, opt := range parts[1:] {
			if strings.EqualFold(opt, "inv") {
				inv = true
				continue
			}
			if chars := strings.SplitN(opt, "/", 2); len(chars) == 2 {
				trueCh, falseCh = chars[0], chars[1]
			}
		}
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			b := toBool(value)
			if inv {
				b = !b
			}
			if b {
				return trueCh, nil
			}
			return falseCh, nil
		}, nil

	case "split":
		delim := ","
		if len(parts) > 1 {
			delim = parts[1]
		}
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			s, ok := value.(string)
			if !ok {
				return value, nil
			}
			return strings.Split(s, delim), nil
		}, nil

	case "nth":
		if len(parts) < 2 {
			return nil, fmt.Errorf("transform %q: nth requires an index", spec)
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("transform %q: bad nth index: %w", spec, err)
		}
		delim := ","
		if len(parts) > 2 {
			delim = parts[2]
		}
		return func(_ context.Context, value any, _ record.Record) (any, error) {
			s, ok := value.(string)
			if !ok {
				return nil, nil
			}
			fields := strings.Split(s, delim)
			if n < 0 || n >= len(fields) {
				return nil, fmt.Errorf("nth:%d out of range for %d fields", n, len(fields))
			}
			return fields[n], nil
		}, nil

	case "expr":
		if len(parts) < 2 {
			return nil, fmt.Errorf("transform %q: expr requires an expression", spec)
		}
		e, err := expr.Parse(strings.Join(parts[1:], ":"))
		if err != nil {
			return nil, fmt.Errorf("transform %q: %w", spec, err)
		}
		return e.Transform, nil

	case "lookup", "validate":
		lk, err := lookup.ParseShorthand(spec, facade, onInvalid)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, _ any, rec record.Record) (any, error) {
			return lk.Call(ctx, rec)
		}, nil

	default:
		return nil, fmt.Errorf("transform %q: unknown kind %q", spec, kind)
	}
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "y", "t":
			return true
		default:
			return false
		}
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return false
	}
}

func filterRunes(value any, keep func(rune) bool) string {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprintf("%v", value)
	}
	var b strings.Builder
	for _, r := range s {
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
