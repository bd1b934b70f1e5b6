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

// Package record implements the hybrid row abstraction (positional, by-name,
// and normalized-name access) shared by cursors, readers, writers, and the
// ETL pipeline.
package record

import (
	"strings"
)

// Schema is the column metadata shared by every Record produced from one
// query or file pass. Records hold only their values; the Schema carries the
// original and normalized names so per-row footprint stays values-only.
type Schema struct {
	names      []string
	normalized []string
	byName     map[string]int
	byNorm     map[string]int
}

// NewSchema builds a Schema from an ordered list of original column names.
// Normalization is total and deterministic: lowercase, non-alphanumeric runs
// collapse to a single underscore, and collisions are suffixed _2, _3, ...
func NewSchema(names []string) *Schema {
	s := &Schema{
		names:      append([]string(nil), names...),
		normalized: make([]string, len(names)),
		byName:     make(map[string]int, len(names)),
		byNorm:     make(map[string]int, len(names)),
	}
	for i, n := range names {
		base := Normalize(n)
		norm := base
		for suffix := 2; ; suffix++ {
			if _, exists := s.byNorm[norm]; !exists {
				break
			}
			norm = base + "_" + itoa(suffix)
		}
		s.normalized[i] = norm
		s.byNorm[norm] = i
		if _, exists := s.byName[n]; !exists {
			s.byName[n] = i
		}
	}
	return s
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := make([]byte, 0, 4)
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Normalize lowercases a name and collapses every run of non-alphanumeric
// characters to a single underscore. It is idempotent: Normalize(Normalize(x))
// == Normalize(x).
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastWasSep := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasSep = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r - 'A' + 'a')
			lastWasSep = false
		default:
			if !lastWasSep && b.Len() > 0 {
				b.WriteByte('_')
				lastWasSep = true
			}
		}
	}
	out := b.String()
	return strings.TrimSuffix(out, "_")
}

// Len returns the number of columns in the schema.
func (s *Schema) Len() int { return len(s.names) }

// Names returns the original column names in position order.
func (s *Schema) Names() []string { return append([]string(nil), s.names...) }

// NormalizedNames returns the normalized column names in position order.
func (s *Schema) NormalizedNames() []string { return append([]string(nil), s.normalized...) }

// IndexOf returns the position of key, preferring an exact original-name
// match and falling back to a normalized-name match. ok is false if key
// matches neither.
func (s *Schema) IndexOf(key string) (int, bool) {
	if i, ok := s.byName[key]; ok {
		return i, true
	}
	if i, ok := s.byNorm[Normalize(key)]; ok {
		return i, true
	}
	return 0, false
}

// withAppended returns a new Schema with one more column appended, used when
// a Record mutation introduces a key the shared schema doesn't have.
func (s *Schema) withAppended(name string) *Schema {
	return NewSchema(append(s.Names(), name))
}
