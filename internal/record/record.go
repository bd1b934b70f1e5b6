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

package record

import "fmt"

// ErrKeyNotFound is returned by Value when key matches neither an original
// nor a normalized column name.
type ErrKeyNotFound struct {
	Key string
}

func (e *ErrKeyNotFound) Error() string {
	return fmt.Sprintf("record: key %q not found", e.Key)
}

// Record is an ordered row of values bound to a shared Schema. Multiple
// Records produced by the same query or file pass reference the same
// Schema; mutating a Record's set of columns detaches it to its own Schema.
type Record struct {
	schema *Schema
	values []any
}

// New builds a Record from a schema and a values slice of equal length.
func New(schema *Schema, values []any) Record {
	return Record{schema: schema, values: append([]any(nil), values...)}
}

// NewFromMap builds a Record from an ordered list of names and a matching
// name->value map, useful for constructing test fixtures and for readers
// that produce one column set per row.
func NewFromMap(names []string, values map[string]any) Record {
	vals := make([]any, len(names))
	for i, n := range names {
		vals[i] = values[n]
	}
	return New(NewSchema(names), vals)
}

// Len returns the number of columns.
func (r Record) Len() int { return len(r.values) }

// At returns the value at a zero-based position.
func (r Record) At(i int) any { return r.values[i] }

// Slice returns the values in [i:j).
func (r Record) Slice(i, j int) []any { return append([]any(nil), r.values[i:j]...) }

// Keys returns the column names in position order: original names, or
// normalized names when normalized is true.
func (r Record) Keys(normalized bool) []string {
	if normalized {
		return r.schema.NormalizedNames()
	}
	return r.schema.Names()
}

// Value returns the value for key, preferring an exact original-name match
// and falling back to a normalized-name match.
func (r Record) Value(key string) (any, error) {
	i, ok := r.schema.IndexOf(key)
	if !ok {
		return nil, &ErrKeyNotFound{Key: key}
	}
	return r.values[i], nil
}

// Get returns the value for key, or def if key is not present.
func (r Record) Get(key string, def any) any {
	v, err := r.Value(key)
	if err != nil {
		return def
	}
	return v
}

// Has reports whether key resolves to a column.
func (r Record) Has(key string) bool {
	_, ok := r.schema.IndexOf(key)
	return ok
}

// Values returns the values in position order.
func (r Record) Values() []any { return append([]any(nil), r.values...) }

// Map converts the Record to a name->value mapping keyed by original names.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for i, n := range r.schema.Names() {
		m[n] = r.values[i]
	}
	return m
}

// Set updates the value for an existing key, or appends a new column and
// detaches the Record to its own Schema if key is not present.
func (r Record) Set(key string, value any) Record {
	if i, ok := r.schema.IndexOf(key); ok {
		newValues := append([]any(nil), r.values...)
		newValues[i] = value
		return Record{schema: r.schema, values: newValues}
	}
	return Record{
		schema: r.schema.withAppended(key),
		values: append(append([]any(nil), r.values...), value),
	}
}

// Schema returns the Record's shared column metadata.
func (r Record) Schema() *Schema { return r.schema }

// Equal reports whether two Records have the same names (order-sensitive)
// and values.
func (r Record) Equal(other Record) bool {
	if r.Len() != other.Len() {
		return false
	}
	names, otherNames := r.Keys(false), other.Keys(false)
	for i := range names {
		if names[i] != otherNames[i] {
			return false
		}
		if r.values[i] != other.values[i] {
			return false
		}
	}
	return true
}
