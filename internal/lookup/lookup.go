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

// Package lookup implements reference-table lookups and validations: a
// callable transform that takes a record.Record and returns a scalar,
// another record.Record, or nil, backed by one of three caching
// strategies.
package lookup

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/dbtkerr"
	"github.com/scottrbailey/dbtk/internal/record"
)

// Cache selects a Lookup's caching strategy.
type Cache int

const (
	// Preload loads the full key->value map at construction (or first
	// call) via one query. Not for tables larger than working-set memory.
	Preload Cache = iota
	// Lazy populates a map on first miss; misses issue a single-key
	// prepared query.
	Lazy
	// None issues the prepared query on every call.
	None
)

// ParseCache maps a shorthand cache name ("preload", "lazy", "none") to a
// Cache value. Empty string defaults to None.
func ParseCache(s string) (Cache, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "preload":
		return Preload, nil
	case "lazy":
		return Lazy, nil
	default:
		return None, fmt.Errorf("lookup: unknown cache mode %q", s)
	}
}

// ValidationWarning is emitted by a Validate Lookup when the input key is
// not present in the reference table.
type ValidationWarning struct {
	Table  string
	Column string
	Value  any
}

// Lookup is a callable transform bound to one reference table. Build one
// with New (return-column mode) or NewValidate (existence-check mode).
type Lookup struct {
	facade     *cursor.Facade
	table      string
	keyCols    []string
	returnCols []string
	cache      Cache
	validate   bool
	onInvalid  func(ValidationWarning)

	mu       sync.Mutex
	loaded   bool
	cacheMap map[string]any // preload/lazy: composite key -> scalar or record.Record
	prepared *cursor.PreparedStatement
}

// New builds a return-value Lookup: table, keyCols (the columns the
// record must supply), returnCols (the columns to fetch — one for a
// scalar result, several for a Record result), and a caching strategy.
func New(facade *cursor.Facade, table string, keyCols, returnCols []string, cache Cache) *Lookup {
	return &Lookup{
		facade:     facade,
		table:      table,
		keyCols:    append([]string(nil), keyCols...),
		returnCols: append([]string(nil), returnCols...),
		cache:      cache,
	}
}

// NewValidate builds a Validate Lookup: return columns are ignored, and a
// match only has to prove the key exists. onInvalid, if non-nil, is
// called when a key is not found in the reference table (the hook a
// column resolver uses to set its "invalid" flag).
func NewValidate(facade *cursor.Facade, table string, keyCols []string, cache Cache, onInvalid func(ValidationWarning)) *Lookup {
	return &Lookup{
		facade:    facade,
		table:     table,
		keyCols:   append([]string(nil), keyCols...),
		cache:     cache,
		validate:  true,
		onInvalid: onInvalid,
	}
}

func (l *Lookup) selectColumns() []string {
	if l.validate {
		return l.keyCols
	}
	return l.returnCols
}

func (l *Lookup) compositeKey(rec record.Record) (string, []any, error) {
	values := make([]any, len(l.keyCols))
	var missing []string
	for i, col := range l.keyCols {
		v, err := rec.Value(col)
		if err != nil {
			missing = append(missing, col)
			continue
		}
		values[i] = v
	}
	if len(missing) > 0 {
		return "", nil, &dbtkerr.LookupError{Table: l.table, Missing: missing}
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, "\x1f"), values, nil
}

// preloadColumns is the key columns plus the selected columns, deduped,
// since a full-table preload has to carry both the keys it indexes by and
// the values it returns.
func (l *Lookup) preloadColumns() []string {
	seen := make(map[string]bool, len(l.keyCols)+len(l.selectColumns()))
	var cols []string
	for _, c := range append(append([]string(nil), l.keyCols...), l.selectColumns()...) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	return cols
}

func (l *Lookup) selectSQL(whereKeys bool) string {
	var cols []string
	if whereKeys {
		cols = l.selectColumns()
	} else {
		cols = l.preloadColumns()
	}
	query := fmt.Sprintf("select %s from %s", strings.Join(cols, ", "), l.table)
	if whereKeys {
		conds := make([]string, len(l.keyCols))
		for i, k := range l.keyCols {
			conds[i] = fmt.Sprintf("%s = :%s", k, k)
		}
		query += " where " + strings.Join(conds, " and ")
	}
	return query
}

func (l *Lookup) resultFromRecord(rec record.Record) any {
	if l.validate {
		return true
	}
	if len(l.returnCols) == 1 {
		return rec.Get(l.returnCols[0], nil)
	}
	return rec
}

func (l *Lookup) ensurePreloaded(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return nil
	}
	f, err := l.facade.Execute(ctx, l.selectSQL(false), nil)
	if err != nil {
		return dbtkerr.Resource(fmt.Sprintf("lookup %q: preload query", l.table), err)
	}
	if f == nil {
		f = l.facade
	}
	rows, err := f.FetchAll(ctx)
	if err != nil {
		return dbtkerr.Resource(fmt.Sprintf("lookup %q: preload fetch", l.table), err)
	}
	l.cacheMap = make(map[string]any, len(rows))
	for _, row := range rows {
		key, _, err := l.keyFromRow(row)
		if err != nil {
			continue
		}
		l.cacheMap[key] = l.resultFromRecord(row)
	}
	l.loaded = true
	return nil
}

// keyFromRow builds the same composite key format as compositeKey, but
// reads key values from a result row (which carries only the selected
// columns) instead of a full source record.
func (l *Lookup) keyFromRow(row record.Record) (string, []any, error) {
	values := make([]any, len(l.keyCols))
	for i, col := range l.keyCols {
		v, err := row.Value(col)
		if err != nil {
			return "", nil, err
		}
		values[i] = v
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, "\x1f"), values, nil
}

func (l *Lookup) ensurePrepared(ctx context.Context) error {
	if l.prepared != nil {
		return nil
	}
	ps, err := cursor.Prepare(ctx, l.facade.Driver(), l.selectSQL(true))
	if err != nil {
		return dbtkerr.Translation(fmt.Sprintf("lookup %q: prepare", l.table), err)
	}
	l.prepared = ps
	return nil
}

func (l *Lookup) queryOne(ctx context.Context, keyValues []any) (record.Record, bool, error) {
	if err := l.ensurePrepared(ctx); err != nil {
		return record.Record{}, false, err
	}
	payload := make(map[string]any, len(l.keyCols))
	for i, col := range l.keyCols {
		payload[col] = keyValues[i]
	}
	return l.prepared.FetchOne(ctx, payload)
}

// Call runs the lookup (or validation) against rec and returns the result:
// a scalar, a record.Record, or nil for no match in Lookup mode; in
// Validate mode, rec's value for the last key column, whether or not the
// key is present (a miss calls onInvalid). An error is returned only
// when rec is missing required key columns or the database query fails —
// a Lookup miss is a nil result, not an error.
func (l *Lookup) Call(ctx context.Context, rec record.Record) (any, error) {
	key, keyValues, err := l.compositeKey(rec)
	if err != nil {
		return nil, err
	}

	switch l.cache {
	case Preload:
		if err := l.ensurePreloaded(ctx); err != nil {
			return nil, err
		}
		l.mu.Lock()
		v, ok := l.cacheMap[key]
		l.mu.Unlock()
		return l.finish(rec, v, ok, keyValues)

	case Lazy:
		l.mu.Lock()
		if l.cacheMap == nil {
			l.cacheMap = map[string]any{}
		}
		v, ok := l.cacheMap[key]
		l.mu.Unlock()
		if ok {
			return l.finish(rec, v, true, keyValues)
		}
		row, found, err := l.queryOne(ctx, keyValues)
		if err != nil {
			return nil, dbtkerr.Resource(fmt.Sprintf("lookup %q: query", l.table), err)
		}
		var result any
		if found {
			result = l.resultFromRecord(row)
			l.mu.Lock()
			l.cacheMap[key] = result
			l.mu.Unlock()
		}
		return l.finish(rec, result, found, keyValues)

	default: // None
		row, found, err := l.queryOne(ctx, keyValues)
		if err != nil {
			return nil, dbtkerr.Resource(fmt.Sprintf("lookup %q: query", l.table), err)
		}
		var result any
		if found {
			result = l.resultFromRecord(row)
		}
		return l.finish(rec, result, found, keyValues)
	}
}

func (l *Lookup) finish(rec record.Record, result any, found bool, keyValues []any) (any, error) {
	if !l.validate {
		if !found {
			return nil, nil
		}
		return result, nil
	}
	if !found && l.onInvalid != nil {
		col := l.keyCols[len(l.keyCols)-1]
		l.onInvalid(ValidationWarning{Table: l.table, Column: col, Value: rec.Get(col, nil)})
	}
	return rec.Get(l.keyCols[len(l.keyCols)-1], nil), nil
}
