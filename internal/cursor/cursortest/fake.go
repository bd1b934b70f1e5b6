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

// Package cursortest provides an in-memory cursor.Driver so packages built
// on internal/cursor can be unit tested without a live database or
// testcontainers. Every query against the fake is registered by its exact
// translated text up front; it has no SQL engine.
package cursortest

import (
	"context"
	"fmt"
	"sync"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
)

// Row is one canned result row, keyed by column name.
type Row map[string]any

// QueryResult is the canned response for one registered query.
type QueryResult struct {
	Columns []string
	Rows    []Row
}

// execResult is the canned response for one registered Exec call.
type execResult struct {
	rowsAffected int64
	err          error
}

// Driver is a cursor.Driver backed by a fixed map of query text to canned
// results, for use in table-driven tests of the execution core.
type Driver struct {
	style paramstyle.Style

	mu      sync.Mutex
	queries map[string]QueryResult
	execs   map[string]execResult
	calls   []Call
	closed  bool
}

// Call records one Query or Exec invocation for assertions.
type Call struct {
	Query string
	Args  any
}

// New returns a fake Driver that expects the given native placeholder
// style.
func New(style paramstyle.Style) *Driver {
	return &Driver{
		style:   style,
		queries: map[string]QueryResult{},
		execs:   map[string]execResult{},
	}
}

// Style implements cursor.Driver.
func (d *Driver) Style() paramstyle.Style { return d.style }

// RegisterQuery arranges for a call to Query with the given native-style
// text to return result.
func (d *Driver) RegisterQuery(query string, result QueryResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queries[query] = result
}

// RegisterExec arranges for a call to Exec with the given native-style
// text to report rowsAffected, or err if non-nil.
func (d *Driver) RegisterExec(query string, rowsAffected int64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.execs[query] = execResult{rowsAffected: rowsAffected, err: err}
}

// Calls returns every Query/Exec/ExecBatch call recorded so far.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Query implements cursor.Driver.
func (d *Driver) Query(ctx context.Context, query string, args any) (cursor.Rows, error) {
	d.mu.Lock()
	d.calls = append(d.calls, Call{Query: query, Args: args})
	res, ok := d.queries[query]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("cursortest: no registered query for %q", query)
	}
	return &fakeRows{columns: res.Columns, rows: res.Rows, pos: -1}, nil
}

// Exec implements cursor.Driver.
func (d *Driver) Exec(ctx context.Context, query string, args any) (cursor.Result, error) {
	d.mu.Lock()
	d.calls = append(d.calls, Call{Query: query, Args: args})
	res, ok := d.execs[query]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("cursortest: no registered exec for %q", query)
	}
	if res.err != nil {
		return nil, res.err
	}
	return fakeResult(res.rowsAffected), nil
}

// ExecBatch implements cursor.Driver by looping Exec once per payload and
// summing affected rows; it fails the whole batch on the first error,
// mirroring a driver with no true batch API.
func (d *Driver) ExecBatch(ctx context.Context, query string, argsSeq []any) (cursor.Result, error) {
	var total int64
	for _, args := range argsSeq {
		res, err := d.Exec(ctx, query, args)
		if err != nil {
			return nil, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return fakeResult(total), nil
}

// Close implements cursor.Driver.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Begin implements cursor.Transactor. The fake has no real connection
// pool, so the returned Tx just shares the Driver's query/exec maps and
// call log; Commit/Rollback are no-ops.
func (d *Driver) Begin(ctx context.Context) (cursor.Tx, error) {
	return &tx{Driver: d}, nil
}

// tx is the cursor.Tx returned by Driver.Begin.
type tx struct {
	*Driver
}

func (t *tx) Commit(ctx context.Context) error   { return nil }
func (t *tx) Rollback(ctx context.Context) error { return nil }

type fakeResult int64

func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

type fakeRows struct {
	columns []string
	rows    []Row
	pos     int
	closed  bool
}

func (r *fakeRows) Next(ctx context.Context) bool {
	if r.pos+1 >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest []any) error {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return fmt.Errorf("cursortest: Scan called out of range")
	}
	row := r.rows[r.pos]
	for i, col := range r.columns {
		if i >= len(dest) {
			break
		}
		dest[i] = row[col]
	}
	return nil
}

func (r *fakeRows) Columns() ([]string, error) {
	return append([]string(nil), r.columns...), nil
}

func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}
