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

// Package etltable implements Table: a named target with an ordered set of
// column descriptors, a mutable current-row state, a per-operation
// readiness bitmap, cached DML, and execution counters.
package etltable

import (
	"context"
	"errors"
	"fmt"

	"github.com/scottrbailey/dbtk/internal/column"
	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/dbtkerr"
	"github.com/scottrbailey/dbtk/internal/dml"
	"github.com/scottrbailey/dbtk/internal/record"
	"github.com/scottrbailey/dbtk/internal/transform/expr"
)

// ErrRowFiltered is returned by SetValues when a row filter rejects the
// record. Counts.Filtered is already incremented by the time it is
// returned; callers should treat it as "skip this row", not as a failure.
var ErrRowFiltered = errors.New("etltable: row rejected by filter")

// DefaultNullSentinels are the source values normalized to null for any
// column that doesn't specify its own NullSentinels.
var DefaultNullSentinels = []string{"", "NULL", "<null>", `\N`}

// Counts are the per-operation row tallies a Table accumulates across its
// lifetime. They are the stable, user-visible surface for batch runs —
// nothing else on a Table is meant to be introspected for success/failure.
type Counts struct {
	Insert     int
	Update     int
	Delete     int
	Merge      int
	Select     int
	Incomplete int
	Error      int
	Filtered   int
}

const numOps = int(dml.Merge) + 1

// Table is a named target table driven through a single cursor.
type Table struct {
	Name    string
	columns []*column.Descriptor
	index   map[string]int
	facade  *cursor.Facade
	policy  column.ErrorPolicy
	filter  *expr.Expr

	current  map[string]any
	ready    [numOps]bool
	readyAll bool // true after SetValues resolves a row; false after a filtered row

	sqlCache      [numOps]string
	preparedCache [numOps]*cursor.PreparedStatement

	Counts Counts
}

// Option configures a Table at construction.
type Option func(*Table)

// WithTransformPolicy sets the error policy used when a column's transform
// chain fails: ContinueOnError (default) nulls the column and increments
// Counts.Error; RaiseOnError propagates the error from SetValues.
func WithTransformPolicy(policy column.ErrorPolicy) Option {
	return func(t *Table) { t.policy = policy }
}

// New builds a Table over columns, bound to facade for DML and fetch.
// Any column without its own NullSentinels gets DefaultNullSentinels.
func New(name string, facade *cursor.Facade, columns []*column.Descriptor, opts ...Option) *Table {
	t := &Table{
		Name:    name,
		columns: columns,
		index:   make(map[string]int, len(columns)),
		facade:  facade,
		current: make(map[string]any, len(columns)),
	}
	for i, c := range columns {
		if c.NullSentinels == nil {
			c.NullSentinels = DefaultNullSentinels
		}
		t.index[c.Name] = i
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetFilter compiles a row filter: a govaluate expression evaluated
// against the raw source record before any column is resolved. A record
// for which it evaluates false is rejected — SetValues returns
// ErrRowFiltered and no column is touched.
func (t *Table) SetFilter(expression string) error {
	e, err := expr.Parse(expression)
	if err != nil {
		return err
	}
	t.filter = e
	return nil
}

func (t *Table) keyColumns() []*column.Descriptor {
	var keys []*column.Descriptor
	for _, c := range t.columns {
		if c.Key {
			keys = append(keys, c)
		}
	}
	return keys
}

// SetValues runs the resolver pipeline for every column against rec,
// replacing the Table's current row state, and recomputes the readiness
// bitmap. It is the hot path: call once per source record before Execute.
func (t *Table) SetValues(ctx context.Context, rec record.Record) error {
	if t.filter != nil {
		keep, err := t.filter.EvalBool(rec)
		if err != nil {
			return err
		}
		if !keep {
			t.Counts.Filtered++
			t.readyAll = false
			return ErrRowFiltered
		}
	}
	for _, c := range t.columns {
		value, failed, err := c.Resolve(ctx, rec, t.policy)
		if err != nil {
			return err
		}
		if failed {
			t.Counts.Error++
		}
		t.current[c.Name] = value
	}
	t.refreshReadiness()
	return nil
}

// refreshReadiness recomputes every op's readiness bit from current
// values. Call directly only if current values were mutated outside
// SetValues.
func (t *Table) refreshReadiness() {
	for op := dml.Insert; op <= dml.Merge; op++ {
		t.ready[op] = t.reqsMissingFor(op) == nil
	}
	t.readyAll = true
}

func (t *Table) reqsMissingFor(op dml.Op) []string {
	var missing []string
	for _, c := range t.columns {
		if !c.Required(op) {
			continue
		}
		if t.current[c.Name] == nil {
			missing = append(missing, c.Name)
		}
	}
	return missing
}

// IsReady is an O(1) check of the readiness bit for op, valid only after
// at least one SetValues or RefreshReadiness call.
func (t *Table) IsReady(op dml.Op) bool {
	return t.readyAll && t.ready[op]
}

// ReqsMet reports the same thing as IsReady but recomputes from scratch;
// use for diagnostics, not the hot path.
func (t *Table) ReqsMet(op dml.Op) bool {
	return len(t.reqsMissingFor(op)) == 0
}

// ReqsMissing names the required-but-null columns for op.
func (t *Table) ReqsMissing(op dml.Op) []string {
	return t.reqsMissingFor(op)
}

// RefreshReadiness recomputes the full bitmap. Call after mutating current
// values directly (bypassing SetValues).
func (t *Table) RefreshReadiness() {
	t.refreshReadiness()
}

// Set overrides one column's current value directly, for callers that
// need to bypass the resolver pipeline for a single field (e.g. an
// identity value returned by a prior Execute(SelectIdentity)).
func (t *Table) Set(name string, value any) {
	t.current[name] = value
}

// Get returns a column's current resolved value.
func (t *Table) Get(name string) any {
	return t.current[name]
}

func (t *Table) payload(op dml.Op) map[string]any {
	payload := make(map[string]any)
	for _, c := range t.columns {
		if !c.ContributesTo(op) || !c.HasParam() {
			continue
		}
		payload[c.Name] = t.current[c.Name]
	}
	return payload
}

// Payload returns the current row's bound parameters for op — the same
// payload Execute sends — for callers (Surge) that assemble their own
// batch of payloads across many rows.
func (t *Table) Payload(op dml.Op) map[string]any {
	return t.payload(op)
}

// Facade returns the Facade this Table issues DML/fetch through.
func (t *Table) Facade() *cursor.Facade {
	return t.facade
}

// Columns returns the Table's column descriptors in declared order.
func (t *Table) Columns() []*column.Descriptor {
	return t.columns
}

// Rebind swaps the Driver backing this Table's Facade and clears any
// PreparedStatements cached against the previous driver. Surge uses this
// to route a run's DML through an explicit transaction and back.
func (t *Table) Rebind(driver cursor.Driver) {
	t.facade = cursor.New(driver, false)
	t.preparedCache = [numOps]*cursor.PreparedStatement{}
}

// Driver returns the Driver this Table's Facade currently issues through.
func (t *Table) Driver() cursor.Driver {
	return t.facade.Driver()
}

// ExecutePayload runs op's prepared statement directly against payload,
// bypassing current values — used by Surge to re-execute one row in
// isolation after a batch-level failure.
func (t *Table) ExecutePayload(ctx context.Context, op dml.Op, payload map[string]any) error {
	ps, err := t.preparedFor(ctx, op)
	if err != nil {
		return err
	}
	_, err = ps.Exec(ctx, payload)
	return err
}

// Execute runs single-row DML for op against the current values. If
// !reqsChecked and !IsReady(op): raiseError false increments Incomplete and
// issues no SQL; raiseError true returns a requirements-not-met error.
// Otherwise the SQL for op is materialized (cached) on first use, bound to
// current values, and executed; Counts[op] is incremented on success.
func (t *Table) Execute(ctx context.Context, op dml.Op, raiseError, reqsChecked bool) error {
	if !reqsChecked && !t.IsReady(op) {
		missing := t.reqsMissingFor(op)
		if raiseError {
			return &dbtkerr.RequirementsError{Op: op.String(), Missing: missing}
		}
		t.Counts.Incomplete++
		return nil
	}

	ps, err := t.preparedFor(ctx, op)
	if err != nil {
		return err
	}

	if op == dml.SelectIdentity {
		row, found, err := ps.FetchOne(ctx, t.payload(op))
		if err != nil {
			return err
		}
		if found {
			for _, c := range t.columns {
				if v, verr := row.Value(c.Name); verr == nil {
					t.current[c.Name] = v
				}
			}
		}
		t.Counts.Select++
		return nil
	}

	if _, err := ps.Exec(ctx, t.payload(op)); err != nil {
		return err
	}
	t.bumpCount(op)
	return nil
}

func (t *Table) bumpCount(op dml.Op) {
	switch op {
	case dml.Insert:
		t.Counts.Insert++
	case dml.Update:
		t.Counts.Update++
	case dml.Delete:
		t.Counts.Delete++
	case dml.Merge:
		t.Counts.Merge++
	case dml.SelectIdentity:
		t.Counts.Select++
	}
}

func (t *Table) preparedFor(ctx context.Context, op dml.Op) (*cursor.PreparedStatement, error) {
	if t.preparedCache[op] != nil {
		return t.preparedCache[op], nil
	}
	query := t.SQL(op)
	ps, err := cursor.Prepare(ctx, t.facade.Driver(), query)
	if err != nil {
		return nil, dbtkerr.Translation(fmt.Sprintf("table %q: prepare %s", t.Name, op), err)
	}
	t.preparedCache[op] = ps
	return ps, nil
}

// Fetch executes the SELECT-by-key statement using current key-column
// values and returns the matching Record, or ok=false if none matched.
func (t *Table) Fetch(ctx context.Context) (record.Record, bool, error) {
	ps, err := t.preparedFor(ctx, dml.SelectIdentity)
	if err != nil {
		return record.Record{}, false, err
	}
	t.Counts.Select++
	return ps.FetchOne(ctx, t.payload(dml.SelectIdentity))
}

// SQL returns the DML template for op, generating and caching it on first
// use. The result is deterministic for a given Table.
func (t *Table) SQL(op dml.Op) string {
	if t.sqlCache[op] != "" {
		return t.sqlCache[op]
	}
	var sql string
	switch op {
	case dml.Insert:
		sql = t.insertSQL()
	case dml.Update:
		sql = t.updateSQL()
	case dml.Delete:
		sql = t.deleteSQL()
	case dml.SelectIdentity:
		sql = t.selectSQL()
	case dml.Merge:
		sql = t.mergeSQL()
	}
	t.sqlCache[op] = sql
	return sql
}
