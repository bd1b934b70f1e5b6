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

// Package column implements the Column Descriptor and its Value Resolver
// pipeline: source -> null-normalize -> default -> transform -> db-expr.
package column

import (
	"context"
	"fmt"
	"strings"

	"github.com/scottrbailey/dbtk/internal/dbtkerr"
	"github.com/scottrbailey/dbtk/internal/dml"
	"github.com/scottrbailey/dbtk/internal/record"
)

// TransformFunc is one step of a column's transform chain. value is the
// descriptor's current working value (the whole source record, for the
// first function of a whole-record-sourced column); rec is always the
// original source record, for transforms (lookup, validate) that need
// fields beyond the one being resolved. ctx carries the caller's
// cancellation/deadline through to transforms that issue queries (lookup,
// validate).
type TransformFunc func(ctx context.Context, value any, rec record.Record) (any, error)

// ErrorPolicy controls whether a failing TransformFunc propagates or is
// swallowed (value becomes null, an error counter increments).
type ErrorPolicy int

const (
	// ContinueOnError swallows a transform failure: the column's value
	// becomes null and the caller's error counter is incremented.
	ContinueOnError ErrorPolicy = iota
	// RaiseOnError propagates a transform failure to the caller.
	RaiseOnError
)

// Descriptor describes how one target-table column's value is produced
// from a source record.
type Descriptor struct {
	// Name is the target column name.
	Name string
	// Key marks a column as part of the row's identity (used in WHERE
	// clauses for UPDATE/DELETE/SELECT-identity, and in MERGE's match
	// condition).
	Key bool
	// Nullable controls whether the column is required for INSERT/MERGE.
	Nullable bool
	// NoUpdate excludes the column from UPDATE's SET list.
	NoUpdate bool

	// SourceFields names the source record field(s) to read. A single
	// entry reads a scalar; multiple entries assemble a list.
	SourceFields []string
	// WholeRecord is the "whole record" source sentinel: when true,
	// SourceFields is ignored and the resolver's working value starts as
	// the entire source record.
	WholeRecord bool

	// NullSentinels are source values (compared via their string form)
	// that are normalized to null before Default/Transform run.
	NullSentinels []string
	// Default substitutes for a null or empty-string value.
	Default any

	// Transforms runs in order after null-normalization/default.
	Transforms []TransformFunc

	// DBExpr, if set, makes the final bound value a SQL-side expression
	// instead of a plain parameter. If it contains "#", the "#" is
	// replaced by a parameter placeholder carrying the resolved value;
	// otherwise the expression is used literally and the resolved value
	// is discarded.
	DBExpr string
}

// HasParam reports whether DBExpr (if set) still binds a parameter -- true
// when DBExpr is empty (plain value column) or contains "#".
func (d *Descriptor) HasParam() bool {
	return d.DBExpr == "" || strings.Contains(d.DBExpr, "#")
}

// Required reports whether op requires this column to carry a non-null
// value: INSERT/MERGE require every non-nullable column; UPDATE/DELETE/
// SELECT-identity require every key column.
func (d *Descriptor) Required(op dml.Op) bool {
	switch op {
	case dml.Insert, dml.Merge:
		return !d.Nullable
	case dml.Update, dml.Delete, dml.SelectIdentity:
		return d.Key
	default:
		return false
	}
}

// ContributesTo reports whether this column appears at all in op's
// generated DML (distinct from Required -- a nullable, non-key column
// still contributes to INSERT's column list, it just isn't required).
func (d *Descriptor) ContributesTo(op dml.Op) bool {
	switch op {
	case dml.Insert, dml.Merge:
		return true
	case dml.Update:
		return !d.Key && !d.NoUpdate
	case dml.Delete, dml.SelectIdentity:
		return d.Key
	default:
		return false
	}
}

func isNullSentinel(value any, sentinels []string) bool {
	if value == nil || len(sentinels) == 0 {
		return false
	}
	s := fmt.Sprintf("%v", value)
	for _, sentinel := range sentinels {
		if s == sentinel {
			return true
		}
	}
	return false
}

func isNullOrEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	return false
}

// source runs stage 1: read from rec per SourceFields/WholeRecord.
func (d *Descriptor) source(rec record.Record) any {
	if d.WholeRecord {
		return rec
	}
	switch len(d.SourceFields) {
	case 0:
		return nil
	case 1:
		return rec.Get(d.SourceFields[0], nil)
	default:
		vals := make([]any, len(d.SourceFields))
		for i, f := range d.SourceFields {
			vals[i] = rec.Get(f, nil)
		}
		return vals
	}
}

// Resolve runs the full pipeline (source, null-normalize, default,
// transform) and returns the value to bind, or the DBExpr's parameter
// value when DBExpr contains "#". transformFailed is true when a
// transform raised and policy is ContinueOnError (value is nil in that
// case); err is non-nil only when policy is RaiseOnError and a transform
// failed.
func (d *Descriptor) Resolve(ctx context.Context, rec record.Record, policy ErrorPolicy) (value any, transformFailed bool, err error) {
	value = d.source(rec)

	if isNullSentinel(value, d.NullSentinels) {
		value = nil
	}
	if isNullOrEmpty(value) && d.Default != nil {
		value = d.Default
	}

	for _, fn := range d.Transforms {
		next, ferr := fn(ctx, value, rec)
		if ferr != nil {
			if policy == RaiseOnError {
				return nil, true, dbtkerr.Transform(fmt.Sprintf("column %q transform", d.Name), ferr)
			}
			return nil, true, nil
		}
		value = next
	}

	if d.DBExpr != "" && !strings.Contains(d.DBExpr, "#") {
		return nil, false, nil
	}
	return value, false, nil
}
