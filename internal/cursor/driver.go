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

// Package cursor wraps a native database driver behind a uniform facade:
// one placeholder style per driver (internal/paramstyle), one Rows/Result
// surface, and a Facade that yields record.Record rows regardless of which
// driver is underneath.
package cursor

import (
	"context"

	"github.com/scottrbailey/dbtk/internal/paramstyle"
)

// Rows is the native-driver cursor result a Driver hands back from Query.
// Facade adapts it into record.Record values; Rows itself stays as close to
// the underlying driver's iteration shape as possible so adapters stay thin.
type Rows interface {
	// Next advances to the next row, returning false at end of result set
	// or on error (check Err after Next returns false).
	Next(ctx context.Context) bool
	// Scan copies the current row's column values into dest, one entry per
	// column in Columns order.
	Scan(dest []any) error
	// Columns returns the result set's column names in position order.
	Columns() ([]string, error)
	// Err returns the first error encountered during iteration, if any.
	Err() error
	// Close releases the Rows and any driver resources it holds.
	Close() error
}

// Result reports the outcome of a non-query statement.
type Result interface {
	RowsAffected() (int64, error)
}

// Driver is the minimal native surface a concrete adapter package
// (internal/cursor/postgres, mysql, ...) must implement. Facade is built on
// top of it and adds translation, Record conversion, and file-sourced
// queries; Driver itself never sees canonical placeholder syntax — it
// always receives text already translated to its own Style.
type Driver interface {
	// Style is the native placeholder dialect this driver expects.
	Style() paramstyle.Style
	// Query runs a translated SQL statement expected to return rows.
	// args is either a map[string]any (named styles) or a []any
	// (positional styles), matching Style().
	Query(ctx context.Context, query string, args any) (Rows, error)
	// Exec runs a translated SQL statement not expected to return rows.
	Exec(ctx context.Context, query string, args any) (Result, error)
	// ExecBatch runs one statement against a sequence of argument sets in
	// one native batch call when the driver supports it. Adapters that
	// lack a true batch API may implement this as a loop over Exec; Surge
	// treats a batch-level error the same way either way.
	ExecBatch(ctx context.Context, query string, argsSeq []any) (Result, error)
	// Close releases the underlying connection or pool.
	Close() error
}

// Preparer is implemented by drivers that can build a native, cursor-bound
// prepared statement handle. Not every database/sql driver supports true
// server-side preparation; Facade.PrepareFile falls back to re-translating
// and executing query text directly when a Driver does not implement this.
type Preparer interface {
	Prepare(ctx context.Context, query string) (PreparedHandle, error)
}

// PreparedHandle is a native prepared statement bound to one query text.
type PreparedHandle interface {
	Query(ctx context.Context, args any) (Rows, error)
	Exec(ctx context.Context, args any) (Result, error)
	Close() error
}

// Transactor is implemented by drivers that support explicit
// transactions. Surge (C8) uses it for its wrap-whole-run/wrap-per-batch
// transaction modes; a Driver that doesn't implement it only supports
// Surge's none mode.
type Transactor interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is an in-flight transaction. It is itself a Driver so a caller
// already holding one can issue Query/Exec/ExecBatch against it exactly
// as it would the outer Driver; Commit/Rollback end the transaction.
type Tx interface {
	Driver
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// NativeMerger is implemented by drivers whose dialect accepts the
// ANSI-shaped MERGE statement etltable.Table.SQL(dml.Merge) generates.
// Surge (C8) checks for it to choose between issuing that statement
// directly and falling back to its temp-table strategy.
type NativeMerger interface {
	SupportsNativeMerge() bool
}
