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

// Package sqldriver adapts a *sql.DB to cursor.Driver for every adapter
// package built on a database/sql driver (mysql, mssql, sqlite, oracle,
// clickhouse, snowflake, firebird). Each concrete package supplies only
// its DSN construction and native placeholder Style; this package carries
// the shared Query/Exec/ExecBatch/Prepare plumbing once.
package sqldriver

import (
	"context"
	"database/sql"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
)

// Driver wraps a *sql.DB as a cursor.Driver.
type Driver struct {
	DB          *sql.DB
	style       paramstyle.Style
	nativeMerge bool
}

// New wraps an established *sql.DB, reporting style as its native
// placeholder dialect. nativeMerge tells Surge (C8) whether this
// dialect accepts the ANSI MERGE statement etltable.Table generates
// (true for mssql/oracle/snowflake; false for mysql/sqlite/clickhouse/
// firebird, none of which support it).
func New(db *sql.DB, style paramstyle.Style, nativeMerge bool) *Driver {
	return &Driver{DB: db, style: style, nativeMerge: nativeMerge}
}

// Style implements cursor.Driver.
func (d *Driver) Style() paramstyle.Style { return d.style }

// SupportsNativeMerge implements cursor.NativeMerger.
func (d *Driver) SupportsNativeMerge() bool { return d.nativeMerge }

func toArgs(args any) []any {
	switch v := args.(type) {
	case nil:
		return nil
	case []any:
		return v
	case map[string]any:
		// NamedAt/Numbered styles bind by map in paramstyle but
		// database/sql always takes positional args; sql.Named converts
		// a map entry to a driver-level named parameter for drivers
		// (like go-mssqldb) that accept it.
		out := make([]any, 0, len(v))
		for k, val := range v {
			out = append(out, sql.Named(k, val))
		}
		return out
	default:
		return nil
	}
}

// Query implements cursor.Driver.
func (d *Driver) Query(ctx context.Context, query string, args any) (cursor.Rows, error) {
	rows, err := d.DB.QueryContext(ctx, query, toArgs(args)...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

// Exec implements cursor.Driver.
func (d *Driver) Exec(ctx context.Context, query string, args any) (cursor.Result, error) {
	res, err := d.DB.ExecContext(ctx, query, toArgs(args)...)
	if err != nil {
		return nil, err
	}
	return sqlResult{res}, nil
}

// ExecBatch implements cursor.Driver. database/sql has no native batch
// call, so this prepares the statement once and loops Exec per payload;
// Surge's continue-on-error fallback (per-row execution on batch failure)
// degenerates to a no-op here since each row is already its own Exec.
func (d *Driver) ExecBatch(ctx context.Context, query string, argsSeq []any) (cursor.Result, error) {
	stmt, err := d.DB.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var total int64
	for _, args := range argsSeq {
		res, err := stmt.ExecContext(ctx, toArgs(args)...)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		total += n
	}
	return batchResult(total), nil
}

// Prepare implements cursor.Preparer.
func (d *Driver) Prepare(ctx context.Context, query string) (cursor.PreparedHandle, error) {
	stmt, err := d.DB.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &sqlPrepared{stmt: stmt}, nil
}

// Close implements cursor.Driver.
func (d *Driver) Close() error {
	return d.DB.Close()
}

// Begin implements cursor.Transactor.
func (d *Driver) Begin(ctx context.Context) (cursor.Tx, error) {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txDriver{tx: tx, style: d.style}, nil
}

// txDriver adapts a *sql.Tx to cursor.Tx, reusing toArgs/sqlResult/sqlRows
// exactly as Driver does outside a transaction.
type txDriver struct {
	tx    *sql.Tx
	style paramstyle.Style
}

func (t *txDriver) Style() paramstyle.Style { return t.style }

func (t *txDriver) Query(ctx context.Context, query string, args any) (cursor.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, toArgs(args)...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (t *txDriver) Exec(ctx context.Context, query string, args any) (cursor.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, toArgs(args)...)
	if err != nil {
		return nil, err
	}
	return sqlResult{res}, nil
}

func (t *txDriver) ExecBatch(ctx context.Context, query string, argsSeq []any) (cursor.Result, error) {
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var total int64
	for _, args := range argsSeq {
		res, err := stmt.ExecContext(ctx, toArgs(args)...)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		total += n
	}
	return batchResult(total), nil
}

func (t *txDriver) Close() error { return nil }

func (t *txDriver) Commit(ctx context.Context) error   { return t.tx.Commit() }
func (t *txDriver) Rollback(ctx context.Context) error { return t.tx.Rollback() }

type batchResult int64

func (r batchResult) RowsAffected() (int64, error) { return int64(r), nil }

type sqlResult struct {
	res sql.Result
}

func (r sqlResult) RowsAffected() (int64, error) { return r.res.RowsAffected() }

type sqlRows struct {
	rows    *sql.Rows
	columns []string
}

func (r *sqlRows) Next(ctx context.Context) bool {
	return r.rows.Next()
}

func (r *sqlRows) Scan(dest []any) error {
	ptrs := make([]any, len(dest))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	return r.rows.Scan(ptrs...)
}

func (r *sqlRows) Columns() ([]string, error) {
	if r.columns == nil {
		cols, err := r.rows.Columns()
		if err != nil {
			return nil, err
		}
		r.columns = cols
	}
	return r.columns, nil
}

func (r *sqlRows) Err() error {
	return r.rows.Err()
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

type sqlPrepared struct {
	stmt *sql.Stmt
}

func (p *sqlPrepared) Query(ctx context.Context, args any) (cursor.Rows, error) {
	rows, err := p.stmt.QueryContext(ctx, toArgs(args)...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (p *sqlPrepared) Exec(ctx context.Context, args any) (cursor.Result, error) {
	res, err := p.stmt.ExecContext(ctx, toArgs(args)...)
	if err != nil {
		return nil, err
	}
	return sqlResult{res}, nil
}

func (p *sqlPrepared) Close() error {
	return p.stmt.Close()
}
