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

// Package pgxdriver adapts a *pgxpool.Pool to cursor.Driver. It is shared
// by the postgres adapter package; any future pgx-wire-compatible dialect
// (Yugabyte, CockroachDB, ...) can reuse it the same way the teacher's
// yugabytedb source reused the Postgres wire protocol via pgxpool.
package pgxdriver

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
)

// Driver wraps a pgxpool.Pool as a cursor.Driver using the DollarPositional
// native style ($1, $2, ...).
type Driver struct {
	Pool *pgxpool.Pool
}

// New wraps an established pool.
func New(pool *pgxpool.Pool) *Driver {
	return &Driver{Pool: pool}
}

// Style implements cursor.Driver.
func (d *Driver) Style() paramstyle.Style { return paramstyle.DollarPositional }

// SupportsNativeMerge implements cursor.NativeMerger. PostgreSQL has
// accepted standard MERGE since version 15.
func (d *Driver) SupportsNativeMerge() bool { return true }

func toPositional(args any) []any {
	if args == nil {
		return nil
	}
	if positional, ok := args.([]any); ok {
		return positional
	}
	return nil
}

// Query implements cursor.Driver.
func (d *Driver) Query(ctx context.Context, query string, args any) (cursor.Rows, error) {
	rows, err := d.Pool.Query(ctx, query, toPositional(args)...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

// Exec implements cursor.Driver.
func (d *Driver) Exec(ctx context.Context, query string, args any) (cursor.Result, error) {
	tag, err := d.Pool.Exec(ctx, query, toPositional(args)...)
	if err != nil {
		return nil, err
	}
	return pgxResult(tag.RowsAffected()), nil
}

// ExecBatch implements cursor.Driver using pgx's native pipelined Batch
// type.
func (d *Driver) ExecBatch(ctx context.Context, query string, argsSeq []any) (cursor.Result, error) {
	batch := &pgx.Batch{}
	for _, args := range argsSeq {
		batch.Queue(query, toPositional(args)...)
	}
	br := d.Pool.SendBatch(ctx, batch)
	defer br.Close()

	var total int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			return nil, err
		}
		total += tag.RowsAffected()
	}
	return pgxResult(total), nil
}

// Close implements cursor.Driver.
func (d *Driver) Close() error {
	d.Pool.Close()
	return nil
}

// Begin implements cursor.Transactor.
func (d *Driver) Begin(ctx context.Context) (cursor.Tx, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &txDriver{tx: tx}, nil
}

// txDriver adapts a pgx.Tx to cursor.Tx.
type txDriver struct {
	tx pgx.Tx
}

func (t *txDriver) Style() paramstyle.Style { return paramstyle.DollarPositional }

func (t *txDriver) Query(ctx context.Context, query string, args any) (cursor.Rows, error) {
	rows, err := t.tx.Query(ctx, query, toPositional(args)...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func (t *txDriver) Exec(ctx context.Context, query string, args any) (cursor.Result, error) {
	tag, err := t.tx.Exec(ctx, query, toPositional(args)...)
	if err != nil {
		return nil, err
	}
	return pgxResult(tag.RowsAffected()), nil
}

func (t *txDriver) ExecBatch(ctx context.Context, query string, argsSeq []any) (cursor.Result, error) {
	batch := &pgx.Batch{}
	for _, args := range argsSeq {
		batch.Queue(query, toPositional(args)...)
	}
	br := t.tx.SendBatch(ctx, batch)
	defer br.Close()

	var total int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			return nil, err
		}
		total += tag.RowsAffected()
	}
	return pgxResult(total), nil
}

func (t *txDriver) Close() error { return nil }

func (t *txDriver) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *txDriver) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

type pgxResult int64

func (r pgxResult) RowsAffected() (int64, error) { return int64(r), nil }

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next(ctx context.Context) bool {
	return r.rows.Next()
}

func (r *pgxRows) Scan(dest []any) error {
	ptrs := make([]any, len(dest))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	return r.rows.Scan(ptrs...)
}

func (r *pgxRows) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names, nil
}

func (r *pgxRows) Err() error {
	return r.rows.Err()
}

func (r *pgxRows) Close() error {
	r.rows.Close()
	return nil
}
