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

// Package surge implements the bulk driver: it streams records from a
// source into a Table, batches the resulting DML, and handles
// transactions, per-row error isolation, and MERGE's temp-table fallback.
package surge

import (
	"context"
	"errors"
	"iter"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/dbtkerr"
	"github.com/scottrbailey/dbtk/internal/dml"
	"github.com/scottrbailey/dbtk/internal/etltable"
	"github.com/scottrbailey/dbtk/internal/record"
)

// Source yields records paired with a per-row error (a parse/read
// failure from an upstream reader, for instance); a nil error with a
// valid Record is the common case.
type Source = iter.Seq2[record.Record, error]

// TxMode selects how a run wraps its DML in a transaction.
type TxMode int

const (
	// NoTx issues every statement outside any transaction.
	NoTx TxMode = iota
	// WrapWholeRun opens one transaction for the entire run, committed
	// at the end or rolled back on abort.
	WrapWholeRun
	// WrapPerBatch opens and commits one transaction per flushed batch.
	WrapPerBatch
)

// OnError selects how a run responds to a row- or batch-level failure.
type OnError int

const (
	// ContinueOnError isolates the offending row (or falls back to
	// per-row execution within a failed batch) and keeps going.
	ContinueOnError OnError = iota
	// AbortOnError stops the run and rolls back any open transaction.
	AbortOnError
)

// ProgressFunc receives the Table's cumulative Counts after every flushed
// batch and once more at end of run.
type ProgressFunc func(etltable.Counts)

// Surge drives one Table over a streaming Source with batched execution.
type Surge struct {
	table     *etltable.Table
	batchSize int
	txMode    TxMode
	onError   OnError
	progress  ProgressFunc

	origDriver cursor.Driver
}

// Option configures a Surge at construction.
type Option func(*Surge)

// WithProgress registers a sink invoked after each batch flush and at end
// of run.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Surge) { s.progress = fn }
}

// New builds a Surge over table. batchSize must be positive.
func New(table *etltable.Table, batchSize int, txMode TxMode, onError OnError, opts ...Option) *Surge {
	s := &Surge{
		table:      table,
		batchSize:  batchSize,
		txMode:     txMode,
		onError:    onError,
		origDriver: table.Driver(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Surge) emitProgress() {
	if s.progress != nil {
		s.progress(s.table.Counts)
	}
}

// beginTx opens a transaction on the original driver and rebinds the
// Table to it. The Table's Driver must implement cursor.Transactor;
// NoTx is the only TxMode available otherwise.
func (s *Surge) beginTx(ctx context.Context) (cursor.Tx, error) {
	txr, ok := s.origDriver.(cursor.Transactor)
	if !ok {
		return nil, dbtkerr.Resource("surge: driver does not support transactions", nil)
	}
	tx, err := txr.Begin(ctx)
	if err != nil {
		return nil, dbtkerr.Resource("surge: begin transaction", err)
	}
	s.table.Rebind(tx)
	return tx, nil
}

func (s *Surge) endTx(ctx context.Context, tx cursor.Tx, abort bool) error {
	s.table.Rebind(s.origDriver)
	if tx == nil {
		return nil
	}
	if abort {
		return tx.Rollback(ctx)
	}
	return tx.Commit(ctx)
}

// flushBatch issues one driver batch call for op over payloads. On a
// batch-level failure under ContinueOnError, it falls back to per-row
// execution to isolate the offending rows: Counts.Error is incremented
// per failure, Counts[op] per success, via Table.ExecutePayload.
func (s *Surge) flushBatch(ctx context.Context, op dml.Op, payloads []map[string]any) error {
	if len(payloads) == 0 {
		return nil
	}
	_, err := s.table.Facade().ExecuteMany(ctx, s.table.SQL(op), payloads)
	if err == nil {
		bumpBatchCount(s.table, op, len(payloads))
		return nil
	}
	if s.onError == AbortOnError {
		return err
	}
	for _, payload := range payloads {
		if perr := s.table.ExecutePayload(ctx, op, payload); perr != nil {
			s.table.Counts.Error++
			continue
		}
		bumpBatchCount(s.table, op, 1)
	}
	return nil
}

func bumpBatchCount(t *etltable.Table, op dml.Op, n int) {
	switch op {
	case dml.Insert:
		t.Counts.Insert += n
	case dml.Update:
		t.Counts.Update += n
	case dml.Delete:
		t.Counts.Delete += n
	case dml.Merge:
		t.Counts.Merge += n
	}
}

// run drives source through op in batches, honoring txMode/onError, and
// returns the first fatal error (a read error or a batch failure under
// AbortOnError).
func (s *Surge) run(ctx context.Context, op dml.Op, source Source) (err error) {
	var tx cursor.Tx
	if s.txMode == WrapWholeRun {
		tx, err = s.beginTx(ctx)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.endTx(ctx, tx, err != nil); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}

	batch := make([]map[string]any, 0, s.batchSize)

	flush := func() error {
		if s.txMode == WrapPerBatch {
			btx, berr := s.beginTx(ctx)
			if berr != nil {
				return berr
			}
			ferr := s.flushBatch(ctx, op, batch)
			if cerr := s.endTx(ctx, btx, ferr != nil && s.onError == AbortOnError); cerr != nil && ferr == nil {
				ferr = cerr
			}
			return ferr
		}
		return s.flushBatch(ctx, op, batch)
	}

	for rec, rerr := range source {
		if rerr != nil {
			if s.onError == AbortOnError {
				return rerr
			}
			s.table.Counts.Error++
			continue
		}
		if serr := s.table.SetValues(ctx, rec); serr != nil {
			if errors.Is(serr, etltable.ErrRowFiltered) {
				s.emitProgress()
				continue
			}
			if s.onError == AbortOnError {
				return serr
			}
			s.table.Counts.Error++
			continue
		}
		if !s.table.IsReady(op) {
			s.table.Counts.Incomplete++
			s.emitProgress()
			continue
		}
		batch = append(batch, s.table.Payload(op))
		if len(batch) >= s.batchSize {
			if ferr := flush(); ferr != nil {
				return ferr
			}
			batch = batch[:0]
			s.emitProgress()
		}
	}
	if len(batch) > 0 {
		if ferr := flush(); ferr != nil {
			return ferr
		}
	}
	s.emitProgress()
	return nil
}

// Insert drives INSERT over source.
func (s *Surge) Insert(ctx context.Context, source Source) error {
	return s.run(ctx, dml.Insert, source)
}

// Update drives UPDATE over source.
func (s *Surge) Update(ctx context.Context, source Source) error {
	return s.run(ctx, dml.Update, source)
}

// Delete drives DELETE over source.
func (s *Surge) Delete(ctx context.Context, source Source) error {
	return s.run(ctx, dml.Delete, source)
}
