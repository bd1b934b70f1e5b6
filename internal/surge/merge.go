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

package surge

import (
	"context"
	"errors"
	"fmt"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/dbtkerr"
	"github.com/scottrbailey/dbtk/internal/dml"
	"github.com/scottrbailey/dbtk/internal/etltable"
)

// tempTableName is derived from the target's name; stable across a run so
// CreateTempSQL/TruncateTempSQL/DropTempSQL all agree on it.
func (s *Surge) tempTableName() string {
	return "surge_tmp_" + s.table.Name
}

func (s *Surge) supportsNativeMerge() bool {
	nm, ok := s.origDriver.(cursor.NativeMerger)
	return ok && nm.SupportsNativeMerge()
}

// Merge drives MERGE (upsert) over source. When the Table's driver
// supports a native MERGE statement, this behaves exactly like Insert/
// Update/Delete with the cached MERGE template. Otherwise it uses the
// temp-table strategy: create a session-scoped staging table once per
// run, bulk-insert each batch's raw resolved values into it, execute one
// MERGE from staging into the target, and truncate staging for the next
// batch. The staging table is dropped at end of run regardless of
// outcome.
func (s *Surge) Merge(ctx context.Context, source Source) error {
	if s.supportsNativeMerge() {
		return s.run(ctx, dml.Merge, source)
	}
	return s.mergeViaTempTable(ctx, source)
}

func (s *Surge) mergeViaTempTable(ctx context.Context, source Source) (err error) {
	tmpName := s.tempTableName()

	// A session-scoped temp table is only visible on the connection that
	// created it; a pooled Driver hands out a different connection on
	// every unrelated call. Pin one connection for the whole fallback by
	// always running it inside a transaction, regardless of the
	// configured TxMode (abort policy still governs whether that
	// transaction commits or rolls back at the end).
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.endTx(ctx, tx, err != nil); cerr != nil && err == nil {
			err = cerr
		}
	}()
	facade := s.table.Facade()

	if _, cerr := facade.Execute(ctx, s.table.CreateTempSQL(tmpName), nil); cerr != nil {
		return dbtkerr.Resource(fmt.Sprintf("surge: create temp table %q", tmpName), cerr)
	}
	defer func() {
		if _, derr := facade.Execute(ctx, s.table.DropTempSQL(tmpName), nil); derr != nil && err == nil {
			err = dbtkerr.Resource(fmt.Sprintf("surge: drop temp table %q", tmpName), derr)
		}
	}()

	batch := make([]map[string]any, 0, s.batchSize)

	flushMerge := func() error {
		if len(batch) == 0 {
			return nil
		}
		staged := len(batch)
		if _, ferr := facade.ExecuteMany(ctx, s.table.TempInsertSQL(tmpName), batch); ferr != nil {
			if s.onError == AbortOnError {
				return ferr
			}
			staged = 0
			for _, payload := range batch {
				if _, perr := facade.Execute(ctx, s.table.TempInsertSQL(tmpName), payload); perr != nil {
					s.table.Counts.Error++
					continue
				}
				staged++
			}
		}
		if staged == 0 {
			return nil
		}
		if _, merr := facade.Execute(ctx, s.table.TempMergeSQL(tmpName), nil); merr != nil {
			return merr
		}
		bumpBatchCount(s.table, dml.Merge, staged)
		if _, terr := facade.Execute(ctx, s.table.TruncateTempSQL(tmpName), nil); terr != nil {
			return terr
		}
		return nil
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
		if !s.table.IsReady(dml.Merge) {
			s.table.Counts.Incomplete++
			s.emitProgress()
			continue
		}
		batch = append(batch, s.table.Payload(dml.Merge))
		if len(batch) >= s.batchSize {
			if ferr := flushMerge(); ferr != nil {
				return ferr
			}
			batch = batch[:0]
			s.emitProgress()
		}
	}
	if len(batch) > 0 {
		if ferr := flushMerge(); ferr != nil {
			return ferr
		}
	}
	s.emitProgress()
	return nil
}
