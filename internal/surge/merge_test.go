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

package surge_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/cursortest"
	"github.com/scottrbailey/dbtk/internal/etltable"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
	"github.com/scottrbailey/dbtk/internal/record"
	"github.com/scottrbailey/dbtk/internal/surge"
)

// flakyStagingDriver wraps a cursortest.Driver and forces the staging
// insert into the temp-table merge fallback to fail as a batch, then fail
// on one specific row of the per-row retry, so tests can observe a partial
// staging failure without cursortest's args-blind exec registry.
type flakyStagingDriver struct {
	*cursortest.Driver
	insertQuery string
	failOnCall  int
	calls       int
}

func (d *flakyStagingDriver) ExecBatch(ctx context.Context, query string, argsSeq []any) (cursor.Result, error) {
	if query == d.insertQuery {
		return nil, fmt.Errorf("flakyStagingDriver: forced batch failure")
	}
	return d.Driver.ExecBatch(ctx, query, argsSeq)
}

func (d *flakyStagingDriver) Exec(ctx context.Context, query string, args any) (cursor.Result, error) {
	if query == d.insertQuery {
		d.calls++
		if d.calls == d.failOnCall {
			return nil, fmt.Errorf("flakyStagingDriver: forced row failure")
		}
	}
	return d.Driver.Exec(ctx, query, args)
}

func (d *flakyStagingDriver) Begin(ctx context.Context) (cursor.Tx, error) {
	return &flakyStagingTx{flakyStagingDriver: d}, nil
}

type flakyStagingTx struct {
	*flakyStagingDriver
}

func (t *flakyStagingTx) Commit(ctx context.Context) error   { return nil }
func (t *flakyStagingTx) Rollback(ctx context.Context) error { return nil }

func TestMergeViaTempTableCountsOnlySuccessfullyStagedRows(t *testing.T) {
	fake := cursortest.New(paramstyle.Named)
	f := cursor.New(fake, false)
	tbl := etltable.New("customers", f, userColumns())

	insertQuery := tbl.TempInsertSQL("surge_tmp_customers")
	fake.RegisterExec(tbl.CreateTempSQL("surge_tmp_customers"), 0, nil)
	fake.RegisterExec(tbl.TruncateTempSQL("surge_tmp_customers"), 0, nil)
	fake.RegisterExec(tbl.DropTempSQL("surge_tmp_customers"), 0, nil)
	fake.RegisterExec(tbl.TempMergeSQL("surge_tmp_customers"), 0, nil)
	fake.RegisterExec(insertQuery, 1, nil)

	driver := &flakyStagingDriver{Driver: fake, insertQuery: insertQuery, failOnCall: 2}
	tbl.Rebind(driver)

	s := surge.New(tbl, 10, surge.NoTx, surge.ContinueOnError)

	recs := []record.Record{
		rec([]string{"id", "name"}, map[string]any{"id": 1, "name": "Aang"}),
		rec([]string{"id", "name"}, map[string]any{"id": 2, "name": "Katara"}),
		rec([]string{"id", "name"}, map[string]any{"id": 3, "name": "Sokka"}),
	}
	require.NoError(t, s.Merge(context.Background(), sourceFrom(recs)))

	// Row 2's staging insert failed and counts as an error; the other two
	// staged successfully and are the only ones the merge covers.
	assert.Equal(t, 1, tbl.Counts.Error)
	assert.Equal(t, 2, tbl.Counts.Merge)
	assert.Equal(t, 3, tbl.Counts.Error+tbl.Counts.Merge)
}

func TestMergeViaTempTableSkipsMergeWhenNothingStaged(t *testing.T) {
	fake := cursortest.New(paramstyle.Named)
	f := cursor.New(fake, false)
	tbl := etltable.New("customers", f, userColumns())

	insertQuery := tbl.TempInsertSQL("surge_tmp_customers")
	fake.RegisterExec(tbl.CreateTempSQL("surge_tmp_customers"), 0, nil)
	fake.RegisterExec(tbl.DropTempSQL("surge_tmp_customers"), 0, nil)
	// TempMergeSQL is deliberately left unregistered: if the bug where
	// bumpBatchCount is called before checking staged>0 regresses, this
	// test fails with "no registered exec" instead of silently
	// overcounting.

	driver := &flakyStagingDriver{Driver: fake, insertQuery: insertQuery, failOnCall: 1}
	tbl.Rebind(driver)

	s := surge.New(tbl, 10, surge.NoTx, surge.ContinueOnError)

	recs := []record.Record{
		rec([]string{"id", "name"}, map[string]any{"id": 1, "name": "Aang"}),
	}
	require.NoError(t, s.Merge(context.Background(), sourceFrom(recs)))

	assert.Equal(t, 1, tbl.Counts.Error)
	assert.Equal(t, 0, tbl.Counts.Merge)
}
