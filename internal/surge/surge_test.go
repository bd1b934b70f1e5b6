package surge_test

import (
	"context"
	"fmt"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrbailey/dbtk/internal/column"
	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/cursortest"
	"github.com/scottrbailey/dbtk/internal/etltable"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
	"github.com/scottrbailey/dbtk/internal/record"
	"github.com/scottrbailey/dbtk/internal/surge"
)

func rec(names []string, values map[string]any) record.Record {
	return record.NewFromMap(names, values)
}

func sourceFrom(recs []record.Record) surge.Source {
	return func(yield func(record.Record, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func userColumns() []*column.Descriptor {
	return []*column.Descriptor{
		{Name: "id", Key: true, SourceFields: []string{"id"}},
		{Name: "name", Nullable: false, SourceFields: []string{"name"}},
	}
}

func TestInsertBatchFlushesAndCounts(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterExec("insert into users (id, name) values ($1, $2)", 1, nil)
	f := cursor.New(driver, false)
	tbl := etltable.New("users", f, userColumns())

	var progressed []etltable.Counts
	s := surge.New(tbl, 2, surge.NoTx, surge.ContinueOnError, surge.WithProgress(func(c etltable.Counts) {
		progressed = append(progressed, c)
	}))

	recs := []record.Record{
		rec([]string{"id", "name"}, map[string]any{"id": 1, "name": "Aang"}),
		rec([]string{"id", "name"}, map[string]any{"id": 2, "name": "Katara"}),
		rec([]string{"id", "name"}, map[string]any{"id": 3, "name": "Sokka"}),
	}
	require.NoError(t, s.Insert(context.Background(), sourceFrom(recs)))
	assert.Equal(t, 3, tbl.Counts.Insert)
	assert.NotEmpty(t, progressed)
}

func TestInsertIncompleteRowsDoNotReachDriver(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	f := cursor.New(driver, false)
	tbl := etltable.New("users", f, userColumns())
	s := surge.New(tbl, 10, surge.NoTx, surge.ContinueOnError)

	recs := []record.Record{
		rec([]string{"id"}, map[string]any{"id": 1}),
	}
	require.NoError(t, s.Insert(context.Background(), sourceFrom(recs)))
	assert.Equal(t, 1, tbl.Counts.Incomplete)
	assert.Equal(t, 0, tbl.Counts.Insert)
	assert.Empty(t, driver.Calls())
}

func TestSourceErrorContinuesAndCountsError(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterExec("insert into users (id, name) values ($1, $2)", 1, nil)
	f := cursor.New(driver, false)
	tbl := etltable.New("users", f, userColumns())
	s := surge.New(tbl, 10, surge.NoTx, surge.ContinueOnError)

	var src surge.Source = func(yield func(record.Record, error) bool) {
		if !yield(record.Record{}, fmt.Errorf("boom")) {
			return
		}
		yield(rec([]string{"id", "name"}, map[string]any{"id": 1, "name": "Aang"}), nil)
	}
	require.NoError(t, s.Insert(context.Background(), src))
	assert.Equal(t, 1, tbl.Counts.Error)
	assert.Equal(t, 1, tbl.Counts.Insert)
}

func TestSourceErrorAbortsUnderAbortPolicy(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	f := cursor.New(driver, false)
	tbl := etltable.New("users", f, userColumns())
	s := surge.New(tbl, 10, surge.NoTx, surge.AbortOnError)

	var src surge.Source = func(yield func(record.Record, error) bool) {
		yield(record.Record{}, fmt.Errorf("boom"))
	}
	err := s.Insert(context.Background(), src)
	assert.Error(t, err)
}

func TestBatchFailureFallsBackToPerRowUnderContinue(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	// no RegisterExec for the batch insert text -> ExecuteMany fails;
	// per-row fallback uses the prepared statement's own Exec call on
	// the same query text, which also isn't registered, so every row
	// counts as an error rather than panicking.
	f := cursor.New(driver, false)
	tbl := etltable.New("users", f, userColumns())
	s := surge.New(tbl, 10, surge.NoTx, surge.ContinueOnError)

	recs := []record.Record{
		rec([]string{"id", "name"}, map[string]any{"id": 1, "name": "Aang"}),
		rec([]string{"id", "name"}, map[string]any{"id": 2, "name": "Katara"}),
	}
	require.NoError(t, s.Insert(context.Background(), sourceFrom(recs)))
	assert.Equal(t, 2, tbl.Counts.Error)
	assert.Equal(t, 0, tbl.Counts.Insert)
}

func TestInsertSkipsFilteredRowsWithoutCountingThemAsErrors(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterExec("insert into users (id, name) values ($1, $2)", 1, nil)
	f := cursor.New(driver, false)
	tbl := etltable.New("users", f, userColumns())
	require.NoError(t, tbl.SetFilter("name != 'Zuko'"))
	s := surge.New(tbl, 10, surge.NoTx, surge.ContinueOnError)

	recs := []record.Record{
		rec([]string{"id", "name"}, map[string]any{"id": 1, "name": "Aang"}),
		rec([]string{"id", "name"}, map[string]any{"id": 2, "name": "Zuko"}),
	}
	require.NoError(t, s.Insert(context.Background(), sourceFrom(recs)))
	assert.Equal(t, 1, tbl.Counts.Insert)
	assert.Equal(t, 1, tbl.Counts.Filtered)
	assert.Equal(t, 0, tbl.Counts.Error)
}

var _ iter.Seq2[record.Record, error] = sourceFrom(nil)
