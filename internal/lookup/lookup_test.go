package lookup_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/cursortest"
	"github.com/scottrbailey/dbtk/internal/dbtkerr"
	"github.com/scottrbailey/dbtk/internal/lookup"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
	"github.com/scottrbailey/dbtk/internal/record"
)

func rec(names []string, values map[string]any) record.Record {
	return record.NewFromMap(names, values)
}

func TestPreloadLookupScalarResult(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterQuery("select store_id, region from stores", cursortest.QueryResult{
		Columns: []string{"store_id", "region"},
		Rows: []cursortest.Row{
			{"store_id": 1, "region": "west"},
			{"store_id": 2, "region": "east"},
		},
	})

	f := cursor.New(driver, false)
	lk := lookup.New(f, "stores", []string{"store_id"}, []string{"region"}, lookup.Preload)

	r := rec([]string{"store_id"}, map[string]any{"store_id": 1})
	v, err := lk.Call(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "west", v)

	r2 := rec([]string{"store_id"}, map[string]any{"store_id": 99})
	v2, err := lk.Call(context.Background(), r2)
	require.NoError(t, err)
	assert.Nil(t, v2)
}

func TestLookupMissingKeyColumnErrors(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	f := cursor.New(driver, false)
	lk := lookup.New(f, "stores", []string{"store_id"}, []string{"region"}, lookup.None)

	r := rec([]string{"other"}, map[string]any{"other": 1})
	_, err := lk.Call(context.Background(), r)
	require.Error(t, err)
	var lookupErr *dbtkerr.LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "stores", lookupErr.Table)
	assert.Equal(t, []string{"store_id"}, lookupErr.Missing)
}

func TestNoneCacheQueriesEveryCall(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterQuery("select region from stores where store_id = $1", cursortest.QueryResult{
		Columns: []string{"region"},
		Rows: []cursortest.Row{
			{"region": "west"},
		},
	})

	f := cursor.New(driver, false)
	lk := lookup.New(f, "stores", []string{"store_id"}, []string{"region"}, lookup.None)

	r := rec([]string{"store_id"}, map[string]any{"store_id": 1})
	for i := 0; i < 3; i++ {
		v, err := lk.Call(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, "west", v)
	}
	assert.Len(t, driver.Calls(), 3)
}

func TestLazyCacheQueriesOnceThenHitsMap(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterQuery("select region from stores where store_id = $1", cursortest.QueryResult{
		Columns: []string{"region"},
		Rows: []cursortest.Row{
			{"region": "west"},
		},
	})

	f := cursor.New(driver, false)
	lk := lookup.New(f, "stores", []string{"store_id"}, []string{"region"}, lookup.Lazy)

	r := rec([]string{"store_id"}, map[string]any{"store_id": 1})
	for i := 0; i < 3; i++ {
		v, err := lk.Call(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, "west", v)
	}
	assert.Len(t, driver.Calls(), 1)
}

func TestValidateEmitsWarningOnMiss(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterQuery("select store_id from stores where store_id = $1", cursortest.QueryResult{
		Columns: []string{"store_id"},
		Rows:    nil,
	})

	var warnings []lookup.ValidationWarning
	f := cursor.New(driver, false)
	lk := lookup.NewValidate(f, "stores", []string{"store_id"}, lookup.None, func(w lookup.ValidationWarning) {
		warnings = append(warnings, w)
	})

	r := rec([]string{"store_id"}, map[string]any{"store_id": 42})
	v, err := lk.Call(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	require.Len(t, warnings, 1)
	assert.Equal(t, "stores", warnings[0].Table)
	assert.Equal(t, 42, warnings[0].Value)
}

func TestParseShorthandLookupAndValidate(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	f := cursor.New(driver, false)

	lk, err := lookup.ParseShorthand("lookup:stores:store_id:region:lazy", f, nil)
	require.NoError(t, err)
	require.NotNil(t, lk)

	vl, err := lookup.ParseShorthand("validate:stores:store_id", f, nil)
	require.NoError(t, err)
	require.NotNil(t, vl)

	_, err = lookup.ParseShorthand("lookup:stores:store_id", f, nil)
	assert.Error(t, err)
}
