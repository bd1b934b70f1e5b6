package cursor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/cursortest"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
)

func TestExecuteTranslatesAndFetchesRows(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterQuery("select id, name from users where id = $1", cursortest.QueryResult{
		Columns: []string{"id", "name"},
		Rows: []cursortest.Row{
			{"id": 1, "name": "Aang"},
		},
	})

	f := cursor.New(driver, false)
	ctx := context.Background()
	_, err := f.Execute(ctx, "select id, name from users where id = :id", map[string]any{"id": 1})
	require.NoError(t, err)

	rows, err := f.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Aang", rows[0].Get("name", nil))
	assert.Equal(t, []string{"id", "name"}, f.Columns(false))
}

func TestExecuteReturnsFacadeWhenReturnCursor(t *testing.T) {
	driver := cursortest.New(paramstyle.QuestionPositional)
	driver.RegisterExec("update t set v = ? where k = ?", 1, nil)

	f := cursor.New(driver, true)
	chained, err := f.Execute(context.Background(), "update t set v = :v where k = :k", map[string]any{"v": 1, "k": 2})
	require.NoError(t, err)
	require.NotNil(t, chained)
	assert.Same(t, f, chained)

	n, err := f.LastResult().RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestExecuteManyBindsEachPayload(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterExec("insert into t (a, b) values ($1, $2)", 1, nil)

	f := cursor.New(driver, false)
	res, err := f.ExecuteMany(context.Background(), "insert into t (a, b) values (:a, :b)", []map[string]any{
		{"a": 1, "b": 2},
		{"a": 3, "b": 4},
		{"a": 5, "b": 6},
	})
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(3), n)

	calls := driver.Calls()
	require.Len(t, calls, 3) // the fake has no native batch API; it loops Exec per payload
	assert.Equal(t, "insert into t (a, b) values ($1, $2)", calls[0].Query)
}

func TestFetchManyRespectsLimit(t *testing.T) {
	driver := cursortest.New(paramstyle.QuestionPositional)
	driver.RegisterQuery("select n from series", cursortest.QueryResult{
		Columns: []string{"n"},
		Rows: []cursortest.Row{
			{"n": 1}, {"n": 2}, {"n": 3},
		},
	})

	f := cursor.New(driver, false)
	_, err := f.Execute(context.Background(), "select n from series", map[string]any{})
	require.NoError(t, err)

	rows, err := f.FetchMany(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCloseClosesDriver(t *testing.T) {
	driver := cursortest.New(paramstyle.QuestionPositional)
	f := cursor.New(driver, false)
	require.NoError(t, f.Close())
	assert.True(t, driver.Closed())
}
