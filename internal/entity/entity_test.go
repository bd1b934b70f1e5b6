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

package entity_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/cursortest"
	"github.com/scottrbailey/dbtk/internal/entity"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
	"github.com/scottrbailey/dbtk/internal/record"
)

func customerResolver(t *testing.T, driver *cursortest.Driver) *entity.Resolver {
	t.Helper()
	stmt, err := cursor.Prepare(context.Background(), driver, "select customer_id from customers where email = :email")
	require.NoError(t, err)
	return &entity.Resolver{
		Name: "customer_id",
		Stmt: stmt,
		Params: func(_ string, fields map[string]any) map[string]any {
			return map[string]any{"email": fields["email"]}
		},
	}
}

func TestProcessRowCreatesEntityAndResolvesSecondaryID(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterQuery("select customer_id from customers where email = $1", cursortest.QueryResult{
		Columns: []string{"customer_id"},
		Rows:    []cursortest.Row{{"customer_id": 42}},
	})
	m := entity.New(customerResolver(t, driver))

	row := record.NewFromMap([]string{"email", "name"}, map[string]any{"email": "a@example.com", "name": "Aang"})
	e, err := m.ProcessRow(context.Background(), "A1", row)
	require.NoError(t, err)
	assert.Equal(t, "A1", e.PrimaryID)
	assert.Equal(t, entity.Resolved, e.Secondary["customer_id"].Status)
	assert.Equal(t, 42, e.Secondary["customer_id"].Value)
	assert.Equal(t, 1, m.Len())
}

func TestProcessRowSkipsAlreadyResolvedSecondaryID(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterQuery("select customer_id from customers where email = $1", cursortest.QueryResult{
		Columns: []string{"customer_id"},
		Rows:    []cursortest.Row{{"customer_id": 42}},
	})
	m := entity.New(customerResolver(t, driver))
	ctx := context.Background()
	row := record.NewFromMap([]string{"email"}, map[string]any{"email": "a@example.com"})

	_, err := m.ProcessRow(ctx, "A1", row)
	require.NoError(t, err)
	_, err = m.ProcessRow(ctx, "A1", row)
	require.NoError(t, err)

	calls := driver.Calls()
	assert.Len(t, calls, 1, "a resolved secondary id must not be re-queried")
}

func TestProcessRowRetriesFailedSecondaryID(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterQuery("select customer_id from customers where email = $1", cursortest.QueryResult{
		Columns: []string{"customer_id"},
		Rows:    nil,
	})
	m := entity.New(customerResolver(t, driver))
	ctx := context.Background()
	row := record.NewFromMap([]string{"email"}, map[string]any{"email": "a@example.com"})

	e, err := m.ProcessRow(ctx, "A1", row)
	require.NoError(t, err)
	assert.Equal(t, entity.Failed, e.Secondary["customer_id"].Status)
	assert.NotEmpty(t, e.Secondary["customer_id"].Err)

	e, err = m.ProcessRow(ctx, "A1", row)
	require.NoError(t, err)
	assert.Equal(t, entity.Failed, e.Secondary["customer_id"].Status)
	assert.Len(t, driver.Calls(), 2, "a failed secondary id must be retried on the next encounter")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterQuery("select customer_id from customers where email = $1", cursortest.QueryResult{
		Columns: []string{"customer_id"},
		Rows:    []cursortest.Row{{"customer_id": 42}},
	})
	m := entity.New(customerResolver(t, driver))
	ctx := context.Background()
	row := record.NewFromMap([]string{"email"}, map[string]any{"email": "a@example.com"})
	_, err := m.ProcessRow(ctx, "A1", row)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "entities.json")
	require.NoError(t, m.Save(path))

	loaded := entity.New(customerResolver(t, driver))
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, m.RunID, loaded.RunID)
	got := loaded.Get("A1")
	require.NotNil(t, got)
	assert.EqualValues(t, 42, got.Secondary["customer_id"].Value)
	assert.Equal(t, entity.Complete, got.Status)
}

func TestLoadDefaultsUnrecomputedEntityToPending(t *testing.T) {
	// A snapshot written before a secondary id finishes resolving (or one
	// from an older Manager version with no status field at all) carries
	// no explicit status; Pending is the zero value, so an entity isn't
	// misreported as Complete until ProcessRow actually recomputes it.
	raw := `{
		"run_id": "resumed-run",
		"entities": {
			"A1": {
				"primary_id": "A1",
				"fields": {"email": "a@example.com"},
				"secondary": {"customer_id": {"status": 0}}
			}
		}
	}`
	path := filepath.Join(t.TempDir(), "entities.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	driver := cursortest.New(paramstyle.DollarPositional)
	m := entity.New(customerResolver(t, driver))
	require.NoError(t, m.Load(path))

	got := m.Get("A1")
	require.NotNil(t, got)
	assert.Equal(t, entity.Pending, got.Status)
}

func TestStatusErroredWhenAnySecondaryIDFailed(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterQuery("select customer_id from customers where email = $1", cursortest.QueryResult{
		Columns: []string{"customer_id"},
		Rows:    nil,
	})
	m := entity.New(customerResolver(t, driver))
	row := record.NewFromMap([]string{"email"}, map[string]any{"email": "a@example.com"})

	e, err := m.ProcessRow(context.Background(), "A1", row)
	require.NoError(t, err)
	assert.Equal(t, entity.Errored, e.Status)
}

func TestSkipIsStickyAcrossProcessRow(t *testing.T) {
	driver := cursortest.New(paramstyle.DollarPositional)
	driver.RegisterQuery("select customer_id from customers where email = $1", cursortest.QueryResult{
		Columns: []string{"customer_id"},
		Rows:    []cursortest.Row{{"customer_id": 42}},
	})
	m := entity.New(customerResolver(t, driver))

	skipped := m.Skip("A1", "excluded per request")
	assert.Equal(t, entity.Skipped, skipped.Status)
	assert.Equal(t, "excluded per request", skipped.Notes)

	row := record.NewFromMap([]string{"email"}, map[string]any{"email": "a@example.com"})
	e, err := m.ProcessRow(context.Background(), "A1", row)
	require.NoError(t, err)
	assert.Equal(t, entity.Skipped, e.Status, "Skip must survive a later ProcessRow call")
	assert.Empty(t, driver.Calls(), "a skipped entity's resolvers must not run")
}
