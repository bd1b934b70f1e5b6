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

package config_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrbailey/dbtk/internal/config"
	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/cursortest"
	"github.com/scottrbailey/dbtk/internal/dml"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
	"github.com/scottrbailey/dbtk/internal/record"
)

func TestTableConfigBuildResolvesColumnsAndFilter(t *testing.T) {
	tc := config.TableConfig{
		Name:   "customers",
		Source: "warehouse",
		Columns: []config.ColumnConfig{
			{Name: "id", Key: true, SourceFields: []string{"id"}},
			{Name: "name", SourceFields: []string{"name"}, Transform: []string{"upper"}},
		},
		Filter: `name != "Zuko"`,
	}

	driver := cursortest.New(paramstyle.Named)
	facade := cursor.New(driver, false)
	tbl, err := tc.Build(facade, nil)
	require.NoError(t, err)

	schema := record.NewSchema([]string{"id", "name"})

	err = tbl.SetValues(context.Background(), record.New(schema, []any{1, "Aang"}))
	require.NoError(t, err)
	assert.Equal(t, "AANG", tbl.Get("name"))
	assert.True(t, tbl.IsReady(dml.Insert))

	err = tbl.SetValues(context.Background(), record.New(schema, []any{2, "Zuko"}))
	require.Error(t, err)
	assert.Equal(t, 1, tbl.Counts.Filtered)
}

func TestTableConfigBuildRejectsBadTransform(t *testing.T) {
	tc := config.TableConfig{
		Name:   "customers",
		Source: "warehouse",
		Columns: []config.ColumnConfig{
			{Name: "id", Transform: []string{"maxlen"}},
		},
	}
	driver := cursortest.New(paramstyle.Named)
	facade := cursor.New(driver, false)
	_, err := tc.Build(facade, nil)
	assert.Error(t, err)
}
