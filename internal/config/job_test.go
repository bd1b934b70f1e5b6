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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottrbailey/dbtk/internal/config"
	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/cursortest"
	"github.com/scottrbailey/dbtk/internal/dml"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
)

func TestJobConfigBuildFileSourceDrivesInsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customers.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,Aang\n2,Katara\n"), 0o644))

	driver := cursortest.New(paramstyle.Named)
	driver.RegisterExec("insert into customers (id, name) values (:id, :name)", 1, nil)
	facade := cursor.New(driver, false)

	tc := config.TableConfig{
		Name:   "customers",
		Source: "files",
		Columns: []config.ColumnConfig{
			{Name: "id", Key: true, SourceFields: []string{"id"}, Transform: []string{"int"}},
			{Name: "name", SourceFields: []string{"name"}},
		},
	}
	tbl, err := tc.Build(facade, nil)
	require.NoError(t, err)

	jc := config.JobConfig{
		Name:      "load-customers",
		Table:     "customers",
		Op:        "insert",
		BatchSize: 10,
		File:      &config.FileSource{Path: path, Format: "csv"},
	}
	s, source, op, err := jc.Build(context.Background(), tbl, nil)
	require.NoError(t, err)
	assert.Equal(t, dml.Insert, op)

	require.NoError(t, config.Run(context.Background(), s, source, op))
	assert.Equal(t, 2, tbl.Counts.Insert)
}

func TestJobConfigBuildRequiresASource(t *testing.T) {
	jc := config.JobConfig{Name: "broken", Table: "customers", Op: "insert"}
	_, _, _, err := jc.Build(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestJobConfigBuildRejectsUnknownOp(t *testing.T) {
	jc := config.JobConfig{
		Name:  "broken",
		Table: "customers",
		Op:    "upsert",
		File:  &config.FileSource{Path: "x.csv", Format: "csv"},
	}
	_, _, _, err := jc.Build(context.Background(), nil, nil)
	assert.Error(t, err)
}
