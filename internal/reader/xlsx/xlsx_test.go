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

package xlsx_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	xlsxreader "github.com/scottrbailey/dbtk/internal/reader/xlsx"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]string) string {
	t.Helper()
	f := excelize.NewFile()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func TestSeqYieldsRecordsByHeaderName(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]string{
		{"id", "name"},
		{"1", "Aang"},
		{"2", "Katara"},
	})
	r, err := xlsxreader.Open(path, xlsxreader.Options{})
	require.NoError(t, err)

	var names []string
	for rec, rerr := range r.Seq() {
		require.NoError(t, rerr)
		v, _ := rec.Value("name")
		names = append(names, v.(string))
	}
	assert.Equal(t, []string{"Aang", "Katara"}, names)
}

func TestSheetNameSelectsNonDefaultSheet(t *testing.T) {
	path := writeWorkbook(t, "data", [][]string{
		{"id", "name"},
		{"1", "Sokka"},
	})
	r, err := xlsxreader.Open(path, xlsxreader.Options{SheetName: "data"})
	require.NoError(t, err)

	count := 0
	for rec, rerr := range r.Seq() {
		require.NoError(t, rerr)
		v, _ := rec.Value("name")
		assert.Equal(t, "Sokka", v)
		count++
	}
	assert.Equal(t, 1, count)
}

func TestNoHeaderUsesPositionalNames(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]string{
		{"1", "Toph"},
	})
	r, err := xlsxreader.Open(path, xlsxreader.Options{NoHeader: true})
	require.NoError(t, err)

	for rec, rerr := range r.Seq() {
		require.NoError(t, rerr)
		v, _ := rec.Value("col_2")
		assert.Equal(t, "Toph", v)
	}
}
