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

// Package xlsx is a second reference Record reader, reading spreadsheet
// rows with github.com/xuri/excelize/v2 — the library the etl-tool
// reference implementation uses for the same job.
package xlsx

import (
	"fmt"
	"iter"

	"github.com/xuri/excelize/v2"

	"github.com/scottrbailey/dbtk/internal/dbtkerr"
	"github.com/scottrbailey/dbtk/internal/record"
)

// Options selects which sheet to read. SheetName takes precedence over
// SheetIndex when both are set, matching the reference config's
// precedence rule.
type Options struct {
	SheetName string
	SheetIndex *int
	// NoHeader skips treating the first row as column names.
	NoHeader bool
}

func sheetName(f *excelize.File, opts Options) (string, error) {
	if opts.SheetName != "" {
		return opts.SheetName, nil
	}
	if opts.SheetIndex != nil {
		names := f.GetSheetList()
		if *opts.SheetIndex < 0 || *opts.SheetIndex >= len(names) {
			return "", fmt.Errorf("xlsx: sheet index %d out of range (%d sheets)", *opts.SheetIndex, len(names))
		}
		return names[*opts.SheetIndex], nil
	}
	return f.GetSheetName(0), nil
}

// Reader streams Records out of one sheet of an xlsx file, one per row.
type Reader struct {
	f      *excelize.File
	rows   *excelize.Rows
	schema *record.Schema
}

// Open opens path and positions the Reader at the start of the selected
// sheet's data rows, reading the header row (if any) to build the Record
// schema.
func Open(path string, opts Options) (*Reader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, dbtkerr.Resource("xlsx: open "+path, err)
	}
	sheet, err := sheetName(f, opts)
	if err != nil {
		f.Close()
		return nil, dbtkerr.Resource("xlsx: resolve sheet in "+path, err)
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, dbtkerr.Resource(fmt.Sprintf("xlsx: open sheet %q", sheet), err)
	}

	r := &Reader{f: f, rows: rows}
	if !opts.NoHeader {
		if rows.Next() {
			names, err := rows.Columns()
			if err != nil {
				f.Close()
				return nil, dbtkerr.Resource("xlsx: read header of "+path, err)
			}
			r.schema = record.NewSchema(names)
		}
	}
	return r, nil
}

// WithSchema overrides the Reader's column schema, for a headerless sheet
// whose column names are supplied out of band.
func (r *Reader) WithSchema(names []string) {
	r.schema = record.NewSchema(names)
}

// Seq returns an iterator over the sheet's remaining rows. It closes the
// underlying workbook once exhausted or once the caller stops iterating.
func (r *Reader) Seq() iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		defer r.f.Close()
		for r.rows.Next() {
			fields, err := r.rows.Columns()
			if err != nil {
				if !yield(record.Record{}, dbtkerr.Resource("xlsx: read row", err)) {
					return
				}
				continue
			}
			if r.schema == nil {
				r.schema = record.NewSchema(positionalNames(len(fields)))
			}
			values := rowValues(fields, r.schema.Len())
			if !yield(record.New(r.schema, values), nil) {
				return
			}
		}
	}
}

// rowValues pads or truncates a sheet row to width columns: excelize
// trims trailing empty cells, so a short row is not a format error the
// way a CSV field-count mismatch is.
func rowValues(fields []string, width int) []any {
	values := make([]any, width)
	for i := 0; i < width; i++ {
		if i < len(fields) {
			values[i] = fields[i]
		} else {
			values[i] = ""
		}
	}
	return values
}

func positionalNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("col_%d", i+1)
	}
	return names
}
