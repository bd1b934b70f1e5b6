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

// Package csv is a reference Record reader: it proves the Record I/O
// contract only needs a type that yields record.Record, nothing more. It
// reads delimited text with the standard library's encoding/csv, which
// already honors quoting, embedded delimiters, and comment lines — no
// third-party CSV library in the example pack does anything more than
// that.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/scottrbailey/dbtk/internal/dbtkerr"
	"github.com/scottrbailey/dbtk/internal/record"
)

// Options configures how a file is parsed.
type Options struct {
	// Delimiter is the field separator; ',' if zero.
	Delimiter rune
	// Comment, if non-zero, marks a line as a full-line comment.
	Comment rune
	// NoHeader skips treating the first row as column names; the schema
	// instead gets positional names (col_1, col_2, ...) unless the
	// caller calls WithSchema afterward.
	NoHeader bool
}

// Reader streams Records out of a CSV file, one per row, using the first
// row as the column schema unless Options.NoHeader is set.
type Reader struct {
	f      *os.File
	cr     *csv.Reader
	schema *record.Schema
}

// Open opens path and reads its header row (if any) to build the Record
// schema every subsequent row is yielded against.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dbtkerr.Resource("csv: open "+path, err)
	}
	cr := csv.NewReader(f)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		cr.Comment = opts.Comment
	}
	cr.FieldsPerRecord = -1

	r := &Reader{f: f, cr: cr}
	if !opts.NoHeader {
		names, err := cr.Read()
		if err != nil {
			f.Close()
			return nil, dbtkerr.Resource("csv: read header of "+path, err)
		}
		r.schema = record.NewSchema(names)
	}
	return r, nil
}

// WithSchema overrides the Reader's column schema, for a headerless file
// whose column names are supplied out of band.
func (r *Reader) WithSchema(names []string) {
	r.schema = record.NewSchema(names)
}

// Seq returns an iterator over the file's remaining rows. It closes the
// underlying file once exhausted or once the caller stops iterating.
func (r *Reader) Seq() iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		defer r.f.Close()
		for {
			fields, err := r.cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				if !yield(record.Record{}, dbtkerr.Resource("csv: read row", err)) {
					return
				}
				continue
			}
			if r.schema == nil {
				r.schema = record.NewSchema(positionalNames(len(fields)))
			}
			if len(fields) != r.schema.Len() {
				err := fmt.Errorf("csv: row has %d fields, schema has %d", len(fields), r.schema.Len())
				if !yield(record.Record{}, dbtkerr.Resource("csv: field count mismatch", err)) {
					return
				}
				continue
			}
			values := make([]any, len(fields))
			for i, v := range fields {
				values[i] = v
			}
			if !yield(record.New(r.schema, values), nil) {
				return
			}
		}
	}
}

func positionalNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("col_%d", i+1)
	}
	return names
}
