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

package config

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/dml"
	"github.com/scottrbailey/dbtk/internal/etltable"
	csvreader "github.com/scottrbailey/dbtk/internal/reader/csv"
	xlsxreader "github.com/scottrbailey/dbtk/internal/reader/xlsx"
	"github.com/scottrbailey/dbtk/internal/record"
	"github.com/scottrbailey/dbtk/internal/surge"
)

// QuerySource streams a job's input Records from a SQL query issued
// against one of the top-level named sources.
type QuerySource struct {
	Source string `yaml:"source" validate:"required"`
	SQL    string `yaml:"sql" validate:"required"`
}

// FileSource streams a job's input Records from a delimited or
// spreadsheet file, read locally rather than through a cursor.Driver.
type FileSource struct {
	Path      string `yaml:"path" validate:"required"`
	Format    string `yaml:"format" validate:"required,oneof=csv xlsx"`
	Delimiter string `yaml:"delimiter,omitempty"`
	Comment   string `yaml:"comment,omitempty"`
	NoHeader  bool   `yaml:"noHeader,omitempty"`
	Sheet     string `yaml:"sheet,omitempty"`
}

// JobConfig drives one Table through Surge over one Source.
type JobConfig struct {
	Name      string       `yaml:"name" validate:"required"`
	Table     string       `yaml:"table" validate:"required"`
	Op        string       `yaml:"op" validate:"required,oneof=insert update delete merge"`
	BatchSize int          `yaml:"batchSize,omitempty"`
	Tx        string       `yaml:"tx,omitempty"`      // none|run|batch, default none
	OnError   string       `yaml:"onError,omitempty"` // continue|abort, default continue
	Query     *QuerySource `yaml:"query,omitempty"`
	File      *FileSource  `yaml:"file,omitempty"`
}

func parseOp(s string) (dml.Op, error) {
	switch strings.ToLower(s) {
	case "insert":
		return dml.Insert, nil
	case "update":
		return dml.Update, nil
	case "delete":
		return dml.Delete, nil
	case "merge":
		return dml.Merge, nil
	default:
		return 0, fmt.Errorf("config: unknown op %q", s)
	}
}

func parseTxMode(s string) (surge.TxMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return surge.NoTx, nil
	case "run":
		return surge.WrapWholeRun, nil
	case "batch":
		return surge.WrapPerBatch, nil
	default:
		return 0, fmt.Errorf("config: unknown tx mode %q", s)
	}
}

func parseOnError(s string) (surge.OnError, error) {
	switch strings.ToLower(s) {
	case "", "continue":
		return surge.ContinueOnError, nil
	case "abort":
		return surge.AbortOnError, nil
	default:
		return 0, fmt.Errorf("config: unknown error policy %q", s)
	}
}

// querySource runs sql once against facade and streams the result set as
// a surge.Source, one FetchOne call per row.
func querySource(ctx context.Context, facade *cursor.Facade, sql string) surge.Source {
	return func(yield func(record.Record, error) bool) {
		if _, err := facade.Execute(ctx, sql, nil); err != nil {
			yield(record.Record{}, err)
			return
		}
		for {
			rec, ok, err := facade.FetchOne(ctx)
			if err != nil {
				if !yield(record.Record{}, err) {
					return
				}
				continue
			}
			if !ok {
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func fileSource(fs FileSource) (surge.Source, error) {
	switch strings.ToLower(fs.Format) {
	case "csv":
		opts := csvreader.Options{NoHeader: fs.NoHeader}
		if fs.Delimiter != "" {
			opts.Delimiter = []rune(fs.Delimiter)[0]
		}
		if fs.Comment != "" {
			opts.Comment = []rune(fs.Comment)[0]
		}
		r, err := csvreader.Open(fs.Path, opts)
		if err != nil {
			return nil, err
		}
		return iter.Seq2[record.Record, error](r.Seq()), nil
	case "xlsx":
		r, err := xlsxreader.Open(fs.Path, xlsxreader.Options{SheetName: fs.Sheet, NoHeader: fs.NoHeader})
		if err != nil {
			return nil, err
		}
		return iter.Seq2[record.Record, error](r.Seq()), nil
	default:
		return nil, fmt.Errorf("config: unknown file format %q", fs.Format)
	}
}

// Build resolves a JobConfig's Source and assembles the *surge.Surge run
// for it, over table (already bound to the target driver via sources).
// queryFacade is the Facade to issue Query.SQL through, when the job reads
// from a database source rather than a file.
func (c JobConfig) Build(ctx context.Context, table *etltable.Table, queryFacade *cursor.Facade) (*surge.Surge, surge.Source, dml.Op, error) {
	op, err := parseOp(c.Op)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("config: job %q: %w", c.Name, err)
	}
	txMode, err := parseTxMode(c.Tx)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("config: job %q: %w", c.Name, err)
	}
	onErr, err := parseOnError(c.OnError)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("config: job %q: %w", c.Name, err)
	}

	batchSize := c.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	var source surge.Source
	switch {
	case c.Query != nil:
		if queryFacade == nil {
			return nil, nil, 0, fmt.Errorf("config: job %q: query source %q not available", c.Name, c.Query.Source)
		}
		source = querySource(ctx, queryFacade, c.Query.SQL)
	case c.File != nil:
		source, err = fileSource(*c.File)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("config: job %q: %w", c.Name, err)
		}
	default:
		return nil, nil, 0, fmt.Errorf("config: job %q: neither query nor file source configured", c.Name)
	}

	s := surge.New(table, batchSize, txMode, onErr)
	return s, source, op, nil
}

// Run drives s over source for op — the single switch every caller
// (cmd/dbtk's run subcommand, tests) needs instead of re-deriving which
// Surge method corresponds to a dml.Op.
func Run(ctx context.Context, s *surge.Surge, source surge.Source, op dml.Op) error {
	switch op {
	case dml.Insert:
		return s.Insert(ctx, source)
	case dml.Update:
		return s.Update(ctx, source)
	case dml.Delete:
		return s.Delete(ctx, source)
	case dml.Merge:
		return s.Merge(ctx, source)
	default:
		return fmt.Errorf("config: unsupported op %v for a run", op)
	}
}
