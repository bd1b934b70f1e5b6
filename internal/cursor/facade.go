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

package cursor

import (
	"context"
	"os"
	"strings"

	"github.com/scottrbailey/dbtk/internal/paramstyle"
	"github.com/scottrbailey/dbtk/internal/record"
)

// queryLeadWords are the statement keywords that return rows. Facade
// inspects the first non-comment, non-whitespace token of a canonical
// query to decide whether to route it through Driver.Query or Driver.Exec;
// there is no separate "query vs statement" call in the facade surface, so
// this sniff is how execute() stays a single entry point.
var queryLeadWords = map[string]bool{
	"select":  true,
	"with":    true,
	"show":    true,
	"explain": true,
	"pragma":  true,
	"values":  true,
	"table":   true,
}

func looksLikeQuery(sql string) bool {
	s := strings.TrimSpace(sql)
	if i := strings.IndexAny(s, " \t\n\r("); i > 0 {
		s = s[:i]
	}
	return queryLeadWords[strings.ToLower(s)]
}

// Facade wraps a Driver with the uniform execute/fetch surface: it
// translates canonical placeholder syntax into the driver's native style,
// converts native Rows into record.Record, and tracks the active result
// set's schema across fetches.
type Facade struct {
	driver       Driver
	returnCursor bool

	rows     Rows
	schema   *record.Schema
	lastStmt Result
}

// New wraps a Driver in a Facade. When returnCursor is true, Execute and
// ExecuteFile return the Facade itself for fluent chaining
// (f.Execute(...).FetchAll(ctx)); when false they return nil on success.
func New(d Driver, returnCursor bool) *Facade {
	return &Facade{driver: d, returnCursor: returnCursor}
}

// Columns returns the active result set's column names, original or
// normalized. It returns nil if no result set schema has been established
// yet (before the first Fetch* call after Execute).
func (f *Facade) Columns(normalized bool) []string {
	if f.schema == nil {
		return nil
	}
	if normalized {
		return f.schema.NormalizedNames()
	}
	return f.schema.Names()
}

// translateAndRun translates a canonical query against the driver's native
// style (when params is non-nil) and dispatches it to Query or Exec based
// on its leading keyword.
func (f *Facade) translateAndRun(ctx context.Context, sqlText string, params map[string]any) (Rows, Result, error) {
	query := sqlText
	var bound any
	if params != nil {
		tr, err := paramstyle.Translate(sqlText, f.driver.Style())
		if err != nil {
			return nil, nil, err
		}
		query = tr.Query
		bound = tr.Bind(params)
	}

	if looksLikeQuery(sqlText) {
		rows, err := f.driver.Query(ctx, query, bound)
		return rows, nil, err
	}
	res, err := f.driver.Exec(ctx, query, bound)
	return nil, res, err
}

// Execute runs a canonical SQL statement. params may be nil for a
// parameterless or already-native-positional statement; when non-nil it is
// treated as a name->value payload and translated against the driver's
// native placeholder style.
func (f *Facade) Execute(ctx context.Context, sqlText string, params map[string]any) (*Facade, error) {
	f.closeRows()
	rows, res, err := f.translateAndRun(ctx, sqlText, params)
	if err != nil {
		return nil, err
	}
	f.rows = rows
	f.lastStmt = res
	f.schema = nil
	if f.returnCursor {
		return f, nil
	}
	return nil, nil
}

// ExecuteFile reads sqlPath and executes its contents as a canonical query.
func (f *Facade) ExecuteFile(ctx context.Context, sqlPath string, params map[string]any) (*Facade, error) {
	contents, err := os.ReadFile(sqlPath)
	if err != nil {
		return nil, err
	}
	return f.Execute(ctx, string(contents), params)
}

// ExecuteMany translates sqlText once and issues one driver batch call
// across every payload in paramsSeq, deferring to the native driver's
// batch execution.
func (f *Facade) ExecuteMany(ctx context.Context, sqlText string, paramsSeq []map[string]any) (Result, error) {
	tr, err := paramstyle.Translate(sqlText, f.driver.Style())
	if err != nil {
		return nil, err
	}
	bound := make([]any, len(paramsSeq))
	for i, p := range paramsSeq {
		bound[i] = tr.Bind(p)
	}
	return f.driver.ExecBatch(ctx, tr.Query, bound)
}

// PrepareFile reads sqlPath, translates it once, and returns a
// PreparedStatement bound to this Facade's cursor.
func (f *Facade) PrepareFile(ctx context.Context, sqlPath string) (*PreparedStatement, error) {
	contents, err := os.ReadFile(sqlPath)
	if err != nil {
		return nil, err
	}
	return Prepare(ctx, f.driver, string(contents))
}

// LastResult returns the Result from the most recent non-query Execute
// call, or nil if the most recent statement returned rows instead.
func (f *Facade) LastResult() Result {
	return f.lastStmt
}

// Driver returns the underlying Driver, for callers (lookup, DML
// generation) that need to build their own PreparedStatement against the
// same connection.
func (f *Facade) Driver() Driver {
	return f.driver
}

func (f *Facade) ensureSchema() error {
	if f.schema != nil {
		return nil
	}
	names, err := f.rows.Columns()
	if err != nil {
		return err
	}
	f.schema = record.NewSchema(names)
	return nil
}

// FetchOne returns the next row, or ok=false if the result set is
// exhausted.
func (f *Facade) FetchOne(ctx context.Context) (rec record.Record, ok bool, err error) {
	if f.rows == nil {
		return record.Record{}, false, nil
	}
	if !f.rows.Next(ctx) {
		return record.Record{}, false, f.rows.Err()
	}
	if err := f.ensureSchema(); err != nil {
		return record.Record{}, false, err
	}
	values := make([]any, f.schema.Len())
	if err := f.rows.Scan(values); err != nil {
		return record.Record{}, false, err
	}
	return record.New(f.schema, values), true, nil
}

// FetchMany returns up to n rows from the active result set.
func (f *Facade) FetchMany(ctx context.Context, n int) ([]record.Record, error) {
	out := make([]record.Record, 0, n)
	for i := 0; i < n; i++ {
		rec, ok, err := f.FetchOne(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

// FetchAll drains the remaining rows of the active result set.
func (f *Facade) FetchAll(ctx context.Context) ([]record.Record, error) {
	var out []record.Record
	for {
		rec, ok, err := f.FetchOne(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}

func (f *Facade) closeRows() {
	if f.rows != nil {
		_ = f.rows.Close()
		f.rows = nil
	}
}

// Close releases the active result set, if any, and the underlying Driver.
func (f *Facade) Close() error {
	f.closeRows()
	return f.driver.Close()
}
