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

	"github.com/scottrbailey/dbtk/internal/paramstyle"
	"github.com/scottrbailey/dbtk/internal/record"
)

// PreparedStatement is a canonical query translated once against a Driver's
// native style and reusable across many bind payloads. Lookup (C5) and the
// Table's single-row DML (C7) are both built on this: translate once at
// construction, bind and execute repeatedly on the hot path.
type PreparedStatement struct {
	driver Driver
	handle PreparedHandle // non-nil when the driver supports native preparation
	query  string
	style  paramstyle.Style
	bind   func(map[string]any) any
	names  []string
}

// Prepare translates query against driver's native style and, if the
// driver implements Preparer, asks it to build a native prepared handle.
// Drivers that don't support server-side preparation still benefit from
// translating once; each Query/Exec call simply re-sends the translated
// text.
func Prepare(ctx context.Context, driver Driver, query string) (*PreparedStatement, error) {
	tr, err := paramstyle.Translate(query, driver.Style())
	if err != nil {
		return nil, err
	}
	ps := &PreparedStatement{
		driver: driver,
		query:  tr.Query,
		style:  tr.Style,
		bind:   tr.Bind,
		names:  tr.Names(),
	}
	if p, ok := driver.(Preparer); ok {
		handle, err := p.Prepare(ctx, tr.Query)
		if err != nil {
			return nil, err
		}
		ps.handle = handle
	}
	return ps, nil
}

// Query executes the prepared statement with a bound payload and returns a
// Facade positioned at the resulting rows.
func (ps *PreparedStatement) Query(ctx context.Context, params map[string]any) (*Facade, error) {
	bound := ps.bind(params)
	var rows Rows
	var err error
	if ps.handle != nil {
		rows, err = ps.handle.Query(ctx, bound)
	} else {
		rows, err = ps.driver.Query(ctx, ps.query, bound)
	}
	if err != nil {
		return nil, err
	}
	f := &Facade{driver: ps.driver, rows: rows}
	return f, nil
}

// Exec executes the prepared statement with a bound payload for a
// non-row-returning statement.
func (ps *PreparedStatement) Exec(ctx context.Context, params map[string]any) (Result, error) {
	bound := ps.bind(params)
	if ps.handle != nil {
		return ps.handle.Exec(ctx, bound)
	}
	return ps.driver.Exec(ctx, ps.query, bound)
}

// FetchOne runs Query and returns the first row, or ok=false if empty.
func (ps *PreparedStatement) FetchOne(ctx context.Context, params map[string]any) (record.Record, bool, error) {
	f, err := ps.Query(ctx, params)
	if err != nil {
		return record.Record{}, false, err
	}
	defer f.closeRows()
	return f.FetchOne(ctx)
}

// Names returns the distinct canonical parameter names the statement
// references, in first-occurrence order.
func (ps *PreparedStatement) Names() []string {
	return ps.names
}

// Close releases the native prepared handle, if one was created.
func (ps *PreparedStatement) Close() error {
	if ps.handle != nil {
		return ps.handle.Close()
	}
	return nil
}
