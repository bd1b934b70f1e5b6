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
	"fmt"

	"github.com/scottrbailey/dbtk/internal/column"
	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/etltable"
	"github.com/scottrbailey/dbtk/internal/lookup"
)

// TableConfig describes one target table: which source it binds to, its
// columns, and an optional row filter.
type TableConfig struct {
	Name    string         `yaml:"name" validate:"required"`
	Source  string         `yaml:"source" validate:"required"`
	Columns []ColumnConfig `yaml:"columns" validate:"required,min=1"`
	Filter  string         `yaml:"filter,omitempty"`
	// RaiseOnTransformError switches the table's transform error policy
	// from the default ContinueOnError to RaiseOnError.
	RaiseOnTransformError bool `yaml:"raiseOnTransformError,omitempty"`
}

// Build compiles a TableConfig into an *etltable.Table bound to facade,
// resolving every column's transform shorthand and, if Filter is set,
// compiling the row filter.
func (c TableConfig) Build(facade *cursor.Facade, onInvalid func(lookup.ValidationWarning)) (*etltable.Table, error) {
	cols := make([]*column.Descriptor, 0, len(c.Columns))
	for _, cc := range c.Columns {
		d, err := cc.Build(facade, onInvalid)
		if err != nil {
			return nil, fmt.Errorf("config: table %q: %w", c.Name, err)
		}
		cols = append(cols, d)
	}

	var opts []etltable.Option
	if c.RaiseOnTransformError {
		opts = append(opts, etltable.WithTransformPolicy(column.RaiseOnError))
	}

	t := etltable.New(c.Name, facade, cols, opts...)
	if c.Filter != "" {
		if err := t.SetFilter(c.Filter); err != nil {
			return nil, fmt.Errorf("config: table %q: filter: %w", c.Name, err)
		}
	}
	return t, nil
}
