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
	"github.com/scottrbailey/dbtk/internal/lookup"
)

// ColumnConfig mirrors column.Descriptor's attributes for YAML authoring.
// Transform accepts a list so a column with one shorthand still writes
// naturally as a single-element list.
type ColumnConfig struct {
	Name          string   `yaml:"name" validate:"required"`
	Key           bool     `yaml:"key,omitempty"`
	Nullable      bool     `yaml:"nullable,omitempty"`
	NoUpdate      bool     `yaml:"noUpdate,omitempty"`
	SourceFields  []string `yaml:"sourceFields,omitempty"`
	WholeRecord   bool     `yaml:"wholeRecord,omitempty"`
	NullSentinels []string `yaml:"nullSentinels,omitempty"`
	Default       any      `yaml:"default,omitempty"`
	Transform     []string `yaml:"transform,omitempty"`
	DBExpr        string   `yaml:"dbExpr,omitempty"`
}

// Build compiles one ColumnConfig into a *column.Descriptor, parsing each
// configured transform shorthand against facade (needed only by
// lookup/validate transforms).
func (c ColumnConfig) Build(facade *cursor.Facade, onInvalid func(lookup.ValidationWarning)) (*column.Descriptor, error) {
	d := &column.Descriptor{
		Name:          c.Name,
		Key:           c.Key,
		Nullable:      c.Nullable,
		NoUpdate:      c.NoUpdate,
		SourceFields:  c.SourceFields,
		WholeRecord:   c.WholeRecord,
		NullSentinels: c.NullSentinels,
		Default:       c.Default,
		DBExpr:        c.DBExpr,
	}
	for _, spec := range c.Transform {
		fn, err := column.ParseTransform(spec, facade, onInvalid)
		if err != nil {
			return nil, fmt.Errorf("config: column %q: %w", c.Name, err)
		}
		d.Transforms = append(d.Transforms, fn)
	}
	return d, nil
}
