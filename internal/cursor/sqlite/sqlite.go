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

// Package sqlite registers the "sqlite" cursor source kind, backed by the
// pure-Go modernc.org/sqlite driver over database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-yaml"
	_ "modernc.org/sqlite"
	"go.opentelemetry.io/otel/trace"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/otelspan"
	"github.com/scottrbailey/dbtk/internal/cursor/sqldriver"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
)

// Kind is the registered source kind string.
const Kind = "sqlite"

func init() {
	if !cursor.Register(Kind, newConfig) {
		panic(fmt.Sprintf("cursor: source kind %q already registered", Kind))
	}
}

func newConfig(ctx context.Context, name string, decoder *yaml.Decoder) (cursor.Config, error) {
	c := Config{Name: name}
	if err := decoder.DecodeContext(ctx, &c); err != nil {
		return nil, err
	}
	return c, nil
}

// Config decodes the YAML block for one sqlite source. Path may be a file
// path or ":memory:".
type Config struct {
	Name string `yaml:"name" validate:"required"`
	Kind string `yaml:"kind" validate:"required"`
	Path string `yaml:"path" validate:"required"`
}

// Kind implements cursor.Config.
func (c Config) Kind() string { return Kind }

// Open implements cursor.Config.
func (c Config) Open(ctx context.Context, tracer trace.Tracer) (cursor.Driver, error) {
	_, span := otelspan.InitConnection(ctx, tracer, Kind, c.Name)
	defer span.End()

	db, err := sql.Open("sqlite", c.Path)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("sqlite %q: open: %w", c.Name, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers per connection
	if err := db.PingContext(ctx); err != nil {
		span.RecordError(err)
		db.Close()
		return nil, fmt.Errorf("sqlite %q: ping: %w", c.Name, err)
	}

	return sqldriver.New(db, paramstyle.QuestionPositional, false), nil
}
