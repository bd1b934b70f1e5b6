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

// Package mssql registers the "mssql" cursor source kind, backed by
// microsoft/go-mssqldb over database/sql.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/goccy/go-yaml"
	"go.opentelemetry.io/otel/trace"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/otelspan"
	"github.com/scottrbailey/dbtk/internal/cursor/sqldriver"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
)

// Kind is the registered source kind string.
const Kind = "mssql"

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

// Config decodes the YAML block for one mssql source.
type Config struct {
	Name         string `yaml:"name" validate:"required"`
	Kind         string `yaml:"kind" validate:"required"`
	Host         string `yaml:"host" validate:"required"`
	Port         string `yaml:"port" validate:"required"`
	User         string `yaml:"user" validate:"required"`
	Password     string `yaml:"password" validate:"required"`
	Database     string `yaml:"database" validate:"required"`
	Encrypt      string `yaml:"encrypt"`
	MaxOpenConns int    `yaml:"maxOpenConns"`
}

// Kind implements cursor.Config.
func (c Config) Kind() string { return Kind }

// Open implements cursor.Config.
func (c Config) Open(ctx context.Context, tracer trace.Tracer) (cursor.Driver, error) {
	_, span := otelspan.InitConnection(ctx, tracer, Kind, c.Name)
	defer span.End()

	q := url.Values{}
	q.Add("database", c.Database)
	if c.Encrypt != "" {
		q.Add("encrypt", c.Encrypt)
	}
	dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%s?%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, q.Encode())

	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("mssql %q: open: %w", c.Name, err)
	}
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		span.RecordError(err)
		db.Close()
		return nil, fmt.Errorf("mssql %q: ping: %w", c.Name, err)
	}

	return sqldriver.New(db, paramstyle.NumberedAt, true), nil
}
