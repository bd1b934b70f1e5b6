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

// Package postgres registers the "postgres" cursor source kind, backed by
// jackc/pgx/v5's connection pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/otelspan"
	"github.com/scottrbailey/dbtk/internal/cursor/pgxdriver"
)

// Kind is the registered source kind string.
const Kind = "postgres"

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

// Config decodes the YAML block for one postgres source.
type Config struct {
	Name     string `yaml:"name" validate:"required"`
	Kind     string `yaml:"kind" validate:"required"`
	Host     string `yaml:"host" validate:"required"`
	Port     string `yaml:"port" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password" validate:"required"`
	Database string `yaml:"database" validate:"required"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"maxConns"`
}

// Kind implements cursor.Config.
func (c Config) Kind() string { return Kind }

// Open implements cursor.Config.
func (c Config) Open(ctx context.Context, tracer trace.Tracer) (cursor.Driver, error) {
	ctx, span := otelspan.InitConnection(ctx, tracer, Kind, c.Name)
	defer span.End()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s", c.User, c.Password, c.Host, c.Port, c.Database)
	if c.SSLMode != "" {
		dsn = fmt.Sprintf("%s?sslmode=%s", dsn, c.SSLMode)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("postgres %q: parse dsn: %w", c.Name, err)
	}
	if c.MaxConns > 0 {
		poolCfg.MaxConns = c.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("postgres %q: open pool: %w", c.Name, err)
	}
	if err := pool.Ping(ctx); err != nil {
		span.RecordError(err)
		pool.Close()
		return nil, fmt.Errorf("postgres %q: ping: %w", c.Name, err)
	}

	return pgxdriver.New(pool), nil
}
