// Copyright 2025 Google LLC
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

// Package clickhouse registers the "clickhouse" cursor source kind, backed
// by ClickHouse/clickhouse-go/v2 over database/sql.
package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/goccy/go-yaml"
	"go.opentelemetry.io/otel/trace"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/otelspan"
	"github.com/scottrbailey/dbtk/internal/cursor/sqldriver"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
)

// Kind is the registered source kind string.
const Kind = "clickhouse"

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

// Config decodes the YAML block for one clickhouse source.
type Config struct {
	Name     string `yaml:"name" validate:"required"`
	Kind     string `yaml:"kind" validate:"required"`
	Host     string `yaml:"host" validate:"required"`
	Port     string `yaml:"port" validate:"required"`
	Database string `yaml:"database" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Protocol string `yaml:"protocol"`
	Secure   bool   `yaml:"secure"`
}

// Kind implements cursor.Config.
func (c Config) Kind() string { return Kind }

func validateProtocol(protocol string) error {
	validProtocols := map[string]bool{"http": true, "https": true}
	if protocol != "" && !validProtocols[protocol] {
		return fmt.Errorf("invalid protocol: %s, must be one of: http, https", protocol)
	}
	return nil
}

// Open implements cursor.Config.
func (c Config) Open(ctx context.Context, tracer trace.Tracer) (cursor.Driver, error) {
	ctx, span := otelspan.InitConnection(ctx, tracer, Kind, c.Name)
	defer span.End()

	protocol := c.Protocol
	if protocol == "" {
		protocol = "https"
	}
	if err := validateProtocol(protocol); err != nil {
		span.RecordError(err)
		return nil, err
	}

	scheme := protocol
	if protocol == "http" && c.Secure {
		scheme = "https"
	}
	dsn := fmt.Sprintf("%s://%s:%s@%s:%s/%s", scheme,
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Database)
	if scheme == "https" {
		dsn += "?secure=true&skip_verify=false"
	}

	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("clickhouse %q: open: %w", c.Name, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		span.RecordError(err)
		db.Close()
		return nil, fmt.Errorf("clickhouse %q: ping: %w", c.Name, err)
	}

	return sqldriver.New(db, paramstyle.NamedAt, false), nil
}
