// Copyright © 2025, Oracle and/or its affiliates.

// Package oracle registers the "oracle" cursor source kind, backed by
// sijms/go-ora/v2 over database/sql.
package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	_ "github.com/sijms/go-ora/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/cursor/otelspan"
	"github.com/scottrbailey/dbtk/internal/cursor/sqldriver"
	"github.com/scottrbailey/dbtk/internal/paramstyle"
)

// Kind is the registered source kind string.
const Kind = "oracle"

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
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid oracle configuration: %w", err)
	}
	return c, nil
}

// Config decodes the YAML block for one oracle source. Exactly one of
// TnsAlias, ConnectionString, or Host+ServiceName must be set.
type Config struct {
	Name             string `yaml:"name" validate:"required"`
	Kind             string `yaml:"kind" validate:"required"`
	ConnectionString string `yaml:"connectionString,omitempty"`
	TnsAlias         string `yaml:"tnsAlias,omitempty"`
	Host             string `yaml:"host,omitempty"`
	Port             int    `yaml:"port,omitempty"`
	ServiceName      string `yaml:"serviceName,omitempty"`
	User             string `yaml:"user" validate:"required"`
	Password         string `yaml:"password" validate:"required"`
	TnsAdmin         string `yaml:"tnsAdmin,omitempty"`
}

func (c Config) validate() error {
	hasTnsAlias := strings.TrimSpace(c.TnsAlias) != ""
	hasConnStr := strings.TrimSpace(c.ConnectionString) != ""
	hasHostService := strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.ServiceName) != ""

	methods := 0
	for _, has := range []bool{hasTnsAlias, hasConnStr, hasHostService} {
		if has {
			methods++
		}
	}
	if methods == 0 {
		return fmt.Errorf("must provide one of: tnsAlias, connectionString, or both host and serviceName")
	}
	if methods > 1 {
		return fmt.Errorf("provide only one connection method: tnsAlias, connectionString, or host+serviceName")
	}
	return nil
}

// Kind implements cursor.Config.
func (c Config) Kind() string { return Kind }

// Open implements cursor.Config.
func (c Config) Open(ctx context.Context, tracer trace.Tracer) (cursor.Driver, error) {
	ctx, span := otelspan.InitConnection(ctx, tracer, Kind, c.Name)
	defer span.End()

	if c.TnsAdmin != "" {
		original := os.Getenv("TNS_ADMIN")
		os.Setenv("TNS_ADMIN", c.TnsAdmin)
		defer func() {
			if original != "" {
				os.Setenv("TNS_ADMIN", original)
			} else {
				os.Unsetenv("TNS_ADMIN")
			}
		}()
	}

	var serverString string
	switch {
	case c.TnsAlias != "":
		serverString = strings.TrimSpace(c.TnsAlias)
	case c.ConnectionString != "":
		serverString = strings.TrimSpace(c.ConnectionString)
	case c.Port > 0:
		serverString = fmt.Sprintf("%s:%d/%s", c.Host, c.Port, c.ServiceName)
	default:
		serverString = fmt.Sprintf("%s/%s", c.Host, c.ServiceName)
	}

	connStr := fmt.Sprintf("oracle://%s:%s@%s", c.User, c.Password, serverString)
	db, err := sql.Open("oracle", connStr)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("oracle %q: open: %w", c.Name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		span.RecordError(err)
		db.Close()
		return nil, fmt.Errorf("oracle %q: ping: %w", c.Name, err)
	}

	return sqldriver.New(db, paramstyle.Numbered, true), nil
}
