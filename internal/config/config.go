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
	"os"

	"github.com/goccy/go-yaml"
	"go.opentelemetry.io/otel/trace"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/etltable"
	"github.com/scottrbailey/dbtk/internal/lookup"
)

// raw is the file shape before sources are dispatched to their adapter
// packages: a "sources" entry's structure depends entirely on its "kind",
// which only a registered ConfigFactory knows how to decode.
type raw struct {
	Sources map[string]map[string]any `yaml:"sources"`
	Tables  map[string]TableConfig    `yaml:"tables"`
	Jobs    []JobConfig               `yaml:"jobs"`
}

// Config is a fully decoded job file: named sources ready to Open, named
// table definitions, and the jobs that drive them.
type Config struct {
	Sources map[string]cursor.Config
	Tables  map[string]TableConfig
	Jobs    []JobConfig
}

// Load reads and decodes path. Loading only validates and decodes --
// it does not open any connection; call OpenSources to do that.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var r raw
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	sources, err := decodeSources(ctx, r.Sources)
	if err != nil {
		return nil, err
	}
	for name, t := range r.Tables {
		if _, ok := sources[t.Source]; !ok {
			return nil, fmt.Errorf("config: table %q: unknown source %q", name, t.Source)
		}
	}
	for _, j := range r.Jobs {
		if _, ok := r.Tables[j.Table]; !ok {
			return nil, fmt.Errorf("config: job %q: unknown table %q", j.Name, j.Table)
		}
		if j.Query != nil {
			if _, ok := sources[j.Query.Source]; !ok {
				return nil, fmt.Errorf("config: job %q: unknown source %q", j.Name, j.Query.Source)
			}
		}
	}

	return &Config{Sources: sources, Tables: r.Tables, Jobs: r.Jobs}, nil
}

// OpenSources opens every decoded source's connection, returning a Driver
// per source name. Callers are responsible for closing each returned
// Driver (Close is part of cursor.Driver) once done.
func (c *Config) OpenSources(ctx context.Context, tracer trace.Tracer) (map[string]cursor.Driver, error) {
	drivers := make(map[string]cursor.Driver, len(c.Sources))
	for name, src := range c.Sources {
		d, err := src.Open(ctx, tracer)
		if err != nil {
			for opened, od := range drivers {
				od.Close()
				delete(drivers, opened)
			}
			return nil, fmt.Errorf("config: open source %q: %w", name, err)
		}
		drivers[name] = d
	}
	return drivers, nil
}

// BuildTables compiles every TableConfig into an *etltable.Table bound to
// its named source's opened Driver. onInvalid receives every lookup/
// validate transform's warning across every table.
func (c *Config) BuildTables(drivers map[string]cursor.Driver, onInvalid func(lookup.ValidationWarning)) (map[string]*etltable.Table, error) {
	tables := make(map[string]*etltable.Table, len(c.Tables))
	for name, tc := range c.Tables {
		driver, ok := drivers[tc.Source]
		if !ok {
			return nil, fmt.Errorf("config: table %q: source %q not opened", name, tc.Source)
		}
		facade := cursor.New(driver, false)
		t, err := tc.Build(facade, onInvalid)
		if err != nil {
			return nil, err
		}
		tables[name] = t
	}
	return tables, nil
}

// QueryFacade returns a Facade bound to source's opened Driver, for a
// JobConfig's Query.Source -- a fresh Facade per job keeps each job's
// in-flight result set independent of any other job or table reading the
// same connection.
func QueryFacade(drivers map[string]cursor.Driver, source string) (*cursor.Facade, error) {
	driver, ok := drivers[source]
	if !ok {
		return nil, fmt.Errorf("config: source %q not opened", source)
	}
	return cursor.New(driver, false), nil
}
