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

// Package config decodes the YAML job/table/source definitions that drive
// a dbtk run, in the same registry-and-validate-tag shape the teacher uses
// for its own source/tool configs.
package config

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"github.com/scottrbailey/dbtk/internal/cursor"
)

var validate = validator.New()

// decodeSources reads the top-level "sources" map, dispatching each entry
// to the internal/cursor adapter package registered for its "kind" (a
// blank import of internal/cursor/<kind> is required for that kind to be
// available). Every decoded Config is validated against its `validate`
// struct tags before being returned.
func decodeSources(ctx context.Context, raw map[string]map[string]any) (map[string]cursor.Config, error) {
	out := make(map[string]cursor.Config, len(raw))
	for name, fields := range raw {
		kind, _ := fields["kind"].(string)
		if kind == "" {
			return nil, fmt.Errorf("config: source %q: missing kind", name)
		}
		fields["name"] = name

		nodeBytes, err := yaml.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("config: source %q: re-marshal: %w", name, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(nodeBytes))
		cfg, err := cursor.Decode(ctx, kind, name, dec)
		if err != nil {
			return nil, fmt.Errorf("config: source %q: %w", name, err)
		}
		if err := validate.Struct(cfg); err != nil {
			return nil, fmt.Errorf("config: source %q: %w", name, err)
		}
		out[name] = cfg
	}
	return out, nil
}
