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
	"fmt"
	"sync"

	"github.com/goccy/go-yaml"
	"go.opentelemetry.io/otel/trace"
)

// Config decodes one source's YAML block into a Driver factory. Concrete
// adapter packages (internal/cursor/postgres, mysql, ...) implement this
// and call Register from an init func, the same pluggable-kind shape used
// throughout this codebase's configuration layer.
type Config interface {
	// Kind returns the registered source kind string, e.g. "postgres".
	Kind() string
	// Open establishes the native connection (or pool) and returns a
	// Driver wrapping it.
	Open(ctx context.Context, tracer trace.Tracer) (Driver, error)
}

// ConfigFactory decodes a named source's YAML node into a Config. name is
// the job-local source name (for logging/tracing), not the driver kind.
type ConfigFactory func(ctx context.Context, name string, decoder *yaml.Decoder) (Config, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ConfigFactory{}
)

// Register binds a driver kind string to its config factory. It returns
// false (and registers nothing) if kind is already registered; adapter
// packages panic on a false return from their init func, since a duplicate
// registration means two packages were compiled in for the same kind.
func Register(kind string, factory ConfigFactory) bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[kind]; exists {
		return false
	}
	registry[kind] = factory
	return true
}

// Lookup returns the ConfigFactory registered for kind, if any.
func Lookup(kind string) (ConfigFactory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[kind]
	return f, ok
}

// Decode finds the factory registered for kind and runs it. It returns an
// error naming the kind if no adapter package registered it — the
// caller's build likely needs a blank import of internal/cursor/<kind>.
func Decode(ctx context.Context, kind, name string, decoder *yaml.Decoder) (Config, error) {
	factory, ok := Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("cursor: unregistered source kind %q (missing driver import?)", kind)
	}
	return factory(ctx, name, decoder)
}
