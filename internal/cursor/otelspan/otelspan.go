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

// Package otelspan wraps connection establishment in a span, the same
// shape every source adapter package uses around its pool/dial call.
package otelspan

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// InitConnection starts a span named "cursor.connect" tagged with the
// driver kind and source name. Callers defer span.End() and, on error,
// should call span.RecordError before returning.
func InitConnection(ctx context.Context, tracer trace.Tracer, kind, name string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, "cursor.connect",
		trace.WithAttributes(
			attribute.String("cursor.kind", kind),
			attribute.String("cursor.name", name),
		),
	)
}
