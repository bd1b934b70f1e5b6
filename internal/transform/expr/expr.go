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

// Package expr evaluates govaluate expressions against a record, for both
// the column-level "expr:<expression>" transform and a table-level row
// filter evaluated before a row's columns are resolved.
package expr

import (
	"context"
	"fmt"

	"github.com/Knetic/govaluate"

	"github.com/scottrbailey/dbtk/internal/record"
)

// Expr is a parsed expression, reusable across many records.
type Expr struct {
	src  string
	eval *govaluate.EvaluableExpression
}

// Parse compiles an expression once. The evaluation context is the
// record's columns by name (original names take precedence over
// normalized ones, mirroring record.Record.Value).
func Parse(expression string) (*Expr, error) {
	eval, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return nil, fmt.Errorf("expr: parse %q: %w", expression, err)
	}
	return &Expr{src: expression, eval: eval}, nil
}

// String returns the original expression text.
func (e *Expr) String() string { return e.src }

func parameters(rec record.Record) map[string]any {
	names := rec.Keys(false)
	params := make(map[string]any, len(names))
	for _, n := range names {
		v, _ := rec.Value(n)
		params[n] = v
	}
	for i, n := range rec.Keys(true) {
		if _, taken := params[n]; !taken {
			params[n] = rec.At(i)
		}
	}
	return params
}

// Eval evaluates the expression against rec and returns the raw result
// (govaluate supports numeric, string, and boolean results).
func (e *Expr) Eval(rec record.Record) (any, error) {
	result, err := e.eval.Evaluate(parameters(rec))
	if err != nil {
		return nil, fmt.Errorf("expr: evaluate %q: %w", e.src, err)
	}
	return result, nil
}

// EvalBool evaluates the expression and requires a boolean result, for
// use as a row filter.
func (e *Expr) EvalBool(rec record.Record) (bool, error) {
	result, err := e.Eval(rec)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expr: %q did not evaluate to a boolean (got %T)", e.src, result)
	}
	return b, nil
}

// Transform adapts Expr to column.TransformFunc's shape (value, rec) ->
// (any, error): the incoming value is ignored and the expression is
// evaluated fresh against the whole record, since expr:<expression> is
// meant to compute a column from other columns rather than reshape the
// column's own source value.
func (e *Expr) Transform(_ context.Context, _ any, rec record.Record) (any, error) {
	return e.Eval(rec)
}
