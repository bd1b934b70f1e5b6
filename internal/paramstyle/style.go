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

// Package paramstyle rewrites a canonical, named-parameter SQL query into a
// driver's native placeholder style and produces a binder that reshapes a
// name->value payload into whatever parameter shape that style expects.
//
// Canonical source queries are always written in one of two styles: "named"
// (:name) or "named-percent" (%(name)s). Every other style in the
// enumeration is a translation target only.
package paramstyle

// Style identifies a parameter placeholder dialect. The set is closed: a new
// driver is supported by adding a case to the generator and binder below,
// never by inventing ad-hoc string formats at call sites.
type Style int

const (
	// Named is the canonical ":name" form, also spoken natively by some
	// drivers (Oracle's godror, for example).
	Named Style = iota
	// NamedPercent is the canonical "%(name)s" form (psycopg2-style).
	NamedPercent
	// QuestionPositional uses "?" for every occurrence (database/sql
	// drivers for MySQL, SQLite, ClickHouse, Snowflake, Firebird).
	QuestionPositional
	// PercentPositional uses "%s" for every occurrence.
	PercentPositional
	// Numbered uses ":1", ":2", ... in first-occurrence order (Oracle).
	Numbered
	// DollarPositional uses "$1", "$2", ... in first-occurrence order
	// (PostgreSQL / pgx).
	DollarPositional
	// NumberedAt uses "@p1", "@p2", ... in first-occurrence order
	// (SQL Server / go-mssqldb).
	NumberedAt
	// NamedAt uses "@name" (ClickHouse's native bind syntax).
	NamedAt
)

func (s Style) String() string {
	switch s {
	case Named:
		return "named"
	case NamedPercent:
		return "named-percent"
	case QuestionPositional:
		return "positional-question"
	case PercentPositional:
		return "positional-percent"
	case Numbered:
		return "numbered"
	case DollarPositional:
		return "positional-dollar"
	case NumberedAt:
		return "numbered-at"
	case NamedAt:
		return "named-at"
	default:
		return "unknown"
	}
}

// IsPositional reports whether a style binds its parameter payload as an
// ordered slice rather than a name->value map.
func (s Style) IsPositional() bool {
	switch s {
	case QuestionPositional, PercentPositional, Numbered, DollarPositional, NumberedAt:
		return true
	default:
		return false
	}
}
