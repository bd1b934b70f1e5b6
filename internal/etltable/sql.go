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

package etltable

import (
	"strings"

	"github.com/scottrbailey/dbtk/internal/column"
	"github.com/scottrbailey/dbtk/internal/dml"
)

// expr renders the SQL expression a column contributes for op: a plain
// parameter placeholder, a db_expr literal, or a db_expr with "#" replaced
// by the column's placeholder.
func expr(c *column.Descriptor) string {
	if c.DBExpr == "" {
		return ":" + c.Name
	}
	if strings.Contains(c.DBExpr, "#") {
		return strings.ReplaceAll(c.DBExpr, "#", ":"+c.Name)
	}
	return c.DBExpr
}

func (t *Table) whereByKeys() string {
	keys := t.keyColumns()
	conds := make([]string, len(keys))
	for i, c := range keys {
		conds[i] = c.Name + " = :" + c.Name
	}
	return strings.Join(conds, " and ")
}

func (t *Table) insertSQL() string {
	var cols, exprs []string
	for _, c := range t.columns {
		if !c.ContributesTo(dml.Insert) {
			continue
		}
		cols = append(cols, c.Name)
		exprs = append(exprs, expr(c))
	}
	return "insert into " + t.Name + " (" + strings.Join(cols, ", ") + ") values (" + strings.Join(exprs, ", ") + ")"
}

func (t *Table) updateSQL() string {
	var sets []string
	for _, c := range t.columns {
		if !c.ContributesTo(dml.Update) {
			continue
		}
		sets = append(sets, c.Name+" = "+expr(c))
	}
	return "update " + t.Name + " set " + strings.Join(sets, ", ") + " where " + t.whereByKeys()
}

func (t *Table) deleteSQL() string {
	return "delete from " + t.Name + " where " + t.whereByKeys()
}

func (t *Table) selectSQL() string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return "select " + strings.Join(names, ", ") + " from " + t.Name + " where " + t.whereByKeys()
}

// mergeSQL generates an ANSI-dialect MERGE statement (PostgreSQL 15+,
// SQL Server, Oracle, Snowflake all accept this shape). The template is
// generated the same way for every driver; Surge (C8) uses it only for
// drivers that report native MERGE support and routes the others through
// its temp-table fallback instead.
func (t *Table) mergeSQL() string {
	keys := t.keyColumns()
	var sourceCols, onConds, updateSets, insertCols, insertVals []string
	for _, c := range t.columns {
		sourceCols = append(sourceCols, expr(c)+" as "+c.Name)
	}
	for _, c := range keys {
		onConds = append(onConds, "target."+c.Name+" = source."+c.Name)
	}
	for _, c := range t.columns {
		if !c.ContributesTo(dml.Update) {
			continue
		}
		updateSets = append(updateSets, c.Name+" = source."+c.Name)
	}
	for _, c := range t.columns {
		if !c.ContributesTo(dml.Insert) {
			continue
		}
		insertCols = append(insertCols, c.Name)
		insertVals = append(insertVals, "source."+c.Name)
	}

	var b strings.Builder
	b.WriteString("merge into ")
	b.WriteString(t.Name)
	b.WriteString(" as target using (select ")
	b.WriteString(strings.Join(sourceCols, ", "))
	b.WriteString(") as source on (")
	b.WriteString(strings.Join(onConds, " and "))
	b.WriteString(")")
	if len(updateSets) > 0 {
		b.WriteString(" when matched then update set ")
		b.WriteString(strings.Join(updateSets, ", "))
	}
	b.WriteString(" when not matched then insert (")
	b.WriteString(strings.Join(insertCols, ", "))
	b.WriteString(") values (")
	b.WriteString(strings.Join(insertVals, ", "))
	b.WriteString(")")
	return b.String()
}

// CreateTempSQL builds the session-scoped staging table Surge's temp-table
// merge fallback creates once per run, via CREATE ... AS SELECT so the
// staging table mirrors the target's column types without this package
// needing to track them itself.
func (t *Table) CreateTempSQL(tmpName string) string {
	return "create temporary table " + tmpName + " as select * from " + t.Name + " where 1 = 0"
}

// TruncateTempSQL empties the staging table between batches.
func (t *Table) TruncateTempSQL(tmpName string) string {
	return "truncate table " + tmpName
}

// DropTempSQL drops the staging table at end of run.
func (t *Table) DropTempSQL(tmpName string) string {
	return "drop table " + tmpName
}

// TempInsertSQL stages a batch's raw resolved values into the temp table:
// plain placeholders only, since db_expr transformations are applied once,
// during the final merge from staging into the target.
func (t *Table) TempInsertSQL(tmpName string) string {
	var cols, params []string
	for _, c := range t.columns {
		if !c.ContributesTo(dml.Insert) {
			continue
		}
		cols = append(cols, c.Name)
		params = append(params, ":"+c.Name)
	}
	return "insert into " + tmpName + " (" + strings.Join(cols, ", ") + ") values (" + strings.Join(params, ", ") + ")"
}

// sourceExpr mirrors expr() but renders a column's db_expr against the
// staging table's column instead of a bound parameter, for use inside
// TempMergeSQL.
func sourceExpr(c *column.Descriptor) string {
	if c.DBExpr == "" {
		return "source." + c.Name
	}
	if strings.Contains(c.DBExpr, "#") {
		return strings.ReplaceAll(c.DBExpr, "#", "source."+c.Name)
	}
	return c.DBExpr
}

// TempMergeSQL merges the staging table into the target, applying each
// column's db_expr against the staged value, for drivers whose dialect
// lacks a native MERGE statement.
func (t *Table) TempMergeSQL(tmpName string) string {
	keys := t.keyColumns()
	var onConds, updateSets, insertCols, insertVals []string
	for _, c := range keys {
		onConds = append(onConds, "target."+c.Name+" = source."+c.Name)
	}
	for _, c := range t.columns {
		if !c.ContributesTo(dml.Update) {
			continue
		}
		updateSets = append(updateSets, c.Name+" = "+sourceExpr(c))
	}
	for _, c := range t.columns {
		if !c.ContributesTo(dml.Insert) {
			continue
		}
		insertCols = append(insertCols, c.Name)
		insertVals = append(insertVals, sourceExpr(c))
	}

	var b strings.Builder
	b.WriteString("merge into ")
	b.WriteString(t.Name)
	b.WriteString(" as target using ")
	b.WriteString(tmpName)
	b.WriteString(" as source on (")
	b.WriteString(strings.Join(onConds, " and "))
	b.WriteString(")")
	if len(updateSets) > 0 {
		b.WriteString(" when matched then update set ")
		b.WriteString(strings.Join(updateSets, ", "))
	}
	b.WriteString(" when not matched then insert (")
	b.WriteString(strings.Join(insertCols, ", "))
	b.WriteString(") values (")
	b.WriteString(strings.Join(insertVals, ", "))
	b.WriteString(")")
	return b.String()
}
