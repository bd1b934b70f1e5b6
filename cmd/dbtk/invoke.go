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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/scottrbailey/dbtk/internal/config"
	"github.com/scottrbailey/dbtk/internal/dml"
	"github.com/scottrbailey/dbtk/internal/record"
)

// newInvokeCommand pushes one record (a JSON object, from --record or
// stdin) through a table's Value Resolver and prints the readiness bitmap
// and resolved column values, without executing any DML.
func newInvokeCommand(root *Command) *cobra.Command {
	var jobFile, tableName, recordJSON string

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "dry-run one record through a table's column resolvers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return invokeTable(cmd.Context(), root, jobFile, tableName, recordJSON)
		},
	}
	cmd.Flags().StringVarP(&jobFile, "job-file", "f", "", "path to a YAML job file")
	cmd.Flags().StringVarP(&tableName, "table", "t", "", "name of the table to invoke")
	cmd.Flags().StringVarP(&recordJSON, "record", "r", "", "a JSON object to resolve; reads stdin if omitted")
	cmd.MarkFlagRequired("job-file")
	cmd.MarkFlagRequired("table")
	return cmd
}

func invokeTable(ctx context.Context, root *Command, jobFile, tableName, recordJSON string) error {
	cfg, err := config.Load(ctx, jobFile)
	if err != nil {
		return err
	}
	drivers, err := cfg.OpenSources(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		for _, d := range drivers {
			d.Close()
		}
	}()

	tables, err := cfg.BuildTables(drivers, nil)
	if err != nil {
		return err
	}
	tbl, ok := tables[tableName]
	if !ok {
		return fmt.Errorf("unknown table %q", tableName)
	}

	raw := []byte(recordJSON)
	if recordJSON == "" {
		raw, err = io.ReadAll(root.InOrStdin())
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("parse record: %w", err)
	}

	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Strings(names)
	rec := record.NewFromMap(names, fields)

	if err := tbl.SetValues(ctx, rec); err != nil {
		return err
	}

	out := root.OutOrStdout()
	for _, c := range tbl.Columns() {
		fmt.Fprintf(out, "%-20s %v\n", c.Name, tbl.Get(c.Name))
	}
	fmt.Fprintln(out)
	for op := dml.Insert; op <= dml.Merge; op++ {
		status := "ready"
		if !tbl.IsReady(op) {
			status = fmt.Sprintf("missing %v", tbl.ReqsMissing(op))
		}
		fmt.Fprintf(out, "%-8s %s\n", op.String(), status)
	}
	return nil
}
