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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scottrbailey/dbtk/internal/config"
	"github.com/scottrbailey/dbtk/internal/dml"
)

// newExplainCommand prints the cached DML template a table would use for
// every operation, without executing anything -- connections are opened
// (a table's SQL is generated against its own name/columns only, never the
// driver) but no statement runs.
func newExplainCommand(root *Command) *cobra.Command {
	var jobFile, tableName string

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "print the DML a table would execute for each operation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return explainTable(cmd.Context(), root, jobFile, tableName)
		},
	}
	cmd.Flags().StringVarP(&jobFile, "job-file", "f", "", "path to a YAML job file")
	cmd.Flags().StringVarP(&tableName, "table", "t", "", "name of the table to explain")
	cmd.MarkFlagRequired("job-file")
	cmd.MarkFlagRequired("table")
	return cmd
}

func explainTable(ctx context.Context, root *Command, jobFile, tableName string) error {
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

	out := root.OutOrStdout()
	for op := dml.Insert; op <= dml.Merge; op++ {
		fmt.Fprintf(out, "-- %s\n%s;\n\n", op.String(), tbl.SQL(op))
	}
	return nil
}
