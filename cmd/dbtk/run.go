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
	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/etltable"
	"github.com/scottrbailey/dbtk/internal/lookup"
)

func newRunCommand(root *Command) *cobra.Command {
	var jobFile string
	var only string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run every job in a job file (or one, with --job) to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobs(cmd.Context(), root, jobFile, only)
		},
	}
	cmd.Flags().StringVarP(&jobFile, "job-file", "f", "", "path to a YAML job file")
	cmd.Flags().StringVar(&only, "job", "", "run only the named job instead of every job in the file")
	cmd.MarkFlagRequired("job-file")
	return cmd
}

func runJobs(ctx context.Context, root *Command, jobFile, only string) error {
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

	logger := root.Logger()
	onInvalid := func(w lookup.ValidationWarning) {
		logger.WarnContext(ctx, "lookup validation failed", "table", w.Table, "column", w.Column, "value", w.Value)
	}

	tables, err := cfg.BuildTables(drivers, onInvalid)
	if err != nil {
		return err
	}

	for _, jc := range cfg.Jobs {
		if only != "" && jc.Name != only {
			continue
		}
		if err := runJob(ctx, root, drivers, tables, jc); err != nil {
			return fmt.Errorf("job %q: %w", jc.Name, err)
		}
	}
	return nil
}

func runJob(ctx context.Context, root *Command, drivers map[string]cursor.Driver, tables map[string]*etltable.Table, jc config.JobConfig) error {
	table, ok := tables[jc.Table]
	if !ok {
		return fmt.Errorf("unknown table %q", jc.Table)
	}

	var queryFacade *cursor.Facade
	if jc.Query != nil {
		f, err := config.QueryFacade(drivers, jc.Query.Source)
		if err != nil {
			return err
		}
		queryFacade = f
	}

	logger := root.Logger()
	s, source, op, err := jc.Build(ctx, table, queryFacade)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting job", "job", jc.Name, "table", jc.Table, "op", op.String())
	if err := config.Run(ctx, s, source, op); err != nil {
		return err
	}

	counts := table.Counts
	logger.InfoContext(ctx, "job complete", "job", jc.Name,
		"insert", counts.Insert, "update", counts.Update, "delete", counts.Delete,
		"merge", counts.Merge, "select", counts.Select, "incomplete", counts.Incomplete,
		"filtered", counts.Filtered, "error", counts.Error)
	return nil
}
