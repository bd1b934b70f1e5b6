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

// Command dbtk drives data between files and database tables through a
// job file: run drives a job file's Surges to completion, explain prints
// the cached DML a table would use without executing any statement, and
// invoke pushes one record through a table's Value Resolver to show its
// readiness bitmap.
package main

import (
	"github.com/spf13/cobra"

	_ "github.com/scottrbailey/dbtk/internal/cursor/clickhouse"
	_ "github.com/scottrbailey/dbtk/internal/cursor/firebird"
	_ "github.com/scottrbailey/dbtk/internal/cursor/mssql"
	_ "github.com/scottrbailey/dbtk/internal/cursor/mysql"
	_ "github.com/scottrbailey/dbtk/internal/cursor/oracle"
	_ "github.com/scottrbailey/dbtk/internal/cursor/postgres"
	_ "github.com/scottrbailey/dbtk/internal/cursor/snowflake"
	_ "github.com/scottrbailey/dbtk/internal/cursor/sqlite"
	"github.com/scottrbailey/dbtk/internal/log"
)

// Command wraps a *cobra.Command the way the rest of the codebase wraps
// third-party types at its package boundaries: callers get the shared
// flag/logging setup of NewCommand without reaching into cobra directly.
type Command struct {
	*cobra.Command

	loggingFormat string
	logLevel      string

	logger log.Logger
}

// NewCommand builds the root dbtk command with its run/explain/invoke
// subcommands attached.
func NewCommand() *Command {
	c := &Command{}

	root := &cobra.Command{
		Use:           "dbtk",
		Short:         "dbtk drives data between files and database tables through a job file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := log.NewLogger(c.loggingFormat, c.logLevel, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c.logger = logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.loggingFormat, "logging-format", "standard", "log format, either 'standard' or 'json'")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", log.Info, "minimum log severity: DEBUG, INFO, WARN, or ERROR")

	c.Command = root
	c.AddCommand(newRunCommand(c))
	c.AddCommand(newExplainCommand(c))
	c.AddCommand(newInvokeCommand(c))
	return c
}

// Logger returns the Logger built from the command's logging flags; valid
// only once PersistentPreRunE has run (i.e. during or after Execute).
func (c *Command) Logger() log.Logger {
	return c.logger
}
