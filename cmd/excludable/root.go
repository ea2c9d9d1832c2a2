/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tomoncle/excludable/database"
	"github.com/tomoncle/excludable/exclusion"
	"github.com/tomoncle/excludable/repository"
	"github.com/tomoncle/excludable/utils"
)

const defaultSQLiteName = "excludable"

var (
	cfgFile   string
	verbosity int

	resolver *exclusion.Resolver
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "excludable",
		Short: "Manage soft, reversible exclusions of records",
		Long: `excludable records which subjects are excluded from default reads without
touching the subjects themselves. A subject is addressed by its type tag and
identifier, and every type can be excluded as a whole with exceptions.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			utils.ConfigureLogLevel(levelFor(verbosity))
			return openResolver(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return database.CloseDB()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (default: sqlite file ./excludable.db)")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG)")

	root.AddCommand(
		newExcludeCommand(),
		newIncludeCommand(),
		newStatusCommand(),
		newExcludeAllCommand(),
		newIncludeAllCommand(),
		newListCommand(),
		newMigrateCommand(),
	)
	return root
}

func levelFor(verbosity int) string {
	switch {
	case verbosity >= 2:
		return "debug"
	case verbosity == 1:
		return "info"
	default:
		return "warn"
	}
}

func loadConfig() (*database.Config, error) {
	if cfgFile == "" {
		cfg := database.DefaultConfig()
		cfg.ConnectionConfig.Type = "sqlite"
		cfg.ConnectionConfig.DBName = defaultSQLiteName
		return cfg, nil
	}
	return database.LoadConfig(cfgFile)
}

func openResolver(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	migrate := cfg.DataMigrateConfig.EnableMigrateOnStartup || cmd.Name() == "migrate"
	db, err := database.InitDatabaseWithOptions(cmd.Context(), cfg, migrate)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	resolver = exclusion.NewResolver(repository.NewExclusionRepository(db))
	return nil
}
