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
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tomoncle/excludable/database"
	"github.com/tomoncle/excludable/exclusion"
)

var (
	excludedLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	includedLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
)

func newExcludeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "exclude TYPE ID",
		Short:   "Exclude a subject",
		Example: "  excludable exclude article 42",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := exclusion.NewRef(args[0], args[1])
			ok, err := resolver.Exclude(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("exclusion of %s was vetoed", ref)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ref, excludedLabel("excluded"))
			return nil
		},
	}
}

func newIncludeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "include TYPE ID",
		Short:   "Remove the explicit exclusion of a subject",
		Example: "  excludable include article 42",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := exclusion.NewRef(args[0], args[1])
			if _, err := resolver.Include(cmd.Context(), ref); err != nil {
				return err
			}
			return printStatus(cmd, ref)
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status TYPE ID",
		Short: "Show the effective exclusion state of a subject",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(cmd, exclusion.NewRef(args[0], args[1]))
		},
	}
}

func newExcludeAllCommand() *cobra.Command {
	var except []string
	cmd := &cobra.Command{
		Use:     "exclude-all TYPE",
		Short:   "Exclude every subject of a type, with optional exceptions",
		Example: "  excludable exclude-all article --except 1,2",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exceptions := make([]any, len(except))
			for i, id := range except {
				exceptions[i] = id
			}
			if err := resolver.ExcludeAll(cmd.Context(), args[0], exceptions...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:* %s (%d exceptions)\n", args[0], excludedLabel("excluded"), len(except))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&except, "except", "e", nil, "Identifiers that stay included")
	return cmd
}

func newIncludeAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "include-all TYPE",
		Short: "Clear every exclusion of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolver.IncludeAll(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:* %s\n", args[0], includedLabel("included"))
			return nil
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list TYPE",
		Short: "List the exclusion records of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := resolver.Exclusions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the exclusion table and its indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status := database.GetHealthStatus(cmd.Context())
			if !status.Connected {
				return fmt.Errorf("database unavailable: %s", status.LastError)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, ref exclusion.Ref) error {
	excluded, err := resolver.IsExcluded(cmd.Context(), ref)
	if err != nil {
		return err
	}
	label := includedLabel("included")
	if excluded {
		label = excludedLabel("excluded")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ref, label)
	return nil
}

func writeRecords(w io.Writer, records []*exclusion.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no exclusions")
		return
	}
	for _, rec := range records {
		label := includedLabel(rec.Kind.String())
		if rec.Kind == exclusion.KindExclude {
			label = excludedLabel(rec.Kind.String())
		}
		fmt.Fprintf(w, "%-6d %-8s %s:%s\t%s\n",
			rec.ID, label, rec.SubjectType, rec.SubjectID, rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}
