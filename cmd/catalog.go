/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/catalog"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/executor"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/format"
)

var checkConsistency bool

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	Short:   "Print the column metadata of every loaded table",
	Long:    `Prints the catalog (table, column, logical type and source file of every loaded column) as a markdown table.`,
	Example: `./nl_query catalog --check`,
	Args:    cobra.NoArgs,
	RunE:    runCatalog,
}

func runCatalog(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, closeSession, err := openSession(ctx, false, false)
	if err != nil {
		return err
	}
	defer closeSession()

	fmt.Fprintln(cmd.OutOrStdout(), catalogMarkdown(s.Metadata()))
	if checkConsistency {
		if err := s.CheckConsistency(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Catalog and store are consistent.")
	}
	return nil
}

func catalogMarkdown(rows []catalog.ColumnMetadata) string {
	if len(rows) == 0 {
		return "No tables loaded."
	}
	res := &executor.ExecutionResult{Kind: executor.KindTabular, Columns: catalog.Fields}
	for _, r := range rows {
		values := r.Values()
		cells := make([]any, len(values))
		for i, v := range values {
			cells[i] = v
		}
		res.Rows = append(res.Rows, cells)
	}
	return format.Format(res)
}

func init() {
	catalogCmd.Flags().BoolVar(&checkConsistency, "check", false, "Also verify that the catalog and the store hold the same tables")
}
