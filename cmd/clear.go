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

	"github.com/GoogleCloudPlatform/db-nl-query/internal/utils"
)

var assumeYes bool

var clearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Drop every loaded table and forget its metadata",
	Long:    `Drops every table recorded in the catalog from the store, empties the catalog and removes the extracted files.`,
	Example: `./nl_query clear --yes`,
	Args:    cobra.NoArgs,
	RunE:    runClear,
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, closeSession, err := openSession(ctx, false, false)
	if err != nil {
		return err
	}
	defer closeSession()

	tables := s.Tables()
	if len(tables) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tables loaded, nothing to clear.")
		return nil
	}
	desc := fmt.Sprintf("drop %d table(s) from the %s store", len(tables), s.DialectName())
	if !assumeYes && !utils.ConfirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), desc) {
		fmt.Fprintln(cmd.OutOrStdout(), "Clear cancelled.")
		return nil
	}
	if err := s.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Environment cleared, %d table(s) dropped.\n", len(tables))
	return nil
}

func init() {
	clearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}
