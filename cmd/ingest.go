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
	"os"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <archive.zip | directory>",
	Short: "Load the tabular files of an archive or directory into the store",
	Long: `Extracts the zip archive into the working directory (or walks the given directory),
loads every CSV/TSV file as a table and records its column metadata. A table that
already exists is replaced.`,
	Example: `./nl_query ingest ./dados_abertos.zip
./nl_query ingest --dialect postgres --host localhost --port 5432 --username user --password pass --database mydb ./exports`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	source := args[0]
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", source, err)
	}

	ctx := cmd.Context()
	s, closeSession, err := openSession(ctx, false, false)
	if err != nil {
		return err
	}
	defer closeSession()

	var report *ingest.Report
	if info.IsDir() {
		report, err = s.IngestDir(ctx, source)
	} else {
		report, err = s.IngestArchive(ctx, source)
	}
	if report != nil {
		fmt.Fprintln(cmd.OutOrStdout(), report.String())
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}
