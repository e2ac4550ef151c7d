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
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/config"
	_ "github.com/GoogleCloudPlatform/db-nl-query/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/db-nl-query/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/db-nl-query/internal/database/sqlite"
	_ "github.com/GoogleCloudPlatform/db-nl-query/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/genai"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/logging"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/session"
)

var (
	cfgFile string

	v      = config.NewViper()
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "nl_query",
	Short: "Ask natural language questions about tabular files",
	Long: `nl_query loads the CSV/TSV files of a zip archive into a relational store and
answers natural language questions about their data or their structure, using Gemini
to write the SQL query or the metadata expression that answers each question.`,
	SilenceUsage:       true,
	PersistentPreRunE:  initFlagsAndConfig,
	PersistentPostRunE: syncLogger,
}

// initFlagsAndConfig resolves the configuration from defaults, config file,
// environment and flags, and builds the activity logger.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	l, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

func syncLogger(cmd *cobra.Command, args []string) error {
	// stderr cannot be synced on most terminals
	_ = logger.Sync()
	return nil
}

// openSession opens a session on the configured store. The Gemini generator is only
// created for commands that answer questions; validateKey also checks the API key
// up front.
func openSession(ctx context.Context, withGenerator, validateKey bool) (*session.Session, func(), error) {
	var gen genai.CodeGenerator
	closeGen := func() {}
	if withGenerator {
		g, err := genai.NewGemini(ctx, cfg.Gemini, logger)
		if err != nil {
			return nil, nil, err
		}
		if validateKey {
			if err := g.IsAPIKeyValid(ctx); err != nil {
				g.Close()
				return nil, nil, err
			}
		}
		gen = g
		closeGen = func() { g.Close() }
	}

	s, err := session.Open(ctx, cfg, gen, logger)
	if err != nil {
		closeGen()
		return nil, nil, fmt.Errorf("failed to open session: %w", err)
	}
	return s, func() {
		s.Close()
		closeGen()
	}, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", fmt.Sprintf("Config file (defaults to ./%s when present)", config.DefaultConfigFile))
	flags.String("workdir", "", "Working directory for the store, catalog snapshot, extracted files and activity log (default ./tmp)")

	// Database connection flags
	flags.String("dialect", "", fmt.Sprintf("Database dialect (%s), default sqlite", strings.Join(config.SupportedDialects, ", ")))
	flags.String("db-path", "", "SQLite database file (default <workdir>/db.sqlite)")
	flags.String("host", "", "Database host")
	flags.Int("port", 0, "Database port")
	flags.String("username", "", "Database username")
	flags.String("password", "", "Database password")
	flags.String("database", "", "Database name")
	flags.String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	flags.Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")

	// Generator flags
	flags.String("gemini-api-key", "", "Gemini API key (can also be set via GEMINI_API_KEY environment variable)")
	flags.String("model", "", "Gemini model name")

	flags.Bool("read-only", false, "Reject generated statements that are not read queries")
	flags.StringSlice("context-file", nil, "Domain knowledge file appended to data prompts (repeatable)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")

	bindings := map[string]string{
		"workdir":           "workdir",
		"database.dialect":  "dialect",
		"database.path":     "db-path",
		"database.host":     "host",
		"database.port":     "port",
		"database.user":     "username",
		"database.password": "password",
		"database.dbname":   "database",
		"database.cloudsql_instance_connection_name": "cloudsql-instance-connection-name",
		"database.use_private_ip":                    "cloudsql-use-private-ip",
		"gemini.api_key":                             "gemini-api-key",
		"gemini.model":                               "model",
		"executor.read_only":                         "read-only",
		"context_files":                              "context-file",
		"log.level":                                  "log-level",
	}
	for key, name := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}

	// Add subcommands
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(clearCmd)
}
