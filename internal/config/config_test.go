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
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Dialect)
	assert.Equal(t, filepath.Join("tmp", "db.sqlite"), cfg.Database.Path)
	assert.Zero(t, cfg.Database.Port)
	assert.Equal(t, filepath.Join("tmp", "agent_activity.log"), cfg.Log.File)
	assert.Equal(t, []string{".csv", ".tsv"}, cfg.Ingest.Extensions)
	assert.Equal(t, "auto", cfg.Ingest.Delimiter)
	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	assert.Equal(t, filepath.Join("tmp", "catalog.yaml"), cfg.CatalogPath())
}

func TestLoadLeavesPortToDialect(t *testing.T) {
	for _, dialect := range []string{"postgres", "mysql", "sqlserver"} {
		t.Run(dialect, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("NLQ_DATABASE_DIALECT", dialect)

			cfg, err := Load(NewViper(), "")
			require.NoError(t, err)
			assert.Equal(t, dialect, cfg.Database.Dialect)
			assert.Zero(t, cfg.Database.Port)
		})
	}

	t.Chdir(t.TempDir())
	t.Setenv("NLQ_DATABASE_PORT", "3307")
	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, 3307, cfg.Database.Port)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.yaml")
	content := `
workdir: ` + dir + `
database:
  dialect: postgres
  dbname: notas
ingest:
  extensions: [csv, ".TXT"]
  delimiter: ";"
executor:
  read_only: true
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	t.Setenv("NLQ_DATABASE_HOST", "db.internal")

	cfg, err := Load(NewViper(), file)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Dialect)
	assert.Equal(t, "notas", cfg.Database.DBName)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Zero(t, cfg.Database.Port, "an unset port is left to the dialect")
	assert.Equal(t, []string{".csv", ".txt"}, cfg.Ingest.Extensions)
	assert.Equal(t, ";", cfg.Ingest.Delimiter)
	assert.True(t, cfg.Executor.ReadOnly)
	assert.Equal(t, filepath.Join(dir, "extracted"), cfg.ExtractDir())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Valid", func(*Config) {}, ""},
		{"Unknown dialect", func(c *Config) { c.Database.Dialect = "oracle" }, "unsupported dialect: oracle"},
		{"Long delimiter", func(c *Config) { c.Ingest.Delimiter = ";;" }, "invalid ingest delimiter"},
		{"No extensions", func(c *Config) { c.Ingest.Extensions = nil }, "at least one ingest extension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Database: DatabaseConfig{Dialect: "sqlite"},
				Ingest:   IngestConfig{Extensions: []string{".csv"}, Delimiter: "auto"},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
