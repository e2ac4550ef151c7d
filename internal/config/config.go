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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. NLQ_DATABASE_DIALECT.
const EnvPrefix = "NLQ"

// DefaultConfigFile is looked up in the working directory when no --config is given.
const DefaultConfigFile = "nl_query.yaml"

// SupportedDialects lists the relational stores a session can ingest into.
var SupportedDialects = []string{"sqlite", "postgres", "cloudsqlpostgres", "mysql", "cloudsqlmysql", "sqlserver", "cloudsqlsqlserver"}

// Config holds all configuration for the application
type Config struct {
	Workdir      string         `mapstructure:"workdir"`
	Database     DatabaseConfig `mapstructure:"database"`
	Gemini       GeminiConfig   `mapstructure:"gemini"`
	Ingest       IngestConfig   `mapstructure:"ingest"`
	Executor     ExecutorConfig `mapstructure:"executor"`
	Log          LogConfig      `mapstructure:"log"`
	ContextFiles []string       `mapstructure:"context_files"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string `mapstructure:"dialect"`
	Path                           string `mapstructure:"path"`
	Host                           string `mapstructure:"host"`
	Port                           int    `mapstructure:"port"`
	User                           string `mapstructure:"user"`
	Password                       string `mapstructure:"password"`
	DBName                         string `mapstructure:"dbname"`
	SSLMode                        string `mapstructure:"sslmode"`
	CloudSQLInstanceConnectionName string `mapstructure:"cloudsql_instance_connection_name"`
	UsePrivateIP                   bool   `mapstructure:"use_private_ip"`
}

// GeminiConfig configures the code generator.
type GeminiConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	Model           string  `mapstructure:"model"`
	Temperature     float32 `mapstructure:"temperature"`
	MaxOutputTokens int32   `mapstructure:"max_output_tokens"`
}

// IngestConfig controls which files are loaded and how they are split.
type IngestConfig struct {
	Extensions []string `mapstructure:"extensions"`
	// Delimiter is "auto" or a single character.
	Delimiter string `mapstructure:"delimiter"`
}

// ExecutorConfig controls statement execution.
type ExecutorConfig struct {
	// ReadOnly rejects generated statements that are not read queries.
	ReadOnly bool `mapstructure:"read_only"`
}

// LogConfig configures the activity logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
}

// NewViper returns a viper instance with defaults and environment bindings applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("workdir", "./tmp")
	v.SetDefault("database.dialect", "sqlite")
	v.SetDefault("database.path", "")
	v.SetDefault("database.host", "localhost")
	// 0 lets each dialect pick its standard port.
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.cloudsql_instance_connection_name", "")
	v.SetDefault("database.use_private_ip", false)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash-latest")
	v.SetDefault("gemini.temperature", 0.0)
	v.SetDefault("gemini.max_output_tokens", 1024)
	v.SetDefault("ingest.extensions", []string{".csv", ".tsv"})
	v.SetDefault("ingest.delimiter", "auto")
	v.SetDefault("executor.read_only", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.development", false)
	v.SetDefault("context_files", []string{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v and decodes the result. An empty file
// falls back to DefaultConfigFile when it exists.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			file = DefaultConfigFile
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDerivedDefaults() {
	if c.Workdir == "" {
		c.Workdir = "./tmp"
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.Workdir, "db.sqlite")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(c.Workdir, "agent_activity.log")
	}
	for i, ext := range c.Ingest.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Ingest.Extensions[i] = ext
	}
}

// Validate reports configuration values the session cannot work with.
func (c *Config) Validate() error {
	if !IsSupportedDialect(c.Database.Dialect) {
		return fmt.Errorf("unsupported dialect: %s (only %s are supported)", c.Database.Dialect, strings.Join(SupportedDialects, ", "))
	}
	if c.Ingest.Delimiter != "auto" && len([]rune(c.Ingest.Delimiter)) != 1 {
		return fmt.Errorf("invalid ingest delimiter %q: must be \"auto\" or a single character", c.Ingest.Delimiter)
	}
	if len(c.Ingest.Extensions) == 0 {
		return errors.New("at least one ingest extension is required")
	}
	return nil
}

// CatalogPath is where the session persists its catalog snapshot.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Workdir, "catalog.yaml")
}

// ExtractDir is where uploaded archives are unpacked.
func (c *Config) ExtractDir() string {
	return filepath.Join(c.Workdir, "extracted")
}

// IsSupportedDialect reports whether dialect is one of SupportedDialects.
func IsSupportedDialect(dialect string) bool {
	for _, d := range SupportedDialects {
		if d == dialect {
			return true
		}
	}
	return false
}
