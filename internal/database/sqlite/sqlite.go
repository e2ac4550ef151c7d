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
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/config"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/database"
)

type sqliteHandler struct{}

var _ database.DialectHandler = (*sqliteHandler)(nil)

// CreateCloudSQLPool is not available for an embedded file store.
func (h sqliteHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	return nil, fmt.Errorf("cloud sql is not supported for the sqlite dialect")
}

// CreateStandardPool opens (and creates if needed) the database file at cfg.Path.
func (h sqliteHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dbPool, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open (sqlite): %w", err)
	}
	// A single writer avoids SQLITE_BUSY between the ingestion transaction and reads.
	dbPool.SetMaxOpenConns(1)
	return dbPool, nil
}

func (h sqliteHandler) Name() string { return "SQLite" }

func (h sqliteHandler) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (h sqliteHandler) Placeholder(n int) string { return "?" }

func (h sqliteHandler) ColumnType(t database.ColumnType) string {
	switch t {
	case database.TypeInteger:
		return "INTEGER"
	case database.TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (h sqliteHandler) DropTableSQL(quotedName string) string {
	return "DROP TABLE IF EXISTS " + quotedName
}

func (h sqliteHandler) ListTablesQuery() string {
	return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
}

func (h sqliteHandler) ListColumnsQuery() string {
	return "SELECT name, type FROM pragma_table_info(?) ORDER BY cid"
}

// ReadOnlyTx switches the connection to query_only. The driver ignores
// sql.TxOptions.ReadOnly.
func (h sqliteHandler) ReadOnlyTx() database.ReadOnlyTx {
	return database.ReadOnlyTx{Enter: "PRAGMA query_only = ON", Leave: "PRAGMA query_only = OFF"}
}

func init() {
	database.RegisterDialectHandler("sqlite", sqliteHandler{})
}
