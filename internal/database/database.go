package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/config"
)

// ColumnType is the logical type inferred for an ingested column.
type ColumnType string

const (
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeText    ColumnType = "TEXT"
)

// Store is the subset of the relational store used by ingestion and execution.
type Store interface {
	ReplaceTable(ctx context.Context, table TableData) error
	ListTables(ctx context.Context) ([]string, error)
	DropTables(ctx context.Context, names []string) error
	ListColumns(ctx context.Context, table string) ([]Column, error)
	Query(ctx context.Context, query string) (*sql.Rows, error)
	QueryReadOnly(ctx context.Context, query string, scan func(*sql.Rows) error) error
	Exec(ctx context.Context, statement string) (sql.Result, error)
	Ping(ctx context.Context) error
	DialectName() string
	Close() error
}

var _ Store = (*DB)(nil)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
}

// Column is one column of a table being loaded.
type Column struct {
	Name string
	Type ColumnType
}

// TableData is a fully parsed table ready to be written. Row values are nil (NULL),
// int64, float64 or string.
type TableData struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ReadOnlyTx describes how a dialect keeps a transaction from writing. Enter and
// Leave, when set, run on the connection around the transaction.
type ReadOnlyTx struct {
	Options *sql.TxOptions
	Enter   string
	Leave   string
}

// LogicalType maps a native column type reported by the store to the closest
// ingestion type.
func LogicalType(native string) ColumnType {
	t := strings.ToUpper(native)
	switch {
	case strings.Contains(t, "INT") && !strings.Contains(t, "POINT") && !strings.Contains(t, "INTERVAL"):
		return TypeInteger
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUM"), strings.Contains(t, "DEC"), strings.Contains(t, "MONEY"):
		return TypeReal
	default:
		return TypeText
	}
}

// DialectHandler hides the SQL differences between supported stores.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	// Name is the human readable dialect name given to the code generator.
	Name() string
	QuoteIdentifier(name string) string
	// Placeholder returns the bind parameter for the n-th (1-based) argument.
	Placeholder(n int) string
	ColumnType(t ColumnType) string
	DropTableSQL(quotedName string) string
	ListTablesQuery() string
	// ListColumnsQuery returns the name and native type of each column of the table
	// bound to its single parameter, in declaration order.
	ListColumnsQuery() string
	ReadOnlyTx() ReadOnlyTx
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	dialectHandlers[dialect] = handler
}

func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

// New opens a pool for cfg.Dialect and verifies it answers.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}
	if err != nil {
		return nil, &ErrStoreUnavailable{Msg: fmt.Sprintf("failed to create database pool for dialect %s", cfg.Dialect), Err: err}
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, &ErrStoreUnavailable{Msg: fmt.Sprintf("ping failed for dialect %s", cfg.Dialect), Err: err}
	}

	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (db *DB) DialectName() string {
	if db.Handler == nil {
		return ""
	}
	return db.Handler.Name()
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return &ErrStoreUnavailable{Msg: "database connection pool is not initialized"}
	}
	if err := db.Pool.PingContext(ctx); err != nil {
		return &ErrStoreUnavailable{Msg: "ping failed", Err: err}
	}
	return nil
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	return nil
}

// ListTables returns the base tables of the current schema, sorted by name.
func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.QueryContext(ctx, db.Handler.ListTablesQuery())
	if err != nil {
		return nil, fmt.Errorf("error querying tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}

// ListColumns returns the columns of table in declaration order.
func (db *DB) ListColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := db.Pool.QueryContext(ctx, db.Handler.ListColumnsQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("error querying columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var name string
		var native sql.NullString
		if err := rows.Scan(&name, &native); err != nil {
			return nil, fmt.Errorf("error scanning column of %s: %w", table, err)
		}
		columns = append(columns, Column{Name: name, Type: LogicalType(native.String)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	return columns, nil
}

// ReplaceTable drops any table named table.Name and recreates it with the given rows,
// all inside one transaction. On failure the previous table is left in place.
func (db *DB) ReplaceTable(ctx context.Context, table TableData) error {
	if table.Name == "" {
		return errors.New("table name is empty")
	}
	if len(table.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", table.Name)
	}
	h := db.Handler
	quoted := h.QuoteIdentifier(table.Name)

	defs := make([]string, len(table.Columns))
	names := make([]string, len(table.Columns))
	params := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		names[i] = h.QuoteIdentifier(col.Name)
		defs[i] = names[i] + " " + h.ColumnType(col.Type)
		params[i] = h.Placeholder(i + 1)
	}
	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoted, strings.Join(defs, ", "))
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoted, strings.Join(names, ", "), strings.Join(params, ", "))

	tx, err := db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, h.DropTableSQL(quoted)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table.Name, err)
	}
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table.Name, err)
	}

	if len(table.Rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare insert for %s: %w", table.Name, err)
		}
		defer stmt.Close()
		for i, row := range table.Rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return fmt.Errorf("failed to insert row %d into %s: %w", i+1, table.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DropTables drops every named table that exists.
func (db *DB) DropTables(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	tx, err := db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range names {
		if _, err := tx.ExecContext(ctx, db.Handler.DropTableSQL(db.Handler.QuoteIdentifier(name))); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Query runs a read statement.
func (db *DB) Query(ctx context.Context, query string) (*sql.Rows, error) {
	return db.Pool.QueryContext(ctx, query)
}

// QueryReadOnly runs query inside a transaction the store refuses to write in and
// hands the rows to scan. The transaction is always rolled back.
func (db *DB) QueryReadOnly(ctx context.Context, query string, scan func(*sql.Rows) error) (err error) {
	var ro ReadOnlyTx
	if db.Handler != nil {
		ro = db.Handler.ReadOnlyTx()
	}

	conn, err := db.Pool.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if ro.Enter != "" {
		if _, err := conn.ExecContext(ctx, ro.Enter); err != nil {
			return fmt.Errorf("failed to enter read-only mode: %w", err)
		}
		defer func() {
			// The connection goes back to the pool, so it must leave read-only mode
			// even when ctx is done.
			if _, leaveErr := conn.ExecContext(context.Background(), ro.Leave); leaveErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to leave read-only mode: %w", leaveErr))
			}
		}()
	}

	tx, err := conn.BeginTx(ctx, ro.Options)
	if err != nil {
		return fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	if err := scan(rows); err != nil {
		return err
	}
	return rows.Err()
}

// Exec runs a statement that does not return rows.
func (db *DB) Exec(ctx context.Context, statement string) (sql.Result, error) {
	return db.Pool.ExecContext(ctx, statement)
}
