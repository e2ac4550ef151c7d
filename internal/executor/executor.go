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
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/catalog"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/config"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/database"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/expr"
)

// Kind tells how an ExecutionResult should be read.
type Kind int

const (
	// KindVoid means the code ran without observable output.
	KindVoid Kind = iota
	KindTabular
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindTabular:
		return "tabular"
	case KindScalar:
		return "scalar"
	default:
		return "void"
	}
}

// ExecutionResult is a table of named columns in projection order, or a scalar.
type ExecutionResult struct {
	Kind    Kind
	Columns []string
	Rows    [][]any
	Scalar  any
}

// QueryStore is the part of the relational store the executor needs.
type QueryStore interface {
	Query(ctx context.Context, query string) (*sql.Rows, error)
	QueryReadOnly(ctx context.Context, query string, scan func(*sql.Rows) error) error
	Exec(ctx context.Context, statement string) (sql.Result, error)
	Ping(ctx context.Context) error
}

// readKeywords start statements that return rows.
var readKeywords = []string{"SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES", "SHOW", "DESCRIBE"}

var (
	fenceRe   = regexp.MustCompile("(?s)```(?:[A-Za-z0-9_+-]*[ \t]*\r?\n)?(.*?)```")
	commentRe = regexp.MustCompile(`(?s)\A(?:\s+|--[^\n]*(?:\n|\z)|/\*.*?\*/)*`)
)

// Executor runs generated code against the store or a catalog snapshot.
type Executor struct {
	store    QueryStore
	readOnly bool
	logger   *zap.Logger
}

func New(store QueryStore, cfg config.ExecutorConfig, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{store: store, readOnly: cfg.ReadOnly, logger: logger}
}

// StripCodeFence returns the content of the first fenced code block in code, or the
// trimmed code when there is none.
func StripCodeFence(code string) string {
	if m := fenceRe.FindStringSubmatch(code); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(code), "`"))
}

// FirstKeyword returns the upper-cased first word of a statement, skipping leading
// comments and parentheses.
func FirstKeyword(query string) string {
	s := commentRe.ReplaceAllString(query, "")
	s = strings.TrimLeft(s, "( \t\r\n")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_')
	})
	if end >= 0 {
		s = s[:end]
	}
	return strings.ToUpper(s)
}

// IsReadQuery reports whether query is a single statement that starts with a keyword
// returning rows and names no keyword that writes. Keywords inside literals, quoted
// identifiers and comments are ignored.
func IsReadQuery(query string) bool {
	kind, _ := classify(query)
	return kind == pureRead
}

// ExecuteQuery runs a structured query. Read statements return every row, possibly
// none, and run in a transaction the store refuses to write in. Other statements
// return a scalar success message, or are refused when the executor is read-only.
// Failures are never retried.
func (e *Executor) ExecuteQuery(ctx context.Context, query string) (*ExecutionResult, error) {
	query = StripCodeFence(query)
	if query == "" {
		return nil, &ErrQueryExecution{Msg: "generated query is empty", Query: query}
	}
	if err := e.store.Ping(ctx); err != nil {
		var unavailable *database.ErrStoreUnavailable
		if errors.As(err, &unavailable) {
			return nil, err
		}
		return nil, &database.ErrStoreUnavailable{Msg: "cannot reach the relational store", Err: err}
	}

	kind, keyword := classify(query)
	if kind != pureRead && e.readOnly {
		e.logger.Warn("statement refused", zap.String("query", query), zap.String("keyword", keyword))
		return nil, &ErrQueryExecution{Msg: fmt.Sprintf("only read statements are allowed, got %s", keyword), Query: query}
	}

	if kind != script {
		res, err := e.runRead(ctx, query, kind == pureRead)
		if err != nil {
			e.logger.Error("query failed", zap.String("query", query), zap.Error(err))
			return nil, &ErrQueryExecution{Msg: "query failed", Query: query, Err: err}
		}
		e.logger.Info("query executed", zap.Int("rows", len(res.Rows)))
		return res, nil
	}

	result, err := e.store.Exec(ctx, query)
	if err != nil {
		e.logger.Error("statement failed", zap.String("query", query), zap.Error(err))
		return nil, &ErrQueryExecution{Msg: "statement failed", Query: query, Err: err}
	}
	msg := "statement executed successfully"
	if n, err := result.RowsAffected(); err == nil {
		msg = fmt.Sprintf("%s, %d row(s) affected", msg, n)
	}
	e.logger.Info("statement executed", zap.String("keyword", keyword))
	return &ExecutionResult{Kind: KindScalar, Scalar: msg}, nil
}

// runRead runs a statement that returns rows. Pure reads are isolated in a read-only
// transaction; reads that also write, such as WITH ... DELETE, run as they are.
func (e *Executor) runRead(ctx context.Context, query string, isolated bool) (*ExecutionResult, error) {
	var res *ExecutionResult
	scan := func(rows *sql.Rows) error {
		var err error
		res, err = scanRows(rows)
		return err
	}
	if isolated {
		if err := e.store.QueryReadOnly(ctx, query, scan); err != nil {
			return nil, err
		}
		return res, nil
	}

	rows, err := e.store.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if err := scan(rows); err != nil {
		return nil, err
	}
	if len(res.Columns) == 0 {
		return &ExecutionResult{Kind: KindScalar, Scalar: "statement executed successfully"}, nil
	}
	return res, nil
}

func scanRows(rows *sql.Rows) (*ExecutionResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	res := &ExecutionResult{Kind: KindTabular, Columns: columns}
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, c := range cells {
			if b, ok := c.([]byte); ok {
				cells[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return res, nil
}

// ExecuteExpression evaluates a metadata expression against snapshot. The snapshot
// is only read.
func (e *Executor) ExecuteExpression(expression string, snapshot []catalog.ColumnMetadata) (*ExecutionResult, error) {
	expression = StripCodeFence(expression)
	parsed, err := expr.Parse(expression)
	if err != nil {
		return nil, &ErrExpressionExecution{Msg: "expression is not valid", Expression: expression, Err: err}
	}

	frame := expr.Frame{Columns: catalog.Fields, Rows: make([][]string, len(snapshot))}
	for i, m := range snapshot {
		frame.Rows[i] = m.Values()
	}
	out, err := expr.Evaluate(parsed, frame)
	if err != nil {
		e.logger.Error("expression failed", zap.String("expression", expression), zap.Error(err))
		return nil, &ErrExpressionExecution{Msg: "expression could not be evaluated", Expression: expression, Err: err}
	}

	if out.IsScalar {
		return &ExecutionResult{Kind: KindScalar, Scalar: out.Scalar}, nil
	}
	res := &ExecutionResult{Kind: KindTabular, Columns: out.Columns, Rows: make([][]any, len(out.Rows))}
	for i, row := range out.Rows {
		cells := make([]any, len(row))
		for j, c := range row {
			cells[j] = c
		}
		res.Rows[i] = cells
	}
	e.logger.Info("expression evaluated", zap.Int("rows", len(res.Rows)))
	return res, nil
}
