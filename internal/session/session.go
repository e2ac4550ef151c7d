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

// Package session wires the store, the catalog and the question pipeline for one
// working directory.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/archive"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/catalog"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/config"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/database"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/executor"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/format"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/genai"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/ingest"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/router"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/utils"
)

// NoTablesMessage answers any question asked before something was ingested.
const NoTablesMessage = "No tables are loaded yet. Ingest an archive of tabular files first."

// GeneratedSource is the source file recorded for tables created by a statement
// rather than loaded from a file.
const GeneratedSource = "(generated query)"

// Answer is the outcome of one question.
type Answer struct {
	Question string
	Kind     router.Track
	Shape    router.Shape
	Code     string
	Result   *executor.ExecutionResult
	Output   string
}

// Session owns the store connection and the catalog of one working directory.
// Ingestion, questions and clearing are serialized.
type Session struct {
	ID string

	mu            sync.Mutex
	cfg           *config.Config
	store         database.Store
	catalog       *catalog.Catalog
	ingestor      *ingest.Ingestor
	executor      *executor.Executor
	generator     genai.CodeGenerator
	domainContext string
	logger        *zap.Logger
}

// Open connects to the configured store and restores the catalog snapshot of the
// working directory, dropping entries whose table no longer exists. generator may be
// nil when the session will not answer questions.
func Open(ctx context.Context, cfg *config.Config, generator genai.CodeGenerator, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	logger = logger.With(zap.String("session", id))

	if err := os.MkdirAll(cfg.Workdir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	domainContext, err := utils.ReadContextFiles(cfg.ContextFiles)
	if err != nil {
		return nil, err
	}

	store, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	cat := catalog.New()
	if err := cat.Load(cfg.CatalogPath()); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to restore catalog: %w", err)
	}

	s := &Session{
		ID:            id,
		cfg:           cfg,
		store:         store,
		catalog:       cat,
		ingestor:      ingest.New(store, cat, cfg.Ingest, logger),
		executor:      executor.New(store, cfg.Executor, logger),
		generator:     generator,
		domainContext: domainContext,
		logger:        logger,
	}
	if err := s.reconcile(ctx, false); err != nil {
		store.Close()
		return nil, err
	}
	logger.Info("session opened",
		zap.String("dialect", cfg.Database.Dialect),
		zap.String("workdir", cfg.Workdir),
		zap.Int("tables", len(cat.ListTableNames())))
	return s, nil
}

// Close releases the store connection.
func (s *Session) Close() error {
	return s.store.Close()
}

// DialectName is the display name of the store's SQL dialect.
func (s *Session) DialectName() string {
	return s.store.DialectName()
}

// Metadata returns a copy of the catalog.
func (s *Session) Metadata() []catalog.ColumnMetadata {
	return s.catalog.GetAll()
}

// Tables lists the loaded tables.
func (s *Session) Tables() []string {
	return s.catalog.ListTableNames()
}

// IngestArchive extracts a zip archive into the working directory, replacing any
// previous extraction, and ingests its tabular files.
func (s *Session) IngestArchive(ctx context.Context, zipPath string) (*ingest.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dest := filepath.Join(s.cfg.ExtractDir(), strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath)))
	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("failed to clean extraction directory: %w", err)
	}
	names, err := archive.Extract(zipPath, dest)
	if err != nil {
		return nil, err
	}
	s.logger.Info("archive extracted", zap.String("archive", zipPath), zap.Int("entries", len(names)))
	return s.ingestDir(ctx, dest)
}

// IngestDir ingests every tabular file under dir and saves the catalog snapshot.
func (s *Session) IngestDir(ctx context.Context, dir string) (*ingest.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestDir(ctx, dir)
}

func (s *Session) ingestDir(ctx context.Context, dir string) (*ingest.Report, error) {
	report, err := s.ingestor.Ingest(ctx, dir)
	if saveErr := s.catalog.Save(s.cfg.CatalogPath()); saveErr != nil {
		return report, errors.Join(err, fmt.Errorf("failed to save catalog: %w", saveErr))
	}
	return report, err
}

// Ask answers question: it routes, generates code, executes it and formats the
// result. Every failure is an *ErrQuestion.
func (s *Session) Ask(ctx context.Context, question string) (*Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &ErrQuestion{Question: question, Err: errors.New("question is empty")}
	}
	s.logger.Info("question received", zap.String("question", question))

	snapshot := s.catalog.GetAll()
	if len(snapshot) == 0 {
		return &Answer{Question: question, Output: NoTablesMessage}, nil
	}
	if s.generator == nil {
		return nil, &ErrQuestion{Question: question, Err: errors.New("no code generator configured")}
	}

	advised := router.Classify(question, snapshot)
	prompt := router.Prompt(advised, question, s.store.DialectName(), snapshot, s.domainContext)
	s.logger.Debug("prompt built", zap.Stringer("track", advised), zap.String("prompt", prompt))

	code, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("generation failed", zap.Error(err))
		return nil, &ErrQuestion{Question: question, Err: err}
	}
	code = executor.StripCodeFence(code)
	shape := router.DetectShape(code)
	track := router.Resolve(advised, shape)
	s.logger.Info("code generated",
		zap.Stringer("advised", advised),
		zap.Stringer("shape", shape),
		zap.Stringer("track", track),
		zap.String("code", code))

	var res *executor.ExecutionResult
	if track == router.MetadataQuery {
		res, err = s.executor.ExecuteExpression(code, snapshot)
	} else {
		res, err = s.executor.ExecuteQuery(ctx, code)
		// A statement that failed halfway may still have changed the store.
		var unavailable *database.ErrStoreUnavailable
		if !errors.As(err, &unavailable) {
			if rerr := s.reconcile(ctx, true); rerr != nil {
				s.logger.Error("catalog reconciliation failed", zap.Error(rerr))
				err = errors.Join(err, rerr)
			}
		}
	}
	if err != nil {
		return nil, &ErrQuestion{Question: question, Code: code, Err: err}
	}

	answer := &Answer{
		Question: question,
		Kind:     track,
		Shape:    shape,
		Code:     code,
		Result:   res,
		Output:   format.Format(res),
	}
	s.logger.Info("answer produced", zap.Stringer("kind", res.Kind))
	return answer, nil
}

// Clear drops every catalog table from the store, empties the catalog and removes
// extracted files.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := s.catalog.ListTableNames()
	if err := s.store.DropTables(ctx, tables); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	s.catalog.Clear()
	if err := os.Remove(s.cfg.CatalogPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove catalog snapshot: %w", err)
	}
	if err := os.RemoveAll(s.cfg.ExtractDir()); err != nil {
		return fmt.Errorf("failed to remove extracted files: %w", err)
	}
	s.logger.Info("environment cleared", zap.Strings("tables", tables))
	return nil
}

// CheckConsistency verifies that the catalog tables and the store tables are the
// same set. The store is expected to hold only ingested tables.
func (s *Session) CheckConsistency(ctx context.Context) error {
	stored, err := s.store.ListTables(ctx)
	if err != nil {
		return err
	}
	missing, untracked := diff(s.catalog.ListTableNames(), stored)
	if len(missing) == 0 && len(untracked) == 0 {
		return nil
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "catalog tables missing from the store: "+strings.Join(missing, ", "))
	}
	if len(untracked) > 0 {
		parts = append(parts, "store tables without metadata: "+strings.Join(untracked, ", "))
	}
	return fmt.Errorf("catalog and store disagree: %s", strings.Join(parts, "; "))
}

// reconcile removes catalog entries whose table is gone from the store. With adopt,
// it also registers store tables that have no metadata and refreshes the columns of
// every table, so tables created, renamed or altered by a statement are tracked. The
// snapshot is saved when anything changed.
func (s *Session) reconcile(ctx context.Context, adopt bool) error {
	stored, err := s.store.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list store tables: %w", err)
	}
	missing, untracked := diff(s.catalog.ListTableNames(), stored)
	changed := len(missing) > 0
	gone := make(map[string][]catalog.ColumnMetadata, len(missing))
	if changed {
		for _, table := range missing {
			gone[table] = s.catalog.GetByTable(table)
		}
		s.logger.Warn("dropping metadata of missing tables", zap.Strings("tables", missing))
		s.catalog.RemoveTables(missing...)
	}

	var errs []error
	if adopt {
		for _, table := range stored {
			refreshed, err := s.refreshTable(ctx, table, gone)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			changed = changed || refreshed
		}
	} else if len(untracked) > 0 {
		s.logger.Warn("store holds tables without metadata", zap.Strings("tables", untracked))
	}

	if changed {
		errs = append(errs, s.catalog.Save(s.cfg.CatalogPath()))
	}
	return errors.Join(errs...)
}

// refreshTable replaces the metadata of table with the columns the store reports,
// keeping its source file. A new table with the same columns as a table in gone is
// taken to be that table renamed. It reports whether the catalog changed.
func (s *Session) refreshTable(ctx context.Context, table string, gone map[string][]catalog.ColumnMetadata) (bool, error) {
	columns, err := s.store.ListColumns(ctx, table)
	if err != nil {
		return false, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}
	if len(columns) == 0 {
		return false, nil
	}

	current := s.catalog.GetByTable(table)
	source := GeneratedSource
	if len(current) > 0 {
		source = current[0].SourceFile
	} else if from, ok := renamedFrom(columns, gone); ok {
		source = gone[from][0].SourceFile
		s.logger.Info("table renamed", zap.String("from", from), zap.String("to", table))
	}
	rows := make([]catalog.ColumnMetadata, len(columns))
	for i, col := range columns {
		rows[i] = catalog.ColumnMetadata{
			TableName:  table,
			ColumnName: col.Name,
			DataType:   string(col.Type),
			SourceFile: source,
		}
	}
	if slices.Equal(rows, current) {
		return false, nil
	}
	if len(current) == 0 {
		s.logger.Info("registering table created by a statement", zap.String("table", table))
	} else {
		s.logger.Info("refreshing columns changed by a statement", zap.String("table", table))
	}
	return true, s.catalog.AddMetadata(table, rows)
}

// renamedFrom returns the table in gone whose columns match columns, if exactly one
// does.
func renamedFrom(columns []database.Column, gone map[string][]catalog.ColumnMetadata) (string, bool) {
	var match []string
	for table, rows := range gone {
		if len(rows) != len(columns) {
			continue
		}
		same := true
		for i, col := range columns {
			if rows[i].ColumnName != col.Name || rows[i].DataType != string(col.Type) {
				same = false
				break
			}
		}
		if same {
			match = append(match, table)
		}
	}
	if len(match) != 1 {
		return "", false
	}
	return match[0], true
}

// diff returns the names only in want and the names only in have, sorted.
func diff(want, have []string) (missing, extra []string) {
	inHave := make(map[string]bool, len(have))
	for _, h := range have {
		inHave[h] = true
	}
	inWant := make(map[string]bool, len(want))
	for _, w := range want {
		inWant[w] = true
		if !inHave[w] {
			missing = append(missing, w)
		}
	}
	for _, h := range have {
		if !inWant[h] {
			extra = append(extra, h)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}
