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
package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/archive"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/catalog"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/config"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/database"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/normalize"
)

// TableLoader writes a table with replace semantics.
type TableLoader interface {
	ReplaceTable(ctx context.Context, table database.TableData) error
}

// Ingestor loads tabular source files into the store and registers their metadata.
type Ingestor struct {
	store   TableLoader
	catalog *catalog.Catalog
	cfg     config.IngestConfig
	logger  *zap.Logger
}

func New(store TableLoader, cat *catalog.Catalog, cfg config.IngestConfig, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{store: store, catalog: cat, cfg: cfg, logger: logger}
}

// Ingest loads every recognized file under dir. Per-file problems are collected in the
// report; only an unreadable dir, a catalog shape violation or a cancelled context
// stop the batch.
func (in *Ingestor) Ingest(ctx context.Context, dir string) (*Report, error) {
	start := time.Now()
	report := &Report{}

	files, err := archive.ListFiles(dir, in.cfg.Extensions)
	if err != nil {
		return report, &ErrSourceUnavailable{Dir: dir, Err: err}
	}
	in.logger.Info("starting ingestion", zap.String("dir", dir), zap.Int("files", len(files)))

	loadedFrom := make(map[string]string)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		filename := filepath.Base(path)
		tableName := normalize.Name(strings.TrimSuffix(filename, filepath.Ext(filename)))
		if tableName == "" {
			in.record(report, &ErrIngestion{File: filename, Msg: "file name normalizes to an empty table name, skipped"})
			continue
		}

		raw, err := readDelimited(path, in.delimiterFor(filename))
		if errors.Is(err, errEmptyFile) {
			in.record(report, &ErrIngestion{File: filename, Msg: "empty, skipped", Warning: true})
			continue
		}
		if err != nil {
			in.record(report, &ErrIngestion{File: filename, Msg: "failed to read", Err: err})
			continue
		}

		table := buildTable(tableName, raw)
		meta := make([]catalog.ColumnMetadata, len(table.Columns))
		for i, col := range table.Columns {
			meta[i] = catalog.ColumnMetadata{
				TableName:  tableName,
				ColumnName: col.Name,
				DataType:   string(col.Type),
				SourceFile: filename,
			}
		}

		err = in.catalog.Replace(tableName, meta, func() error {
			return in.store.ReplaceTable(ctx, table)
		})
		var shapeErr *catalog.ErrInvalidMetadataShape
		if errors.As(err, &shapeErr) {
			return report, err
		}
		if err != nil {
			in.record(report, &ErrIngestion{File: filename, Msg: "failed to load table " + tableName, Err: err})
			continue
		}

		if prev, ok := loadedFrom[tableName]; ok {
			in.record(report, &ErrIngestion{File: filename, Msg: "replaced table " + tableName + " loaded earlier from " + prev, Warning: true})
		} else {
			report.Tables = append(report.Tables, tableName)
		}
		loadedFrom[tableName] = filename
		report.Processed++
		in.logger.Info("table loaded",
			zap.String("file", filename),
			zap.String("table", tableName),
			zap.Int("columns", len(table.Columns)),
			zap.Int("rows", len(table.Rows)))
	}

	in.logger.Info("ingestion completed",
		zap.Int("processed", report.Processed),
		zap.Int("problems", len(report.Errors)),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

func (in *Ingestor) record(report *Report, e *ErrIngestion) {
	if e.Warning {
		in.logger.Warn("ingestion warning", zap.String("file", e.File), zap.String("reason", e.Msg))
	} else {
		in.logger.Warn("ingestion error", zap.String("file", e.File), zap.String("reason", e.Msg), zap.Error(e.Err))
	}
	report.add(e)
}

// delimiterFor returns 0 when the delimiter must be sniffed.
func (in *Ingestor) delimiterFor(filename string) rune {
	if strings.EqualFold(filepath.Ext(filename), ".tsv") {
		return '\t'
	}
	if in.cfg.Delimiter == "" || in.cfg.Delimiter == "auto" {
		return 0
	}
	return []rune(in.cfg.Delimiter)[0]
}
