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
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Fields lists the catalog columns in their canonical order.
var Fields = []string{"table_name", "column_name", "data_type", "source_file"}

// ColumnMetadata describes one column of one loaded table. It is identified by
// (TableName, ColumnName).
type ColumnMetadata struct {
	TableName  string `yaml:"table_name"`
	ColumnName string `yaml:"column_name"`
	DataType   string `yaml:"data_type"`
	SourceFile string `yaml:"source_file"`
}

// Values returns the row in Fields order.
func (m ColumnMetadata) Values() []string {
	return []string{m.TableName, m.ColumnName, m.DataType, m.SourceFile}
}

// ErrInvalidMetadataShape is returned when a metadata row misses a required field or
// belongs to a different table than the one being registered.
type ErrInvalidMetadataShape struct {
	Table string
	Index int
	Field string
}

func (e *ErrInvalidMetadataShape) Error() string {
	return fmt.Sprintf("invalid metadata shape for table %q: row %d has an invalid %s", e.Table, e.Index, e.Field)
}

// Catalog is the registry of column metadata for every table of one session. The
// distinct table names it holds always match the tables present in the store.
type Catalog struct {
	mu   sync.RWMutex
	rows []ColumnMetadata
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{}
}

func validate(tableName string, rows []ColumnMetadata) error {
	if tableName == "" {
		return &ErrInvalidMetadataShape{Table: tableName, Index: -1, Field: "table_name"}
	}
	for i, r := range rows {
		switch {
		case r.TableName != tableName:
			return &ErrInvalidMetadataShape{Table: tableName, Index: i, Field: "table_name"}
		case r.ColumnName == "":
			return &ErrInvalidMetadataShape{Table: tableName, Index: i, Field: "column_name"}
		case r.DataType == "":
			return &ErrInvalidMetadataShape{Table: tableName, Index: i, Field: "data_type"}
		case r.SourceFile == "":
			return &ErrInvalidMetadataShape{Table: tableName, Index: i, Field: "source_file"}
		}
	}
	return nil
}

// swap must be called with the write lock held.
func (c *Catalog) swap(tableName string, rows []ColumnMetadata) {
	kept := c.rows[:0:0]
	for _, r := range c.rows {
		if r.TableName != tableName {
			kept = append(kept, r)
		}
	}
	c.rows = append(kept, rows...)
}

// AddMetadata replaces every row of tableName with rows.
func (c *Catalog) AddMetadata(tableName string, rows []ColumnMetadata) error {
	if err := validate(tableName, rows); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swap(tableName, rows)
	return nil
}

// Replace runs load while holding the catalog write lock and swaps the metadata of
// tableName only if load succeeds, so readers never see a replaced table with stale
// metadata or the reverse.
func (c *Catalog) Replace(tableName string, rows []ColumnMetadata, load func() error) error {
	if err := validate(tableName, rows); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := load(); err != nil {
		return err
	}
	c.swap(tableName, rows)
	return nil
}

// GetAll returns a copy of every row in registration order.
func (c *Catalog) GetAll() []ColumnMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ColumnMetadata, len(c.rows))
	copy(out, c.rows)
	return out
}

// GetByTable returns a copy of the rows of one table.
func (c *Catalog) GetByTable(tableName string) []ColumnMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ColumnMetadata
	for _, r := range c.rows {
		if r.TableName == tableName {
			out = append(out, r)
		}
	}
	return out
}

// ListTableNames returns the distinct table names, sorted.
func (c *Catalog) ListTableNames() []string {
	names := Tables(c.GetAll())
	sort.Strings(names)
	return names
}

// RemoveTables drops the metadata of the given tables.
func (c *Catalog) RemoveTables(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.rows[:0:0]
	for _, r := range c.rows {
		if !drop[r.TableName] {
			kept = append(kept, r)
		}
	}
	c.rows = kept
}

// Clear empties the catalog.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = nil
}

// Len returns the number of column rows.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// Tables returns the distinct table names of rows in order of first appearance.
func Tables(rows []ColumnMetadata) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range rows {
		if !seen[r.TableName] {
			seen[r.TableName] = true
			names = append(names, r.TableName)
		}
	}
	return names
}

// SchemaContext renders one line per table: table 'T': col1 TYPE1, col2 TYPE2
func SchemaContext(rows []ColumnMetadata) string {
	var lines []string
	for _, table := range Tables(rows) {
		var cols []string
		for _, r := range rows {
			if r.TableName == table {
				cols = append(cols, r.ColumnName+" "+r.DataType)
			}
		}
		lines = append(lines, fmt.Sprintf("table '%s': %s", table, strings.Join(cols, ", ")))
	}
	return strings.Join(lines, "\n")
}
