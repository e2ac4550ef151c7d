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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type snapshotFile struct {
	Columns []ColumnMetadata `yaml:"columns"`
}

// Save writes the catalog to path as YAML.
func (c *Catalog) Save(path string) error {
	data, err := yaml.Marshal(snapshotFile{Columns: c.GetAll()})
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

// Load replaces the catalog content with the snapshot stored at path. A missing file
// leaves the catalog empty.
func (c *Catalog) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.Clear()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}

	var snap snapshotFile
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode catalog file %s: %w", path, err)
	}

	byTable := make(map[string][]ColumnMetadata)
	for _, r := range snap.Columns {
		byTable[r.TableName] = append(byTable[r.TableName], r)
	}
	for table, rows := range byTable {
		if err := validate(table, rows); err != nil {
			return fmt.Errorf("catalog file %s: %w", path, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = snap.Columns
	return nil
}
