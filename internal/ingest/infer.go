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
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/database"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/normalize"
)

// columnNames normalizes the header. Empty results become unnamed_<index>. The
// returned slot maps every source column to its destination column; when two source
// columns normalize to the same name they share a slot, so the later one wins.
func columnNames(header []string) (names []string, slot []int) {
	slot = make([]int, len(header))
	seen := make(map[string]int)
	for i, raw := range header {
		name := normalize.Name(raw)
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", i)
		}
		if pos, ok := seen[name]; ok {
			slot[i] = pos
			continue
		}
		seen[name] = len(names)
		slot[i] = len(names)
		names = append(names, name)
	}
	return names, slot
}

// inferType classifies a column from its non-empty cells: INTEGER if all parse as
// int64, REAL if all parse as finite floats, TEXT otherwise. Numbers with a
// significant leading zero ("007") are identifiers and keep the column TEXT.
func inferType(values []string) database.ColumnType {
	typ := database.TypeInteger
	any := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		any = true
		if hasLeadingZero(v) {
			return database.TypeText
		}
		if typ == database.TypeInteger {
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			typ = database.TypeReal
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || strings.ContainsAny(v, "xXpP_") {
			return database.TypeText
		}
	}
	if !any {
		return database.TypeText
	}
	return typ
}

func hasLeadingZero(v string) bool {
	v = strings.TrimLeft(v, "+-")
	return len(v) > 1 && v[0] == '0' && v[1] >= '0' && v[1] <= '9'
}

// convert turns a raw cell into the value stored for a column of type typ.
func convert(raw string, typ database.ColumnType) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	switch typ {
	case database.TypeInteger:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case database.TypeReal:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return normalize.Value(v)
	}
}

// buildTable normalizes names, infers types and folds text values.
func buildTable(name string, raw *rawTable) database.TableData {
	names, slot := columnNames(raw.Header)

	cells := make([][]string, len(raw.Records))
	for r, rec := range raw.Records {
		row := make([]string, len(names))
		for i, v := range rec {
			row[slot[i]] = v
		}
		cells[r] = row
	}

	columns := make([]database.Column, len(names))
	for c, n := range names {
		values := make([]string, len(cells))
		for r := range cells {
			values[r] = cells[r][c]
		}
		columns[c] = database.Column{Name: n, Type: inferType(values)}
	}

	rows := make([][]any, len(cells))
	for r, row := range cells {
		out := make([]any, len(columns))
		for c, col := range columns {
			out[c] = convert(row[c], col.Type)
		}
		rows[r] = out
	}
	return database.TableData{Name: name, Columns: columns, Rows: rows}
}
