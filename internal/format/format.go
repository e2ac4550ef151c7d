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
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/executor"
)

const (
	// NoRowsMessage is returned for a tabular result with no rows.
	NoRowsMessage = "Query executed successfully, but returned no rows."
	// NoOutputMessage is returned when the code ran but produced nothing to show.
	NoOutputMessage = "Code executed successfully, with no output to show."
)

// Format renders res as markdown: a table for tabular results, the plain value for
// scalars, or one of the fixed messages.
func Format(res *executor.ExecutionResult) string {
	if res == nil {
		return NoOutputMessage
	}
	switch res.Kind {
	case executor.KindScalar:
		if res.Scalar == nil {
			return NoOutputMessage
		}
		return Cell(res.Scalar)
	case executor.KindTabular:
		if len(res.Rows) == 0 {
			return NoRowsMessage
		}
		return table(res.Columns, res.Rows)
	default:
		return NoOutputMessage
	}
}

func table(columns []string, rows [][]any) string {
	var b strings.Builder
	b.WriteString("|")
	for _, c := range columns {
		b.WriteString(" " + escape(c) + " |")
	}
	b.WriteString("\n|")
	for range columns {
		b.WriteString(" --- |")
	}
	for _, row := range rows {
		b.WriteString("\n|")
		for i := range columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			b.WriteString(" " + escape(Cell(v)) + " |")
		}
	}
	return b.String()
}

// Cell renders a single value the way it appears in a table cell.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

func escape(s string) string {
	return cellEscaper.Replace(s)
}
