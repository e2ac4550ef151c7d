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
package router

import (
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/catalog"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/executor"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/expr"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/format"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/normalize"
)

const noTables = "(no tables are loaded)"

// DataPrompt asks for one statement in dialect answering question. domainContext is
// optional free text describing the meaning of columns.
func DataPrompt(question, dialect string, snapshot []catalog.ColumnMetadata, domainContext string) string {
	schema := catalog.SchemaContext(snapshot)
	if schema == "" {
		schema = noTables
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are an experienced SQL analyst. Translate the user's question into one %s statement.\n\n", dialect)
	b.WriteString("**Tables and columns:**\n")
	b.WriteString(schema)
	b.WriteString("\n\n**Rules:**\n")
	b.WriteString("- Output ONLY the SQL statement. No explanations, no comments, no markdown.\n")
	fmt.Fprintf(&b, "- The statement must be valid %s and use only the tables and columns listed above.\n", dialect)
	b.WriteString("- Text values were stored upper-cased and without accents. Write every text literal the same way ")
	fmt.Fprintf(&b, "(for example 'São Paulo' becomes '%s') and compare with plain equality or LIKE, ", normalize.Value("São Paulo"))
	b.WriteString("without wrapping columns in UPPER or REPLACE.\n")
	b.WriteString("- Use COUNT, SUM, AVG, MIN, MAX, GROUP BY, ORDER BY and JOIN as the question requires. Use COUNT(DISTINCT col) for distinct counts.\n")
	b.WriteString("- Give computed columns a short alias.\n")
	b.WriteString("- Quote table or column names that start with a digit.\n")
	b.WriteString("- Columns holding document numbers, codes or identifiers are for filtering and grouping, never for arithmetic.\n")
	if ctx := strings.TrimSpace(domainContext); ctx != "" {
		b.WriteString("\n**Domain notes:**\n")
		b.WriteString(ctx)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n**Question:** %q\n\nSQL:", question)
	return b.String()
}

// Reference documents the operations an expression may use.
const Reference = `- selection: metadata[<condition>], metadata.loc[<condition>, 'col'] or metadata.loc[<condition>, ['a', 'b']]
- column: metadata['col'] or metadata.col; columns: metadata[['a', 'b']]
- conditions: metadata['col'] == 'v' (also !=, <, <=, >, >=), metadata['col'].isin(['a', 'b']),
  metadata['col'].str.contains('v', case=False), .str.startswith('v'), .str.endswith('v'),
  .str.lower() / .str.upper() before a comparison; combine with &, | and ~ using parentheses
- on a column: .unique(), .drop_duplicates(), .tolist(), .count(), .nunique(), .size(),
  .head(n), .tail(n), .sort_values(ascending=False), .value_counts(), .shape[0]
- on a table: .head(n), .tail(n), .sort_values('col'), .drop_duplicates(), .groupby('col'),
  .count(), .nunique(), .columns, .empty, .shape[0] (rows), .shape[1] (columns)
- not available: .iloc, .apply, lambda, assignment, .loc[:, ...]
- after groupby: .size(), .count(), or ['col'].count() / .nunique() / .unique()
- wrappers: len(...), sorted(...), set(...), list(...)`

// MetadataPrompt asks for one expression over the catalog answering question.
func MetadataPrompt(question string, snapshot []catalog.ColumnMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You answer questions about the structure of the loaded data. The catalog is a table named %s with columns:\n", expr.Variable)
	b.WriteString("- table_name: name of the table in the database, derived from the source file name\n")
	b.WriteString("- column_name: name of the column inside the table\n")
	b.WriteString("- data_type: inferred type, one of INTEGER, REAL or TEXT\n")
	b.WriteString("- source_file: name of the file the table was loaded from\n\n")
	b.WriteString("**Current catalog:**\n")
	b.WriteString(catalogTable(snapshot))
	fmt.Fprintf(&b, "\n\nWrite ONLY one read-only expression over %s, with no explanation and no markdown, using this subset:\n", expr.Variable)
	b.WriteString(Reference)
	b.WriteString("\n\n**Examples:**\n")
	b.WriteString("- Which tables are loaded? metadata['table_name'].unique().tolist()\n")
	b.WriteString("- Which columns does table 'vendas' have? metadata[metadata['table_name'] == 'vendas']['column_name'].tolist()\n")
	b.WriteString("- Show the columns and types of 'clientes'. metadata[metadata['table_name'] == 'clientes'][['column_name', 'data_type']]\n")
	b.WriteString("- How many columns does each table have? metadata.groupby('table_name').size()\n")
	fmt.Fprintf(&b, "\n**Question:** %q\n\nExpression:", question)
	return b.String()
}

func catalogTable(snapshot []catalog.ColumnMetadata) string {
	if len(snapshot) == 0 {
		return noTables
	}
	res := &executor.ExecutionResult{Kind: executor.KindTabular, Columns: catalog.Fields}
	for _, m := range snapshot {
		row := make([]any, 0, len(catalog.Fields))
		for _, v := range m.Values() {
			row = append(row, v)
		}
		res.Rows = append(res.Rows, row)
	}
	return format.Format(res)
}

// Prompt builds the prompt for track.
func Prompt(track Track, question, dialect string, snapshot []catalog.ColumnMetadata, domainContext string) string {
	if track == MetadataQuery {
		return MetadataPrompt(question, snapshot)
	}
	return DataPrompt(question, dialect, snapshot, domainContext)
}
