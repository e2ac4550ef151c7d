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

// Package router decides which generation path a question takes and builds the
// prompts for both paths.
package router

import (
	"regexp"
	"strings"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/catalog"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/executor"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/expr"
	"github.com/GoogleCloudPlatform/db-nl-query/internal/normalize"
)

// Track is the generation path of a question.
type Track int

const (
	// DataQuery questions are answered with a structured query over table contents.
	DataQuery Track = iota
	// MetadataQuery questions are answered with an expression over the catalog.
	MetadataQuery
)

func (t Track) String() string {
	if t == MetadataQuery {
		return "metadata"
	}
	return "data"
}

// Shape is the syntactic form of generated code.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeSQL
	ShapeExpression
)

func (s Shape) String() string {
	switch s {
	case ShapeSQL:
		return "sql"
	case ShapeExpression:
		return "expression"
	default:
		return "unknown"
	}
}

var structuralTerms = wordSet(
	"table", "tables", "tabela", "tabelas",
	"column", "columns", "coluna", "colunas",
	"field", "fields", "campo", "campos",
	"type", "types", "tipo", "tipos", "datatype",
	"schema", "schemas", "esquema", "esquemas",
	"metadata", "metadados", "metadado",
	"file", "files", "arquivo", "arquivos",
)

var dataTerms = wordSet(
	"row", "rows", "linha", "linhas", "record", "records", "registro", "registros",
	"sum", "soma", "somatorio", "average", "avg", "mean", "media",
	"max", "maximum", "maximo", "maior", "min", "minimum", "minimo", "menor",
	"value", "values", "valor", "valores", "amount", "quantidade",
)

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Classify gives an advisory track for question: a question that talks about
// tables, columns or types without asking for content is a metadata question.
// Words that name a loaded column are ignored. The shape of the generated code has
// the final word, see Resolve.
func Classify(question string, snapshot []catalog.ColumnMetadata) Track {
	columns := make(map[string]bool, len(snapshot))
	for _, m := range snapshot {
		columns[m.ColumnName] = true
	}
	structural, data := false, false
	for _, w := range strings.Split(normalize.Name(question), "_") {
		if columns[w] {
			continue
		}
		structural = structural || structuralTerms[w]
		data = data || dataTerms[w]
	}
	if structural && !data {
		return MetadataQuery
	}
	return DataQuery
}

var (
	sqlKeywords = wordSet("SELECT", "WITH", "PRAGMA", "EXPLAIN", "VALUES", "SHOW", "DESCRIBE",
		"INSERT", "UPDATE", "DELETE", "REPLACE", "CREATE", "DROP", "ALTER", "TRUNCATE", "MERGE")
	expressionRe = regexp.MustCompile(`^(?:(?:len|sorted|list|set)\(\s*)*` + expr.Variable + `\b`)
)

// DetectShape classifies generated code by its leading keyword or its reference to
// the catalog variable.
func DetectShape(code string) Shape {
	code = executor.StripCodeFence(code)
	if code == "" {
		return ShapeUnknown
	}
	if sqlKeywords[executor.FirstKeyword(code)] {
		return ShapeSQL
	}
	if expressionRe.MatchString(code) {
		return ShapeExpression
	}
	return ShapeUnknown
}

// Resolve picks the track used for execution. A recognized shape wins; unknown
// code follows the advisory track so the executor reports the failure.
func Resolve(advised Track, shape Shape) Track {
	switch shape {
	case ShapeSQL:
		return DataQuery
	case ShapeExpression:
		return MetadataQuery
	default:
		return advised
	}
}
