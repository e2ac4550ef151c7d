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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/catalog"
)

func testSnapshot() []catalog.ColumnMetadata {
	return []catalog.ColumnMetadata{
		{TableName: "vendas", ColumnName: "cidade", DataType: "TEXT", SourceFile: "vendas.csv"},
		{TableName: "vendas", ColumnName: "valor", DataType: "REAL", SourceFile: "vendas.csv"},
		{TableName: "notas", ColumnName: "tipo", DataType: "TEXT", SourceFile: "notas.csv"},
		{TableName: "202401_nfs_itens", ColumnName: "cfop", DataType: "INTEGER", SourceFile: "202401_NFs_Itens.csv"},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		question string
		want     Track
	}{
		{"Which tables are loaded?", MetadataQuery},
		{"Quais tabelas foram carregadas?", MetadataQuery},
		{"What columns does vendas have?", MetadataQuery},
		{"Qual o tipo da coluna valor?", MetadataQuery},
		{"De qual arquivo veio a tabela notas?", MetadataQuery},
		{"Qual o valor total das vendas em São Paulo?", DataQuery},
		{"How many rows are in table vendas?", DataQuery},
		{"Quantas notas existem por tipo?", DataQuery},
		{"List the 5 biggest sales", DataQuery},
		{"", DataQuery},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.question, testSnapshot()))
		})
	}
}

func TestDetectShape(t *testing.T) {
	tests := []struct {
		code string
		want Shape
	}{
		{"SELECT COUNT(*) FROM vendas", ShapeSQL},
		{"```sql\nselect * from vendas\n```", ShapeSQL},
		{"WITH t AS (SELECT 1) SELECT * FROM t", ShapeSQL},
		{"UPDATE vendas SET valor = 0", ShapeSQL},
		{"metadata['table_name'].unique().tolist()", ShapeExpression},
		{"```python\nmetadata[metadata['table_name'] == 'vendas']\n```", ShapeExpression},
		{"len(metadata['table_name'].unique())", ShapeExpression},
		{"sorted(set(metadata['table_name']))", ShapeExpression},
		{"metadata_df['table_name']", ShapeUnknown},
		{"SELCT * FROM a", ShapeUnknown},
		{"The tables are vendas and notas.", ShapeUnknown},
		{"", ShapeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectShape(tt.code))
		})
	}
}

func TestResolve(t *testing.T) {
	assert.Equal(t, DataQuery, Resolve(MetadataQuery, ShapeSQL))
	assert.Equal(t, MetadataQuery, Resolve(DataQuery, ShapeExpression))
	assert.Equal(t, DataQuery, Resolve(DataQuery, ShapeUnknown))
	assert.Equal(t, MetadataQuery, Resolve(MetadataQuery, ShapeUnknown))
}

func TestDataPrompt(t *testing.T) {
	p := DataPrompt("Qual o total em São Paulo?", "SQLite", testSnapshot(), "cfop: fiscal operation code")

	assert.Contains(t, p, "one SQLite statement")
	assert.Contains(t, p, "table 'vendas': cidade TEXT, valor REAL")
	assert.Contains(t, p, "table '202401_nfs_itens': cfop INTEGER")
	assert.Contains(t, p, "'SAO PAULO'")
	assert.Contains(t, p, "**Domain notes:**\ncfop: fiscal operation code")
	assert.Contains(t, p, `"Qual o total em São Paulo?"`)
}

func TestDataPromptWithoutTablesOrContext(t *testing.T) {
	p := DataPrompt("q", "PostgreSQL", nil, "  ")
	assert.Contains(t, p, noTables)
	assert.NotContains(t, p, "Domain notes")
}

func TestMetadataPrompt(t *testing.T) {
	p := MetadataPrompt("Which tables are loaded?", testSnapshot())
	assert.Contains(t, p, "| table_name | column_name | data_type | source_file |")
	assert.Contains(t, p, "| vendas | valor | REAL | vendas.csv |")
	assert.Contains(t, p, Reference)
	assert.Contains(t, p, `"Which tables are loaded?"`)

	assert.Contains(t, MetadataPrompt("q", nil), noTables)
}

func TestPromptSelectsTrack(t *testing.T) {
	assert.Contains(t, Prompt(MetadataQuery, "q", "SQLite", nil, ""), "Expression:")
	assert.Contains(t, Prompt(DataQuery, "q", "SQLite", nil, ""), "SQL:")
}
