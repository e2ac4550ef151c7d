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
package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFrame() Frame {
	return Frame{
		Columns: []string{"table_name", "column_name", "data_type", "source_file"},
		Rows: [][]string{
			{"vendas", "id", "INTEGER", "vendas.csv"},
			{"vendas", "cidade", "TEXT", "vendas.csv"},
			{"vendas", "valor", "REAL", "vendas.csv"},
			{"clientes", "id", "INTEGER", "clientes.csv"},
			{"clientes", "nome", "TEXT", "clientes.csv"},
		},
	}
}

func eval(t *testing.T, src string) *Result {
	t.Helper()
	e, err := Parse(src)
	require.NoError(t, err)
	res, err := Evaluate(e, sampleFrame())
	require.NoError(t, err)
	return res
}

func values(res *Result) []string {
	out := make([]string, len(res.Rows))
	for i, row := range res.Rows {
		out[i] = row[0]
	}
	return out
}

func TestEvaluateSeries(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"unique tables", `metadata['table_name'].unique()`, []string{"vendas", "clientes"}},
		{"unique tables as list", `metadata['table_name'].unique().tolist()`, []string{"vendas", "clientes"}},
		{"attribute access", `metadata.table_name.drop_duplicates()`, []string{"vendas", "clientes"}},
		{"sorted builtin", `sorted(metadata['table_name'].unique())`, []string{"clientes", "vendas"}},
		{"set builtin", `set(metadata["table_name"])`, []string{"clientes", "vendas"}},
		{"filter then project", `metadata[metadata['table_name'] == 'vendas']['column_name'].tolist()`, []string{"id", "cidade", "valor"}},
		{"bare column condition", `metadata[data_type != 'TEXT']['column_name']`, []string{"id", "valor", "id"}},
		{"contains", `metadata[metadata['column_name'].str.contains('ida')]['column_name']`, []string{"cidade"}},
		{"contains ignoring case", `metadata[metadata.data_type.str.contains('text', case=False)].column_name`, []string{"cidade", "nome"}},
		{"contains literal", `metadata[metadata['source_file'].str.contains('es.c', regex=False)]['column_name']`, []string{"id", "nome"}},
		{"isin", `metadata[metadata['data_type'].isin(['REAL', 'TEXT'])]['column_name']`, []string{"cidade", "valor", "nome"}},
		{"and or with groups", `metadata[(metadata['table_name'] == 'vendas') & ((metadata['data_type'] == 'REAL') | (metadata['column_name'] == 'id'))]['column_name']`, []string{"id", "valor"}},
		{"negation", `metadata[~(metadata['table_name'] == 'vendas')]['column_name']`, []string{"id", "nome"}},
		{"lower then compare", `metadata[metadata['data_type'].str.lower() == 'real']['column_name']`, []string{"valor"}},
		{"startswith", `metadata[metadata['column_name'].str.startswith('n')]['column_name']`, []string{"nome"}},
		{"head", `metadata['column_name'].head(2)`, []string{"id", "cidade"}},
		{"tail keyword", `metadata['column_name'].tail(n=1)`, []string{"nome"}},
		{"head negative drops the last rows", `metadata['column_name'].head(-2)`, []string{"id", "cidade", "valor"}},
		{"tail negative drops the first rows", `metadata['column_name'].tail(-3)`, []string{"id", "nome"}},
		{"loc with one column", `metadata.loc[metadata['table_name'] == 'clientes', 'column_name']`, []string{"id", "nome"}},
		{"loc rows only", `metadata.loc[metadata['data_type'] == 'REAL']['column_name']`, []string{"valor"}},
		{"sort series descending", `metadata['column_name'].sort_values(ascending=False).head(1)`, []string{"valor"}},
		{"columns attribute", `metadata.columns.tolist()`, []string{"table_name", "column_name", "data_type", "source_file"}},
		{"trailing semicolon", `metadata['table_name'].unique();`, []string{"vendas", "clientes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := eval(t, tt.src)
			require.False(t, res.IsScalar)
			require.Len(t, res.Columns, 1)
			assert.Equal(t, tt.want, values(res))
		})
	}
}

func TestEvaluateScalars(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{`metadata['table_name'].nunique()`, 2},
		{`metadata['column_name'].count()`, 5},
		{`len(metadata)`, 5},
		{`len(metadata['table_name'].unique())`, 2},
		{`metadata[metadata['table_name'] == 'clientes']['column_name'].size()`, 2},
		{`metadata['table_name'].size`, 5},
		{`metadata[metadata['table_name'] == 'produtos'].empty`, true},
		{`metadata.shape[0]`, 5},
		{`metadata.shape[1]`, 4},
		{`metadata.shape[-1]`, 4},
		{`metadata[metadata['table_name'] == 'vendas'].shape[0]`, 3},
		{`metadata['column_name'].shape[0]`, 5},
		{`metadata.shape`, "(5, 4)"},
		{`metadata['column_name'].shape`, "(5,)"},
		{`len(metadata.head(-10))`, 0},
		{`len(metadata.tail(-10))`, 0},
		{`len(metadata.tail(-1))`, 4},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			res := eval(t, tt.src)
			require.True(t, res.IsScalar)
			assert.Equal(t, tt.want, res.Scalar)
		})
	}
}

func TestEvaluateFrames(t *testing.T) {
	t.Run("projection", func(t *testing.T) {
		res := eval(t, `metadata[metadata['data_type'] == 'INTEGER'][['table_name', 'column_name']]`)
		assert.Equal(t, []string{"table_name", "column_name"}, res.Columns)
		assert.Equal(t, [][]string{{"vendas", "id"}, {"clientes", "id"}}, res.Rows)
	})

	t.Run("loc with a column list", func(t *testing.T) {
		res := eval(t, `metadata.loc[metadata['column_name'] == 'id', ['table_name', 'data_type']]`)
		assert.Equal(t, []string{"table_name", "data_type"}, res.Columns)
		assert.Equal(t, [][]string{{"vendas", "INTEGER"}, {"clientes", "INTEGER"}}, res.Rows)
	})

	t.Run("groupby size sorts keys", func(t *testing.T) {
		res := eval(t, `metadata.groupby('table_name').size()`)
		assert.Equal(t, []string{"table_name", "size"}, res.Columns)
		assert.Equal(t, [][]string{{"clientes", "2"}, {"vendas", "3"}}, res.Rows)
	})

	t.Run("groupby selected column count", func(t *testing.T) {
		res := eval(t, `metadata.groupby('table_name')['column_name'].count().reset_index()`)
		assert.Equal(t, []string{"table_name", "column_name"}, res.Columns)
		assert.Equal(t, [][]string{{"clientes", "2"}, {"vendas", "3"}}, res.Rows)
	})

	t.Run("groupby nunique with a list key", func(t *testing.T) {
		res := eval(t, `metadata.groupby(['data_type'])['table_name'].nunique()`)
		assert.Equal(t, [][]string{{"INTEGER", "2"}, {"REAL", "1"}, {"TEXT", "2"}}, res.Rows)
	})

	t.Run("sort values and drop duplicates", func(t *testing.T) {
		res := eval(t, `metadata[['table_name', 'source_file']].drop_duplicates().sort_values('table_name')`)
		assert.Equal(t, [][]string{{"clientes", "clientes.csv"}, {"vendas", "vendas.csv"}}, res.Rows)
	})

	t.Run("value counts", func(t *testing.T) {
		res := eval(t, `metadata['data_type'].value_counts()`)
		assert.Equal(t, []string{"data_type", "count"}, res.Columns)
		assert.Equal(t, []string{"2", "2", "1"}, []string{res.Rows[0][1], res.Rows[1][1], res.Rows[2][1]})
		assert.Equal(t, "REAL", res.Rows[2][0])
	})

	t.Run("whole catalog", func(t *testing.T) {
		res := eval(t, `metadata`)
		assert.Len(t, res.Rows, 5)
	})

	t.Run("empty filter keeps columns", func(t *testing.T) {
		res := eval(t, `metadata[metadata['table_name'] == 'nada']`)
		assert.Equal(t, sampleFrame().Columns, res.Columns)
		assert.Empty(t, res.Rows)
	})
}

func TestEvaluateRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"other variable", `df['table_name'].unique()`},
		{"unknown column", `metadata['tabela'].unique()`},
		{"disallowed function", `eval(metadata)`},
		{"disallowed method", `metadata.to_csv('out.csv')`},
		{"mutation", `metadata.drop(columns=['table_name'])`},
		{"unique on a table", `metadata.unique()`},
		{"condition without comparison", `metadata[metadata['table_name']]`},
		{"grouping without aggregation", `metadata.groupby('table_name')`},
		{"method on scalar", `metadata['table_name'].nunique().count()`},
		{"bad keyword", `metadata['table_name'].head(rows=3)`},
		{"non integer head", `metadata.head('x')`},
		{"invalid regex", `metadata[metadata['table_name'].str.contains('(')]`},
		{"shape index out of range", `metadata.shape[2]`},
		{"shape by name", `metadata.shape['rows']`},
		{"table by position", `metadata[0]`},
		{"column list without loc", `metadata[metadata['table_name'] == 'vendas', 'column_name']`},
		{"loc without condition", `metadata.loc['table_name']`},
		{"bare loc", `metadata.loc`},
		{"loc on a column", `metadata['table_name'].loc[metadata['table_name'] == 'vendas']`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse(tt.src)
			require.NoError(t, err)
			_, err = Evaluate(e, sampleFrame())
			require.Error(t, err)
			var evalErr *EvalError
			assert.True(t, errors.As(err, &evalErr), "got %T: %v", err, err)
		})
	}
}

func TestParseRejectsNonExpressions(t *testing.T) {
	for _, src := range []string{
		"",
		"SELECT * FROM vendas",
		"The tables are vendas and clientes.",
		"metadata[",
		"metadata; import os",
		"metadata['a'] = 1",
		"__import__('os')",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			assert.Error(t, err)
		})
	}
}

func TestEvaluateDoesNotMutateInput(t *testing.T) {
	data := sampleFrame()
	e, err := Parse(`metadata.sort_values('column_name', ascending=False)[['column_name']]`)
	require.NoError(t, err)
	_, err = Evaluate(e, data)
	require.NoError(t, err)
	assert.Equal(t, sampleFrame(), data)
}

func TestUnquoteEscapes(t *testing.T) {
	res := eval(t, `metadata[metadata['column_name'] == 'it\'s'].empty`)
	assert.Equal(t, true, res.Scalar)
}
