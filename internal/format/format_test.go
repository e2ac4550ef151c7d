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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/GoogleCloudPlatform/db-nl-query/internal/executor"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		res  *executor.ExecutionResult
		want string
	}{
		{
			name: "table",
			res: &executor.ExecutionResult{
				Kind:    executor.KindTabular,
				Columns: []string{"cidade", "total"},
				Rows:    [][]any{{"SAO PAULO", int64(2)}, {"BELEM", 1.5}},
			},
			want: "| cidade | total |\n| --- | --- |\n| SAO PAULO | 2 |\n| BELEM | 1.5 |",
		},
		{
			name: "escapes pipes and newlines",
			res: &executor.ExecutionResult{
				Kind:    executor.KindTabular,
				Columns: []string{"a|b"},
				Rows:    [][]any{{"x|y\nz"}, {nil}},
			},
			want: "| a\\|b |\n| --- |\n| x\\|y z |\n| NULL |",
		},
		{
			name: "no rows",
			res:  &executor.ExecutionResult{Kind: executor.KindTabular, Columns: []string{"id"}},
			want: NoRowsMessage,
		},
		{
			name: "scalar",
			res:  &executor.ExecutionResult{Kind: executor.KindScalar, Scalar: 42},
			want: "42",
		},
		{
			name: "scalar bool",
			res:  &executor.ExecutionResult{Kind: executor.KindScalar, Scalar: true},
			want: "True",
		},
		{
			name: "void",
			res:  &executor.ExecutionResult{Kind: executor.KindVoid},
			want: NoOutputMessage,
		},
		{
			name: "nil result",
			res:  nil,
			want: NoOutputMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.res))
		})
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	assert.NotEqual(t, NoRowsMessage, NoOutputMessage)
	assert.NotContains(t, NoRowsMessage, "error")
	assert.NotContains(t, NoOutputMessage, "error")
}

func TestCell(t *testing.T) {
	assert.Equal(t, "10.25", Cell(10.25))
	assert.Equal(t, "3", Cell(int64(3)))
	assert.Equal(t, "abc", Cell([]byte("abc")))
	assert.Equal(t, "2024-01-02T03:04:05Z", Cell(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}
