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
package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("\xEF\xBB\xBFline one\r\nline two\rline three\n"), 0o644))

	text, err := ReadTextFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\nline three\n", text)

	_, err = ReadTextFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.txt")
	require.NoError(t, os.WriteFile(path, []byte("# perguntas\nQuais tabelas existem?\n\n  Quantas vendas?  \n"), 0o644))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Quais tabelas existem?", "Quantas vendas?"}, lines)
}

func TestReadContextFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("cfop: fiscal code"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("uf: state"), 0o644))

	got, err := ReadContextFiles([]string{a, " ", b})
	require.NoError(t, err)
	assert.Contains(t, got, "-- Context from file: "+a+" --\ncfop: fiscal code")
	assert.Contains(t, got, "uf: state")

	got, err = ReadContextFiles(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ReadContextFiles([]string{filepath.Join(dir, "missing.txt")})
	assert.Error(t, err)
}

func TestConfirmAction(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"Y\n", true},
		{"sim\n", true},
		{"no\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, tt.want, ConfirmAction(strings.NewReader(tt.input), &out, "Drop every table?"))
			assert.Contains(t, out.String(), "Drop every table?")
		})
	}
}
