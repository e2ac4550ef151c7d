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
package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, body := range entries {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "notas.zip")
	writeZip(t, zipPath, map[string]string{
		"202401_NFs_Cabecalho.csv": "a,b\n1,2\n",
		"sub/itens.csv":            "c\n3\n",
	})

	dest := filepath.Join(dir, "out")
	names, err := Extract(zipPath, dest)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"202401_NFs_Cabecalho.csv", "sub/itens.csv"}, names)

	data, err := os.ReadFile(filepath.Join(dest, "sub", "itens.csv"))
	require.NoError(t, err)
	assert.Equal(t, "c\n3\n", string(data))
}

func TestExtractRejects(t *testing.T) {
	dir := t.TempDir()

	_, err := Extract(filepath.Join(dir, "data.rar"), dir)
	assert.True(t, errors.Is(err, ErrNotZip))

	corrupt := filepath.Join(dir, "corrupt.zip")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a zip"), 0o644))
	_, err = Extract(corrupt, filepath.Join(dir, "out"))
	assert.ErrorContains(t, err, "failed to open archive")

	slip := filepath.Join(dir, "slip.zip")
	writeZip(t, slip, map[string]string{"../evil.csv": "x\n"})
	_, err = Extract(slip, filepath.Join(dir, "out2"))
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "evil.csv"))
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.CSV", "notes.txt", "x.tsv", ".hidden.csv", "__MACOSX/a.csv", "nested/c.csv"} {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("h\n"), 0o644))
	}

	files, err := ListFiles(dir, []string{".csv", ".tsv"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.CSV"),
		filepath.Join(dir, "b.csv"),
		filepath.Join(dir, "nested", "c.csv"),
		filepath.Join(dir, "x.tsv"),
	}, files)

	_, err = ListFiles(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}
