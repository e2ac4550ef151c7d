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
package normalize

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var canonicalName = regexp.MustCompile(`^([a-z0-9]+(_[a-z0-9]+)*)?$`)

func TestName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Already canonical", "clientes", "clientes"},
		{"Upper case", "VENDAS", "vendas"},
		{"Accents and spaces", "Razão Social Emitente", "razao_social_emitente"},
		{"Leading digits kept", "202401_NFs_Cabecalho", "202401_nfs_cabecalho"},
		{"Symbol runs collapse", "valor -- total (R$)", "valor_total_r"},
		{"Leading and trailing symbols trimmed", "__data emissão__", "data_emissao"},
		{"Doubled underscores collapse", "a__b___c", "a_b_c"},
		{"Cedilla", "Inscrição", "inscricao"},
		{"No decomposition falls back to ASCII", "Straße", "strasse"},
		{"Compatibility forms", "ﬁle №1", "file_no1"},
		{"Empty", "", ""},
		{"Only symbols", "%%% ---", ""},
		{"Non latin script becomes separator", "名前 id", "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.in))
		})
	}
}

func TestNameIsIdempotentAndCanonical(t *testing.T) {
	inputs := []string{
		"São Paulo", "  CPF/CNPJ Emitente ", "Nº", "___", "é", "valor_unitário",
		"a-b-c", "ÀÁÂÃÄÅ", "Æther", "data/hora evento mais recente", "x\ty\nz", "_1_",
	}
	for _, in := range inputs {
		once := Name(in)
		assert.Equal(t, once, Name(once), "Name must be idempotent for %q", in)
		assert.Regexp(t, canonicalName, once, "Name(%q) is not canonical", in)
	}
}

func TestValue(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Accents and case", "São Paulo", "SAO PAULO"},
		{"Surrounding whitespace", "  cajamar ", "CAJAMAR"},
		{"Cedilla", "Operação interna", "OPERACAO INTERNA"},
		{"Sharp s", "straße", "STRASSE"},
		{"Already folded", "VENDA", "VENDA"},
		{"Digits untouched", "nf-e 123", "NF-E 123"},
		{"Empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.in))
		})
	}
}

func TestValueIsIdempotent(t *testing.T) {
	for _, in := range []string{"São Paulo", "ÁGUA", " mixed Case ", "Ærø"} {
		once := Value(in)
		assert.Equal(t, once, Value(once))
	}
}
