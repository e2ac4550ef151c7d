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

// Package normalize holds the two folding functions shared by ingestion and query
// generation: identifier normalization for table and column names, and the value fold
// applied to text cells so that equality comparisons ignore case and diacritics.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFallback maps letters that have no canonical decomposition to their closest
// ASCII spelling.
var asciiFallback = map[rune]string{
	'ß': "ss",
	'æ': "ae",
	'œ': "oe",
	'ø': "o",
	'đ': "d",
	'ð': "d",
	'ł': "l",
	'þ': "th",
	'ı': "i",
}

// stripDiacritics decomposes s (NFKD), drops combining marks and recomposes whatever
// is left.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Name turns a raw identifier into a canonical relational identifier made only of
// [a-z0-9_], without leading, trailing or doubled underscores. It never fails: input
// made only of symbols yields the empty string, which callers must reject.
func Name(raw string) string {
	s := strings.ToLower(stripDiacritics(strings.ToLower(raw)))

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := true // swallows leading underscores
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if repl, ok := asciiFallback[r]; ok {
				b.WriteString(repl)
				lastUnderscore = false
				continue
			}
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// Value folds a text cell for storage: diacritics stripped, upper-cased and trimmed.
// Generated query literals must go through the same fold to match stored values.
func Value(raw string) string {
	s := stripDiacritics(raw)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := asciiFallback[unicode.ToLower(r)]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(strings.ToUpper(b.String()))
}
