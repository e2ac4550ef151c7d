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
package executor

import (
	"fmt"
	"slices"
	"strings"
)

// writeKeywords change data or schema wherever they appear in a statement, including
// inside a WITH clause.
var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true,
	"REPLACE": true, "CREATE": true, "DROP": true, "ALTER": true, "TRUNCATE": true,
	"RENAME": true, "GRANT": true, "REVOKE": true, "ATTACH": true, "DETACH": true,
	"VACUUM": true, "REINDEX": true, "INTO": true, "COPY": true, "CALL": true,
	"EXEC": true, "EXECUTE": true, "LOCK": true,
}

// token is an upper-cased bare word or a single punctuation character. Literals,
// quoted identifiers and comments produce no tokens.
type token struct {
	text string
	word bool
}

// statementKind is what a query looks like before it reaches the store.
type statementKind int

const (
	// pureRead is one statement that starts with a read keyword and names no write
	// keyword.
	pureRead statementKind = iota
	// mixedRead is one statement that starts with a read keyword but writes, such
	// as WITH ... DELETE or SELECT ... INTO.
	mixedRead
	// script is anything else: a write statement or several statements.
	script
)

// classify reports the kind of query and the word that decided it.
func classify(query string) (statementKind, string) {
	stmts := splitStatements(query)
	switch len(stmts) {
	case 0:
		return script, "no statement"
	case 1:
	default:
		return script, fmt.Sprintf("%d statements", len(stmts))
	}

	toks := stmts[0]
	start := 0
	for start < len(toks) && toks[start].text == "(" {
		start++
	}
	if start == len(toks) || !toks[start].word || !slices.Contains(readKeywords, toks[start].text) {
		if start < len(toks) {
			return script, toks[start].text
		}
		return script, "no statement"
	}
	first := toks[start].text

	for i, t := range toks {
		if !t.word || !writeKeywords[t.text] {
			continue
		}
		// replace(...), insert(...) and left(...) are functions.
		if i+1 < len(toks) && toks[i+1].text == "(" {
			continue
		}
		return mixedRead, t.text
	}
	if first == "PRAGMA" && slices.Contains(toks, token{text: "="}) {
		return mixedRead, first
	}
	return pureRead, first
}

// splitStatements tokenizes query and splits it on top-level semicolons. Empty
// statements are dropped.
func splitStatements(query string) [][]token {
	var (
		stmts [][]token
		cur   []token
	)
	flush := func() {
		if len(cur) > 0 {
			stmts = append(stmts, cur)
		}
		cur = nil
	}

	s := query
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++
		case c == '-' && strings.HasPrefix(s[i:], "--"):
			i = skipPast(s, i+2, "\n")
		case c == '/' && strings.HasPrefix(s[i:], "/*"):
			i = skipPast(s, i+2, "*/")
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(s, i, c)
		case c == '[':
			i = skipQuoted(s, i, ']')
		case c == '$':
			if tag, ok := dollarTag(s[i:]); ok {
				i = skipPast(s, i+len(tag), tag)
			} else {
				i++
			}
		case c == ';':
			flush()
			i++
		case isWordByte(c) && !(c >= '0' && c <= '9'):
			j := i
			for j < len(s) && (isWordByte(s[j]) || s[j] == '$') {
				j++
			}
			cur = append(cur, token{text: strings.ToUpper(s[i:j]), word: true})
			i = j
		case c >= '0' && c <= '9':
			for i < len(s) && (isWordByte(s[i]) || s[i] == '.') {
				i++
			}
		default:
			cur = append(cur, token{text: string(c)})
			i++
		}
	}
	flush()
	return stmts
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

// skipPast returns the index after the first end at or after i, or len(s).
func skipPast(s string, i int, end string) int {
	if k := strings.Index(s[i:], end); k >= 0 {
		return i + k + len(end)
	}
	return len(s)
}

// skipQuoted skips a literal opened at s[i] and closed by closing. A doubled
// closing character is an escaped one.
func skipQuoted(s string, i int, closing byte) int {
	for j := i + 1; j < len(s); j++ {
		if s[j] != closing {
			continue
		}
		if j+1 < len(s) && s[j+1] == closing {
			j++
			continue
		}
		return j + 1
	}
	return len(s)
}

// dollarTag returns the opening tag of a dollar-quoted string, such as $$ or $body$.
// Positional parameters like $1 are not tags.
func dollarTag(s string) (string, bool) {
	for j := 1; j < len(s); j++ {
		c := s[j]
		if c == '$' {
			return s[:j+1], true
		}
		if !isWordByte(c) || j == 1 && c >= '0' && c <= '9' {
			return "", false
		}
	}
	return "", false
}
