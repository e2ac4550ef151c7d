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

// Package expr implements the read-only query algebra used to answer questions about
// the metadata catalog. Expressions use a small pandas-like surface over the
// catalog variable and are parsed into a typed tree before evaluation; nothing is
// ever executed as host code.
package expr

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Variable is the only name an expression may start from.
const Variable = "metadata"

// program is either a builtin wrapper such as len(...) or a step chain.
//
//nolint:govet // participle grammar tags are not standard struct tags
type program struct {
	Pos   lexer.Position
	Func  *funcCall `  @@`
	Chain *chain    `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type funcCall struct {
	Name string   `@Ident "("`
	Arg  *program `@@ ")"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type chain struct {
	Root  string  `@Ident`
	Steps []*step `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type step struct {
	Pos    lexer.Position
	Index  *selector `  "[" @@ "]"`
	Access *accessor `| "." @@`
}

// selector is the content of a [...] step.
//
//nolint:govet // participle grammar tags are not standard struct tags
type selector struct {
	Columns  []string `  "[" @String ( "," @String )* "]"`
	Column   *string  `| @String`
	Position *float64 `| @Number`
	Filter   *cond    `| @@`
	// Project is the column part of .loc[rows, cols].
	Project *value `( "," @@ )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type accessor struct {
	Pos  lexer.Position
	Name string `@Ident`
	Call *call  `@@?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type call struct {
	Args []*arg `"(" ( @@ ( "," @@ )* )? ")"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type arg struct {
	Key   *string `( @Ident "=" )?`
	Value *value  `@@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type value struct {
	Str  *string  `  @String`
	Num  *float64 `| @Number`
	Bool *string  `| @( "True" | "False" )`
	None bool     `| @"None"`
	List []*value `| "[" ( @@ ( "," @@ )* )? "]"`
}

// cond is a disjunction of conjunctions. & binds tighter than |.
//
//nolint:govet // participle grammar tags are not standard struct tags
type cond struct {
	Terms []*term `@@ ( "|" @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type term struct {
	Factors []*factor `@@ ( "&" @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type factor struct {
	Not   bool  `@"~"?`
	Group *cond `( "(" @@ ")"`
	Test  *test `| @@ )`
}

// test reads a column, either metadata['col'], metadata.col or a bare col, followed
// by accessors such as .str.contains('x') or .isin([...]) and an optional comparison.
//
//nolint:govet // participle grammar tags are not standard struct tags
type test struct {
	Pos   lexer.Position
	Root  string      `@Ident`
	Index *string     `( "[" @String "]" )?`
	Path  []*accessor `( "." @@ )*`
	Cmp   *comparison `@@?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type comparison struct {
	Op    string `@( "==" | "!=" | "<=" | ">=" | "<" | ">" )`
	Value *value `@@`
}

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'(?:\\.|[^'\\])*'|"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `[-+]?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Op", Pattern: `==|!=|<=|>=|[<>=&|~()\[\],.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var exprParser = participle.MustBuild[program](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.Map(unquoteString, "String"),
	participle.UseLookahead(4),
)

// unquoteString strips the surrounding quotes of a single- or double-quoted literal
// and resolves backslash escapes.
func unquoteString(tok lexer.Token) (lexer.Token, error) {
	v := tok.Value
	if len(v) < 2 {
		return tok, fmt.Errorf("malformed string literal %s", v)
	}
	v = v[1 : len(v)-1]
	if strings.IndexByte(v, '\\') < 0 {
		tok.Value = v
		return tok, nil
	}
	var b strings.Builder
	escaped := false
	for _, r := range v {
		if escaped {
			switch r {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(r)
			}
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	tok.Value = b.String()
	return tok, nil
}

// Expression is a parsed, not yet evaluated, metadata query.
type Expression struct {
	source string
	tree   *program
}

// String returns the source text the expression was parsed from.
func (e *Expression) String() string {
	return e.source
}

// Parse parses src. A trailing semicolon is tolerated.
func Parse(src string) (*Expression, error) {
	s := strings.TrimSpace(src)
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	if s == "" {
		return nil, fmt.Errorf("empty expression")
	}
	tree, err := exprParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}
	return &Expression{source: s, tree: tree}, nil
}
