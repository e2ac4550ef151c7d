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
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Frame is a read-only table of string cells. Evaluation never writes into the
// frame it is given.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// Result is the outcome of an expression: a table, or a scalar when IsScalar is set.
// Series results are tables with a single column.
type Result struct {
	Columns  []string
	Rows     [][]string
	Scalar   any
	IsScalar bool
}

type kind int

const (
	kindFrame kind = iota
	kindSeries
	kindGrouped
	kindLoc
	kindTuple
	kindScalar
)

func (k kind) String() string {
	switch k {
	case kindFrame:
		return "table"
	case kindSeries:
		return "column"
	case kindGrouped:
		return "grouping"
	case kindLoc:
		return "loc indexer"
	case kindTuple:
		return "shape"
	default:
		return "scalar"
	}
}

// val is an intermediate value. Series are frames with exactly one column.
type val struct {
	kind   kind
	frame  Frame
	by     []string
	column string
	tuple  []int
	scalar any
}

// EvalError reports a failure at a position of the expression source.
type EvalError struct {
	Pos lexer.Position
	Msg string
}

func (e *EvalError) Error() string {
	if e.Pos.Column > 0 {
		return fmt.Sprintf("column %d: %s", e.Pos.Column, e.Msg)
	}
	return e.Msg
}

func errorAt(pos lexer.Position, format string, args ...any) error {
	return &EvalError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Evaluate runs e against data.
func Evaluate(e *Expression, data Frame) (*Result, error) {
	v, err := evalProgram(e.tree, data)
	if err != nil {
		return nil, err
	}
	switch v.kind {
	case kindScalar:
		return &Result{Scalar: v.scalar, IsScalar: true}, nil
	case kindGrouped:
		return nil, &EvalError{Msg: "a grouping must be followed by an aggregation such as .size() or .count()"}
	case kindLoc:
		return nil, &EvalError{Msg: ".loc must be followed by [condition] or [condition, columns]"}
	case kindTuple:
		return &Result{Scalar: formatTuple(v.tuple), IsScalar: true}, nil
	default:
		return &Result{Columns: v.frame.Columns, Rows: v.frame.Rows}, nil
	}
}

func evalProgram(p *program, data Frame) (val, error) {
	if p.Func != nil {
		inner, err := evalProgram(p.Func.Arg, data)
		if err != nil {
			return val{}, err
		}
		return applyBuiltin(p.Pos, p.Func.Name, inner)
	}

	c := p.Chain
	if c.Root != Variable {
		return val{}, errorAt(p.Pos, "unknown name %q: expressions must start from %s", c.Root, Variable)
	}
	v := val{kind: kindFrame, frame: data}
	for _, st := range c.Steps {
		var err error
		if st.Index != nil {
			v, err = applyIndex(st.Pos, v, st.Index)
		} else {
			v, err = applyAccess(v, st.Access)
		}
		if err != nil {
			return val{}, err
		}
	}
	return v, nil
}

func applyBuiltin(pos lexer.Position, name string, v val) (val, error) {
	switch name {
	case "len":
		switch v.kind {
		case kindFrame, kindSeries:
			return scalar(len(v.frame.Rows)), nil
		case kindGrouped:
			return scalar(len(groupRows(v.frame, v.by).keys)), nil
		}
	case "list":
		switch v.kind {
		case kindSeries:
			return v, nil
		case kindFrame:
			return series("column", v.frame.Columns), nil
		}
	case "sorted":
		if v.kind == kindSeries {
			return sortFrame(v, []string{v.frame.Columns[0]}, true), nil
		}
	case "set":
		if v.kind == kindSeries {
			return sortFrame(distinct(v, nil), []string{v.frame.Columns[0]}, true), nil
		}
	default:
		return val{}, errorAt(pos, "function %s is not allowed", name)
	}
	return val{}, errorAt(pos, "%s cannot be applied to a %s", name, v.kind)
}

func applyIndex(pos lexer.Position, v val, sel *selector) (val, error) {
	if sel.Project != nil && v.kind != kindLoc {
		return val{}, errorAt(pos, "a column selection after a comma needs .loc")
	}
	switch v.kind {
	case kindFrame:
		if sel.Position != nil {
			return val{}, errorAt(pos, "tables are indexed by column name or condition, not by position")
		}
	case kindLoc:
		return applyLoc(pos, v, sel)
	case kindTuple:
		if sel.Position == nil {
			return val{}, errorAt(pos, "shape is indexed by position")
		}
		return tupleItem(pos, v.tuple, *sel.Position)
	case kindGrouped:
		if sel.Column == nil || v.column != "" {
			return val{}, errorAt(pos, "a grouping can only select one column")
		}
		if _, err := columnIndex(pos, v.frame, *sel.Column); err != nil {
			return val{}, err
		}
		v.column = *sel.Column
		return v, nil
	default:
		return val{}, errorAt(pos, "cannot index a %s", v.kind)
	}

	switch {
	case sel.Column != nil:
		return project(pos, v.frame, []string{*sel.Column}, kindSeries)
	case sel.Columns != nil:
		return project(pos, v.frame, sel.Columns, kindFrame)
	default:
		return filterRows(v.frame, sel.Filter)
	}
}

func filterRows(f Frame, c *cond) (val, error) {
	mask, err := evalCond(c, f)
	if err != nil {
		return val{}, err
	}
	var rows [][]string
	for i, keep := range mask {
		if keep {
			rows = append(rows, f.Rows[i])
		}
	}
	return val{kind: kindFrame, frame: Frame{Columns: f.Columns, Rows: rows}}, nil
}

// applyLoc evaluates .loc[cond] and .loc[cond, 'col'] or .loc[cond, ['a', 'b']].
func applyLoc(pos lexer.Position, v val, sel *selector) (val, error) {
	if sel.Filter == nil {
		return val{}, errorAt(pos, ".loc needs a condition selecting the rows")
	}
	rows, err := filterRows(v.frame, sel.Filter)
	if err != nil {
		return val{}, err
	}
	p := sel.Project
	switch {
	case p == nil:
		return rows, nil
	case p.Str != nil:
		return project(pos, rows.frame, []string{*p.Str}, kindSeries)
	case p.List != nil:
		cols := make([]string, len(p.List))
		for i, item := range p.List {
			if item.Str == nil {
				return val{}, errorAt(pos, ".loc columns must be strings")
			}
			cols[i] = *item.Str
		}
		return project(pos, rows.frame, cols, kindFrame)
	default:
		return val{}, errorAt(pos, ".loc columns must be a column name or a list of names")
	}
}

func tupleItem(pos lexer.Position, tuple []int, at float64) (val, error) {
	i := int(at)
	if float64(i) != at {
		return val{}, errorAt(pos, "shape index must be an integer")
	}
	if i < 0 {
		i += len(tuple)
	}
	if i < 0 || i >= len(tuple) {
		return val{}, errorAt(pos, "shape index %d out of range", int(at))
	}
	return scalar(tuple[i]), nil
}

func formatTuple(tuple []int) string {
	parts := make([]string, len(tuple))
	for i, n := range tuple {
		parts[i] = strconv.Itoa(n)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func applyAccess(v val, a *accessor) (val, error) {
	if a.Call == nil {
		return applyAttribute(v, a)
	}
	args := a.Call.Args
	switch v.kind {
	case kindFrame:
		return frameMethod(v, a.Pos, a.Name, args)
	case kindSeries:
		return seriesMethod(v, a.Pos, a.Name, args)
	case kindGrouped:
		return groupedMethod(v, a.Pos, a.Name, args)
	default:
		return val{}, errorAt(a.Pos, "cannot call %s on a %s", a.Name, v.kind)
	}
}

func applyAttribute(v val, a *accessor) (val, error) {
	switch a.Name {
	case "size":
		if v.kind == kindFrame || v.kind == kindSeries {
			return scalar(len(v.frame.Rows) * len(v.frame.Columns)), nil
		}
	case "empty":
		if v.kind == kindFrame || v.kind == kindSeries {
			return scalar(len(v.frame.Rows) == 0), nil
		}
	case "columns":
		if v.kind == kindFrame {
			return series("column", v.frame.Columns), nil
		}
	case "values":
		if v.kind == kindSeries {
			return v, nil
		}
	case "shape":
		switch v.kind {
		case kindFrame:
			return val{kind: kindTuple, tuple: []int{len(v.frame.Rows), len(v.frame.Columns)}}, nil
		case kindSeries:
			return val{kind: kindTuple, tuple: []int{len(v.frame.Rows)}}, nil
		}
	case "loc":
		if v.kind == kindFrame {
			return val{kind: kindLoc, frame: v.frame}, nil
		}
	default:
		if v.kind == kindFrame && hasColumn(v.frame, a.Name) {
			return project(a.Pos, v.frame, []string{a.Name}, kindSeries)
		}
		if v.kind == kindGrouped && v.column == "" && hasColumn(v.frame, a.Name) {
			v.column = a.Name
			return v, nil
		}
	}
	return val{}, errorAt(a.Pos, "unknown attribute %s on a %s", a.Name, v.kind)
}

func frameMethod(v val, pos lexer.Position, name string, args []*arg) (val, error) {
	switch name {
	case "head", "tail":
		p, err := bind(pos, name, args, "n")
		if err != nil {
			return val{}, err
		}
		n, err := p.int("n", 5)
		if err != nil {
			return val{}, err
		}
		return limit(v, n, name == "tail"), nil
	case "sort_values":
		p, err := bind(pos, name, args, "by", "ascending")
		if err != nil {
			return val{}, err
		}
		by, err := p.strings("by")
		if err != nil {
			return val{}, err
		}
		if len(by) == 0 {
			return val{}, errorAt(pos, "sort_values needs a column")
		}
		for _, c := range by {
			if _, err := columnIndex(pos, v.frame, c); err != nil {
				return val{}, err
			}
		}
		asc, err := p.bool("ascending", true)
		if err != nil {
			return val{}, err
		}
		return sortFrame(v, by, asc), nil
	case "drop_duplicates":
		p, err := bind(pos, name, args, "subset")
		if err != nil {
			return val{}, err
		}
		subset, err := p.strings("subset")
		if err != nil {
			return val{}, err
		}
		var idx []int
		for _, c := range subset {
			i, err := columnIndex(pos, v.frame, c)
			if err != nil {
				return val{}, err
			}
			idx = append(idx, i)
		}
		return distinct(v, idx), nil
	case "groupby":
		p, err := bind(pos, name, args, "by")
		if err != nil {
			return val{}, err
		}
		by, err := p.strings("by")
		if err != nil {
			return val{}, err
		}
		if len(by) == 0 {
			return val{}, errorAt(pos, "groupby needs a column")
		}
		for _, c := range by {
			if _, err := columnIndex(pos, v.frame, c); err != nil {
				return val{}, err
			}
		}
		return val{kind: kindGrouped, frame: v.frame, by: by}, nil
	case "count", "nunique":
		if _, err := bind(pos, name, args); err != nil {
			return val{}, err
		}
		rows := make([][]string, len(v.frame.Columns))
		for i, c := range v.frame.Columns {
			col := column(v.frame, i)
			n := nonEmpty(col)
			if name == "nunique" {
				n = uniqueCount(col)
			}
			rows[i] = []string{c, strconv.Itoa(n)}
		}
		return val{kind: kindFrame, frame: Frame{Columns: []string{"column", name}, Rows: rows}}, nil
	case "size":
		if _, err := bind(pos, name, args); err != nil {
			return val{}, err
		}
		return scalar(len(v.frame.Rows) * len(v.frame.Columns)), nil
	case "reset_index", "copy":
		return v, nil
	case "unique", "tolist", "to_list", "value_counts":
		return val{}, errorAt(pos, "%s needs a single column, select one first, e.g. %s['table_name'].%s()", name, Variable, name)
	}
	return val{}, errorAt(pos, "method %s is not allowed on a table", name)
}

func seriesMethod(v val, pos lexer.Position, name string, args []*arg) (val, error) {
	switch name {
	case "unique", "drop_duplicates":
		if _, err := bind(pos, name, args); err != nil {
			return val{}, err
		}
		return distinct(v, nil), nil
	case "tolist", "to_list", "reset_index", "copy":
		return v, nil
	case "count":
		if _, err := bind(pos, name, args); err != nil {
			return val{}, err
		}
		return scalar(nonEmpty(column(v.frame, 0))), nil
	case "nunique":
		if _, err := bind(pos, name, args); err != nil {
			return val{}, err
		}
		return scalar(uniqueCount(column(v.frame, 0))), nil
	case "size":
		if _, err := bind(pos, name, args); err != nil {
			return val{}, err
		}
		return scalar(len(v.frame.Rows)), nil
	case "head", "tail":
		p, err := bind(pos, name, args, "n")
		if err != nil {
			return val{}, err
		}
		n, err := p.int("n", 5)
		if err != nil {
			return val{}, err
		}
		return limit(v, n, name == "tail"), nil
	case "sort_values":
		p, err := bind(pos, name, args, "ascending")
		if err != nil {
			return val{}, err
		}
		asc, err := p.bool("ascending", true)
		if err != nil {
			return val{}, err
		}
		return sortFrame(v, v.frame.Columns, asc), nil
	case "value_counts":
		if _, err := bind(pos, name, args); err != nil {
			return val{}, err
		}
		return valueCounts(v), nil
	}
	return val{}, errorAt(pos, "method %s is not allowed on a column", name)
}

func groupedMethod(v val, pos lexer.Position, name string, args []*arg) (val, error) {
	if _, err := bind(pos, name, args); err != nil {
		return val{}, err
	}
	g := groupRows(v.frame, v.by)
	label := name
	var colIdx int
	switch name {
	case "size":
	case "count", "nunique", "unique":
		if v.column == "" {
			if name != "count" {
				return val{}, errorAt(pos, "%s on a grouping needs a selected column, e.g. .groupby('table_name')['column_name'].%s()", name, name)
			}
		} else {
			label = v.column
			colIdx, _ = columnIndex(pos, v.frame, v.column)
		}
	default:
		return val{}, errorAt(pos, "method %s is not allowed on a grouping", name)
	}

	columns := append(append([]string{}, v.by...), label)
	rows := make([][]string, 0, len(g.keys))
	for _, key := range g.keys {
		members := g.members[key]
		var agg string
		switch {
		case name == "size" || (name == "count" && v.column == ""):
			agg = strconv.Itoa(len(members))
		case name == "count":
			agg = strconv.Itoa(nonEmpty(pick(members, colIdx)))
		case name == "nunique":
			agg = strconv.Itoa(uniqueCount(pick(members, colIdx)))
		default:
			agg = strings.Join(column(distinct(val{kind: kindSeries, frame: Frame{Columns: []string{label}, Rows: wrap(pick(members, colIdx))}}, nil).frame, 0), ", ")
		}
		row := append(append([]string{}, g.values[key]...), agg)
		rows = append(rows, row)
	}
	return val{kind: kindFrame, frame: Frame{Columns: columns, Rows: rows}}, nil
}

type groups struct {
	keys    []string
	values  map[string][]string
	members map[string][][]string
}

// groupRows groups frame rows by the by columns, keys sorted ascending.
func groupRows(f Frame, by []string) groups {
	idx := make([]int, len(by))
	for i, c := range by {
		idx[i] = indexOf(f.Columns, c)
	}
	g := groups{values: map[string][]string{}, members: map[string][][]string{}}
	for _, row := range f.Rows {
		parts := make([]string, len(idx))
		for i, j := range idx {
			parts[i] = row[j]
		}
		key := strings.Join(parts, "\x00")
		if _, ok := g.values[key]; !ok {
			g.keys = append(g.keys, key)
			g.values[key] = parts
		}
		g.members[key] = append(g.members[key], row)
	}
	sort.SliceStable(g.keys, func(i, j int) bool {
		return lessRow(g.values[g.keys[i]], g.values[g.keys[j]])
	})
	return g
}

func lessRow(a, b []string) bool {
	for i := range a {
		if c := compareCells(a[i], b[i]); c != 0 {
			return c < 0
		}
	}
	return false
}

// compareCells orders numerically when both cells are numbers, lexically otherwise.
func compareCells(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func project(pos lexer.Position, f Frame, cols []string, k kind) (val, error) {
	idx := make([]int, len(cols))
	for i, c := range cols {
		j, err := columnIndex(pos, f, c)
		if err != nil {
			return val{}, err
		}
		idx[i] = j
	}
	rows := make([][]string, len(f.Rows))
	for r, row := range f.Rows {
		out := make([]string, len(idx))
		for i, j := range idx {
			out[i] = row[j]
		}
		rows[r] = out
	}
	return val{kind: k, frame: Frame{Columns: append([]string{}, cols...), Rows: rows}}, nil
}

// distinct keeps the first row of every distinct key, in order. A nil idx compares
// whole rows.
func distinct(v val, idx []int) val {
	seen := make(map[string]bool)
	var rows [][]string
	for _, row := range v.frame.Rows {
		var parts []string
		if idx == nil {
			parts = row
		} else {
			for _, j := range idx {
				parts = append(parts, row[j])
			}
		}
		key := strings.Join(parts, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, row)
	}
	v.frame = Frame{Columns: v.frame.Columns, Rows: rows}
	return v
}

func sortFrame(v val, by []string, asc bool) val {
	idx := make([]int, len(by))
	for i, c := range by {
		idx[i] = indexOf(v.frame.Columns, c)
	}
	rows := append([][]string{}, v.frame.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range idx {
			if c := compareCells(rows[i][k], rows[j][k]); c != 0 {
				if asc {
					return c < 0
				}
				return c > 0
			}
		}
		return false
	})
	v.frame = Frame{Columns: v.frame.Columns, Rows: rows}
	return v
}

// limit keeps the first (or, with fromEnd, the last) n rows. A negative n keeps all
// rows except the last (or first) -n.
func limit(v val, n int, fromEnd bool) val {
	rows := v.frame.Rows
	keep := n
	if n < 0 {
		keep = len(rows) + n
	}
	keep = max(0, min(keep, len(rows)))
	if fromEnd {
		rows = rows[len(rows)-keep:]
	} else {
		rows = rows[:keep]
	}
	v.frame = Frame{Columns: v.frame.Columns, Rows: rows}
	return v
}

// valueCounts counts each distinct value, most frequent first.
func valueCounts(v val) val {
	counts := make(map[string]int)
	var order []string
	for _, cell := range column(v.frame, 0) {
		if counts[cell] == 0 {
			order = append(order, cell)
		}
		counts[cell]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	rows := make([][]string, len(order))
	for i, cell := range order {
		rows[i] = []string{cell, strconv.Itoa(counts[cell])}
	}
	return val{kind: kindFrame, frame: Frame{Columns: []string{v.frame.Columns[0], "count"}, Rows: rows}}
}

func evalCond(c *cond, f Frame) ([]bool, error) {
	out := make([]bool, len(f.Rows))
	for _, t := range c.Terms {
		mask, err := evalTerm(t, f)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = out[i] || mask[i]
		}
	}
	return out, nil
}

func evalTerm(t *term, f Frame) ([]bool, error) {
	out := make([]bool, len(f.Rows))
	for i := range out {
		out[i] = true
	}
	for _, fc := range t.Factors {
		var mask []bool
		var err error
		if fc.Group != nil {
			mask, err = evalCond(fc.Group, f)
		} else {
			mask, err = evalTest(fc.Test, f)
		}
		if err != nil {
			return nil, err
		}
		for i := range out {
			m := mask[i]
			if fc.Not {
				m = !m
			}
			out[i] = out[i] && m
		}
	}
	return out, nil
}

type predicate func(string) bool

func evalTest(t *test, f Frame) ([]bool, error) {
	path := t.Path
	var col string
	switch {
	case t.Root == Variable && t.Index != nil:
		col = *t.Index
	case t.Root == Variable && len(path) > 0 && path[0].Call == nil:
		col = path[0].Name
		path = path[1:]
	case t.Root == Variable:
		return nil, errorAt(t.Pos, "a condition must reference a column of %s", Variable)
	case t.Index != nil:
		return nil, errorAt(t.Pos, "unknown name %q", t.Root)
	default:
		col = t.Root
	}
	ci, err := columnIndex(t.Pos, f, col)
	if err != nil {
		return nil, err
	}

	var transforms []func(string) string
	var pred predicate
	for i := 0; i < len(path); i++ {
		a := path[i]
		if pred != nil {
			return nil, errorAt(a.Pos, "nothing may follow a test in a condition")
		}
		switch {
		case a.Name == "str" && a.Call == nil:
			i++
			if i >= len(path) || path[i].Call == nil {
				return nil, errorAt(a.Pos, ".str must be followed by a string method call")
			}
			m := path[i]
			switch m.Name {
			case "lower":
				transforms = append(transforms, strings.ToLower)
			case "upper":
				transforms = append(transforms, strings.ToUpper)
			case "strip":
				transforms = append(transforms, strings.TrimSpace)
			case "contains":
				pred, err = containsPredicate(m)
			case "startswith", "endswith":
				pred, err = affixPredicate(m)
			default:
				err = errorAt(m.Pos, "string method %s is not allowed", m.Name)
			}
			if err != nil {
				return nil, err
			}
		case a.Call != nil && a.Name == "isin":
			p, err := bind(a.Pos, a.Name, a.Call.Args, "values")
			if err != nil {
				return nil, err
			}
			set, err := p.set("values")
			if err != nil {
				return nil, err
			}
			pred = func(s string) bool { return set[s] }
		case a.Call != nil && (a.Name == "isna" || a.Name == "isnull"):
			pred = func(s string) bool { return s == "" }
		case a.Call != nil && (a.Name == "notna" || a.Name == "notnull"):
			pred = func(s string) bool { return s != "" }
		default:
			return nil, errorAt(a.Pos, "%s is not allowed in a condition", a.Name)
		}
	}

	switch {
	case pred != nil && t.Cmp != nil:
		return nil, errorAt(t.Pos, "a test on %q cannot also be compared", col)
	case pred == nil && t.Cmp == nil:
		return nil, errorAt(t.Pos, "condition on %q needs a comparison such as == 'value'", col)
	case pred == nil:
		pred, err = comparePredicate(t.Pos, t.Cmp)
		if err != nil {
			return nil, err
		}
	}

	mask := make([]bool, len(f.Rows))
	for r, row := range f.Rows {
		cell := row[ci]
		for _, tr := range transforms {
			cell = tr(cell)
		}
		mask[r] = pred(cell)
	}
	return mask, nil
}

func containsPredicate(m *accessor) (predicate, error) {
	p, err := bind(m.Pos, m.Name, m.Call.Args, "pat", "case", "regex", "na")
	if err != nil {
		return nil, err
	}
	pat, err := p.str("pat")
	if err != nil {
		return nil, err
	}
	caseSensitive, err := p.bool("case", true)
	if err != nil {
		return nil, err
	}
	useRegex, err := p.bool("regex", true)
	if err != nil {
		return nil, err
	}
	if !useRegex {
		pat = regexp.QuoteMeta(pat)
	}
	if !caseSensitive {
		pat = "(?i)" + pat
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, errorAt(m.Pos, "invalid pattern: %v", err)
	}
	return re.MatchString, nil
}

func affixPredicate(m *accessor) (predicate, error) {
	p, err := bind(m.Pos, m.Name, m.Call.Args, "pat")
	if err != nil {
		return nil, err
	}
	affix, err := p.str("pat")
	if err != nil {
		return nil, err
	}
	if m.Name == "startswith" {
		return func(s string) bool { return strings.HasPrefix(s, affix) }, nil
	}
	return func(s string) bool { return strings.HasSuffix(s, affix) }, nil
}

func comparePredicate(pos lexer.Position, c *comparison) (predicate, error) {
	v := c.Value
	switch {
	case v.None:
		switch c.Op {
		case "==":
			return func(s string) bool { return s == "" }, nil
		case "!=":
			return func(s string) bool { return s != "" }, nil
		}
		return nil, errorAt(pos, "None can only be compared with == or !=")
	case v.Str != nil:
		want := *v.Str
		return func(s string) bool { return holds(c.Op, strings.Compare(s, want)) }, nil
	case v.Num != nil:
		want := *v.Num
		return func(s string) bool {
			got, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return c.Op == "!="
			}
			switch {
			case got < want:
				return holds(c.Op, -1)
			case got > want:
				return holds(c.Op, 1)
			}
			return holds(c.Op, 0)
		}, nil
	}
	return nil, errorAt(pos, "unsupported literal in comparison")
}

func holds(op string, cmp int) bool {
	switch op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// params binds call arguments to parameter names.
type params struct {
	pos    lexer.Position
	method string
	values map[string]*value
}

func bind(pos lexer.Position, method string, args []*arg, names ...string) (params, error) {
	p := params{pos: pos, method: method, values: make(map[string]*value)}
	positional := 0
	for _, a := range args {
		name := ""
		if a.Key != nil {
			name = *a.Key
			if indexOf(names, name) < 0 {
				return p, errorAt(pos, "%s has no parameter %s", method, name)
			}
		} else {
			if positional >= len(names) {
				return p, errorAt(pos, "too many arguments to %s", method)
			}
			name = names[positional]
			positional++
		}
		if _, dup := p.values[name]; dup {
			return p, errorAt(pos, "%s got parameter %s twice", method, name)
		}
		p.values[name] = a.Value
	}
	return p, nil
}

func (p params) int(name string, def int) (int, error) {
	v, ok := p.values[name]
	if !ok {
		return def, nil
	}
	if v.Num == nil || *v.Num != float64(int(*v.Num)) {
		return 0, errorAt(p.pos, "%s: %s must be an integer", p.method, name)
	}
	return int(*v.Num), nil
}

func (p params) bool(name string, def bool) (bool, error) {
	v, ok := p.values[name]
	if !ok {
		return def, nil
	}
	if v.Bool == nil {
		return false, errorAt(p.pos, "%s: %s must be True or False", p.method, name)
	}
	return *v.Bool == "True", nil
}

func (p params) str(name string) (string, error) {
	v, ok := p.values[name]
	if !ok || v.Str == nil {
		return "", errorAt(p.pos, "%s: %s must be a string", p.method, name)
	}
	return *v.Str, nil
}

// strings accepts a single string or a list of strings. A missing or None value is nil.
func (p params) strings(name string) ([]string, error) {
	v, ok := p.values[name]
	if !ok || v.None {
		return nil, nil
	}
	if v.Str != nil {
		return []string{*v.Str}, nil
	}
	if v.Num != nil || v.Bool != nil {
		return nil, errorAt(p.pos, "%s: %s must be a column name or a list of column names", p.method, name)
	}
	out := make([]string, 0, len(v.List))
	for _, item := range v.List {
		if item.Str == nil {
			return nil, errorAt(p.pos, "%s: %s must contain only strings", p.method, name)
		}
		out = append(out, *item.Str)
	}
	return out, nil
}

// set reads a list literal as a membership set of cell texts.
func (p params) set(name string) (map[string]bool, error) {
	v, ok := p.values[name]
	if !ok || v.Str != nil || v.Num != nil || v.Bool != nil || v.None {
		return nil, errorAt(p.pos, "%s: %s must be a list", p.method, name)
	}
	out := make(map[string]bool, len(v.List))
	for _, item := range v.List {
		switch {
		case item.Str != nil:
			out[*item.Str] = true
		case item.Num != nil:
			out[strconv.FormatFloat(*item.Num, 'f', -1, 64)] = true
		default:
			return nil, errorAt(p.pos, "%s: %s must contain strings or numbers", p.method, name)
		}
	}
	return out, nil
}

func columnIndex(pos lexer.Position, f Frame, name string) (int, error) {
	if i := indexOf(f.Columns, name); i >= 0 {
		return i, nil
	}
	return -1, errorAt(pos, "unknown column %q, available: %s", name, strings.Join(f.Columns, ", "))
}

func hasColumn(f Frame, name string) bool {
	return indexOf(f.Columns, name) >= 0
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func column(f Frame, i int) []string {
	out := make([]string, len(f.Rows))
	for r, row := range f.Rows {
		out[r] = row[i]
	}
	return out
}

func pick(rows [][]string, i int) []string {
	out := make([]string, len(rows))
	for r, row := range rows {
		out[r] = row[i]
	}
	return out
}

func wrap(cells []string) [][]string {
	out := make([][]string, len(cells))
	for i, c := range cells {
		out[i] = []string{c}
	}
	return out
}

func nonEmpty(cells []string) int {
	n := 0
	for _, c := range cells {
		if c != "" {
			n++
		}
	}
	return n
}

func uniqueCount(cells []string) int {
	seen := make(map[string]bool)
	for _, c := range cells {
		if c != "" {
			seen[c] = true
		}
	}
	return len(seen)
}

func series(name string, cells []string) val {
	return val{kind: kindSeries, frame: Frame{Columns: []string{name}, Rows: wrap(cells)}}
}

func scalar(v any) val {
	return val{kind: kindScalar, scalar: v}
}
