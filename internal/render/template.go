// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

// Package render implements the small Jinja subset used by notification
// templates: {{ var }} output, if/elif/else/endif blocks, comments, and
// whitespace control. Conditions support ==, !=, and, or, not, parentheses,
// string and number literals.
//
// Templates are compiled once into a node tree and executed against a flat
// variable map. Execution never fails: a variable that is absent (or nil)
// is falsy and renders as the empty string.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Template is a compiled template. It is immutable and safe for concurrent use.
type Template struct {
	name  string
	nodes []node
}

// Compile parses src. Errors satisfy errors.Is(err, ErrSyntax).
func Compile(name, src string) (*Template, error) {
	segs, err := lexSegments(name, src)
	if err != nil {
		return nil, err
	}
	nodes, err := parseTemplate(name, segs)
	if err != nil {
		return nil, err
	}
	return &Template{name: name, nodes: nodes}, nil
}

// Name returns the name given to Compile.
func (t *Template) Name() string { return t.name }

// Execute renders the template with vars.
func (t *Template) Execute(vars map[string]any) string {
	var b strings.Builder
	execNodes(&b, t.nodes, vars)
	return b.String()
}

func execNodes(b *strings.Builder, nodes []node, vars map[string]any) {
	for _, n := range nodes {
		switch n := n.(type) {
		case textNode:
			b.WriteString(n.text)
		case outputNode:
			b.WriteString(Stringify(eval(n.expr, vars)))
		case *ifNode:
			taken := false
			for _, br := range n.branches {
				if Truthy(eval(br.cond, vars)) {
					execNodes(b, br.body, vars)
					taken = true
					break
				}
			}
			if !taken {
				execNodes(b, n.orElse, vars)
			}
		}
	}
}

func eval(e expr, vars map[string]any) any {
	switch e := e.(type) {
	case identExpr:
		return vars[e.name]
	case literalExpr:
		return e.value
	case notExpr:
		return !Truthy(eval(e.operand, vars))
	case binaryExpr:
		switch e.op {
		case "and":
			l := eval(e.left, vars)
			if !Truthy(l) {
				return l
			}
			return eval(e.right, vars)
		case "or":
			l := eval(e.left, vars)
			if Truthy(l) {
				return l
			}
			return eval(e.right, vars)
		case "==":
			return equal(eval(e.left, vars), eval(e.right, vars))
		case "!=":
			return !equal(eval(e.left, vars), eval(e.right, vars))
		}
	}
	return nil
}

// Truthy reports whether v counts as true in a condition: nil, false, zero
// numbers and empty strings, slices and maps are false.
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f != 0
		}
		return v != ""
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}
	switch a := a.(type) {
	case string:
		bs, ok := b.(string)
		return ok && a == bs
	case bool:
		bb, ok := b.(bool)
		return ok && a == bb
	}
	return Stringify(a) == Stringify(b)
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Stringify renders v the way the templates expect: nil is empty, floats
// keep a trailing ".0" when integral, booleans are True/False.
func Stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
