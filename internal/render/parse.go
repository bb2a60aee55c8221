// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrSyntax is matched by every compile error (errors.Is).
var ErrSyntax = errors.New("template syntax error")

var errUnterminatedString = errors.New("unterminated string literal")

func unexpectedChar(rest string) error {
	r := []rune(rest)
	return fmt.Errorf("unexpected character %q", r[0])
}

// SyntaxError locates a compile failure.
type SyntaxError struct {
	Name string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template %s: line %d: %s", e.Name, e.Line, e.Msg)
}

func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// Nodes.

type node interface{ isNode() }

type textNode struct{ text string }

type outputNode struct{ expr expr }

type branch struct {
	cond expr
	body []node
}

type ifNode struct {
	branches []branch
	orElse   []node
}

func (textNode) isNode()   {}
func (outputNode) isNode() {}
func (*ifNode) isNode()    {}

// Expressions.

type expr interface{ isExpr() }

type identExpr struct{ name string }

type literalExpr struct{ value any }

type notExpr struct{ operand expr }

type binaryExpr struct {
	op          string
	left, right expr
}

func (identExpr) isExpr()   {}
func (literalExpr) isExpr() {}
func (notExpr) isExpr()     {}
func (binaryExpr) isExpr()  {}

// parser turns segments into a node tree; nested if blocks recurse through
// parseBody.
type parser struct {
	name string
	segs []segment
	pos  int
}

func parseTemplate(name string, segs []segment) ([]node, error) {
	p := &parser{name: name, segs: segs}
	nodes, term, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if term != nil {
		return nil, p.errorf(term.line, "unexpected {%% %s %%}", term.body)
	}
	return nodes, nil
}

// parseBody consumes segments until EOF or a branch terminator
// (elif/else/endif), which it returns without consuming further.
func (p *parser) parseBody() ([]node, *segment, error) {
	var nodes []node
	for p.pos < len(p.segs) {
		seg := p.segs[p.pos]
		p.pos++

		switch seg.kind {
		case segText:
			nodes = append(nodes, textNode{text: seg.body})
		case segOutput:
			e, err := p.parseExpr(seg)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, outputNode{expr: e})
		case segBlock:
			keyword, rest := splitKeyword(seg.body)
			switch keyword {
			case "if":
				n, err := p.parseIf(seg, rest)
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, n)
			case "elif", "else", "endif":
				return nodes, &seg, nil
			default:
				return nil, nil, p.errorf(seg.line, "unsupported tag %q", keyword)
			}
		}
	}
	return nodes, nil, nil
}

func (p *parser) parseIf(open segment, cond string) (*ifNode, error) {
	n := &ifNode{}
	condSeg := segment{kind: segBlock, body: cond, line: open.line}

	for {
		c, err := p.parseExpr(condSeg)
		if err != nil {
			return nil, err
		}
		body, term, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		n.branches = append(n.branches, branch{cond: c, body: body})
		if term == nil {
			return nil, p.errorf(open.line, "missing {%% endif %%}")
		}

		keyword, rest := splitKeyword(term.body)
		switch keyword {
		case "elif":
			condSeg = segment{kind: segBlock, body: rest, line: term.line}
			continue
		case "else":
			if rest != "" {
				return nil, p.errorf(term.line, "unexpected %q after else", rest)
			}
			elseBody, endTerm, err := p.parseBody()
			if err != nil {
				return nil, err
			}
			if endTerm == nil {
				return nil, p.errorf(open.line, "missing {%% endif %%}")
			}
			if kw, _ := splitKeyword(endTerm.body); kw != "endif" {
				return nil, p.errorf(endTerm.line, "unexpected {%% %s %%} after else", kw)
			}
			n.orElse = elseBody
			return n, nil
		default: // endif
			return n, nil
		}
	}
}

func splitKeyword(body string) (string, string) {
	i := strings.IndexFunc(body, unicode.IsSpace)
	if i < 0 {
		return body, ""
	}
	return body[:i], strings.TrimSpace(body[i:])
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &SyntaxError{Name: p.name, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Expression grammar, lowest precedence first:
//
//	or      := and ("or" and)*
//	and     := not ("and" not)*
//	not     := "not" not | compare
//	compare := primary (("==" | "!=") primary)?
//	primary := ident | string | number | true | false | none | "(" or ")"
type exprParser struct {
	toks []token
	pos  int
}

func (p *parser) parseExpr(seg segment) (expr, error) {
	if seg.body == "" {
		return nil, p.errorf(seg.line, "empty expression")
	}
	toks, err := lexExpr(seg.body)
	if err != nil {
		return nil, p.errorf(seg.line, "%v", err)
	}
	ep := &exprParser{toks: toks}
	e, err := ep.parseOr()
	if err != nil {
		return nil, p.errorf(seg.line, "%v in %q", err, seg.body)
	}
	if ep.peek().kind != tokEOF {
		return nil, p.errorf(seg.line, "unexpected %q in %q", ep.peek().text, seg.body)
	}
	return e, nil
}

func (ep *exprParser) peek() token { return ep.toks[ep.pos] }

func (ep *exprParser) next() token {
	t := ep.toks[ep.pos]
	if t.kind != tokEOF {
		ep.pos++
	}
	return t
}

func (ep *exprParser) isKeyword(kw string) bool {
	t := ep.peek()
	return t.kind == tokIdent && t.text == kw
}

func (ep *exprParser) parseOr() (expr, error) {
	left, err := ep.parseAnd()
	if err != nil {
		return nil, err
	}
	for ep.isKeyword("or") {
		ep.next()
		right, err := ep.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: "or", left: left, right: right}
	}
	return left, nil
}

func (ep *exprParser) parseAnd() (expr, error) {
	left, err := ep.parseNot()
	if err != nil {
		return nil, err
	}
	for ep.isKeyword("and") {
		ep.next()
		right, err := ep.parseNot()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: "and", left: left, right: right}
	}
	return left, nil
}

func (ep *exprParser) parseNot() (expr, error) {
	if ep.isKeyword("not") {
		ep.next()
		operand, err := ep.parseNot()
		if err != nil {
			return nil, err
		}
		return notExpr{operand: operand}, nil
	}
	return ep.parseCompare()
}

func (ep *exprParser) parseCompare() (expr, error) {
	left, err := ep.parsePrimary()
	if err != nil {
		return nil, err
	}
	switch ep.peek().kind {
	case tokEq, tokNe:
		op := ep.next().text
		right, err := ep.parsePrimary()
		if err != nil {
			return nil, err
		}
		return binaryExpr{op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (ep *exprParser) parsePrimary() (expr, error) {
	t := ep.next()
	switch t.kind {
	case tokString:
		return literalExpr{value: t.text}, nil
	case tokNumber:
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return literalExpr{value: i}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		return literalExpr{value: f}, nil
	case tokLParen:
		e, err := ep.parseOr()
		if err != nil {
			return nil, err
		}
		if ep.next().kind != tokRParen {
			return nil, errors.New("missing )")
		}
		return e, nil
	case tokIdent:
		switch t.text {
		case "true", "True":
			return literalExpr{value: true}, nil
		case "false", "False":
			return literalExpr{value: false}, nil
		case "none", "None":
			return literalExpr{value: nil}, nil
		case "and", "or", "not":
			return nil, fmt.Errorf("unexpected %q", t.text)
		}
		return identExpr{name: t.text}, nil
	case tokEOF:
		return nil, errors.New("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected %q", t.text)
	}
}
