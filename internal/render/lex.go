// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package render

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type segmentKind int

const (
	segText segmentKind = iota
	segOutput
	segBlock
)

// segment is one piece of template source: literal text, a {{ }} output,
// or a {% %} block tag. Comments are dropped during lexing.
type segment struct {
	kind segmentKind
	body string
	line int
}

var delimiters = [...]struct {
	open, close string
	kind        segmentKind
	comment     bool
}{
	{"{{", "}}", segOutput, false},
	{"{%", "%}", segBlock, false},
	{"{#", "#}", segText, true},
}

// lexSegments splits src into segments and applies {%- -%} whitespace control.
func lexSegments(name, src string) ([]segment, error) {
	var (
		out       []segment
		line      = 1
		trimNext  bool
		remaining = src
	)

	for len(remaining) > 0 {
		idx, d := nextDelimiter(remaining)
		if idx < 0 {
			out = appendText(out, remaining, line, trimNext)
			break
		}

		text := remaining[:idx]
		inner := remaining[idx+2:]
		trimPrev := strings.HasPrefix(inner, "-")
		if trimPrev {
			inner = inner[1:]
			text = strings.TrimRightFunc(text, unicode.IsSpace)
		}
		out = appendText(out, text, line, trimNext)
		line += strings.Count(remaining[:idx], "\n")

		end := strings.Index(inner, delimiters[d].close)
		if end < 0 {
			return nil, &SyntaxError{Name: name, Line: line, Msg: "unclosed " + delimiters[d].open}
		}
		body := inner[:end]
		trimNext = strings.HasSuffix(body, "-")
		if trimNext {
			body = body[:len(body)-1]
		}
		if !delimiters[d].comment {
			out = append(out, segment{kind: delimiters[d].kind, body: strings.TrimSpace(body), line: line})
		}

		consumed := len(remaining) - len(inner) + end + len(delimiters[d].close)
		line += strings.Count(remaining[idx:consumed], "\n")
		remaining = remaining[consumed:]
	}
	return out, nil
}

func nextDelimiter(s string) (int, int) {
	best, which := -1, -1
	for i, d := range delimiters {
		if j := strings.Index(s, d.open); j >= 0 && (best < 0 || j < best) {
			best, which = j, i
		}
	}
	return best, which
}

func appendText(out []segment, text string, line int, trimLeading bool) []segment {
	if trimLeading {
		text = strings.TrimLeftFunc(text, unicode.IsSpace)
	}
	if text == "" {
		return out
	}
	return append(out, segment{kind: segText, body: text, line: line})
}

// Expression tokens.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokEq
	tokNe
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func lexExpr(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case strings.HasPrefix(src[i:], "=="):
			toks = append(toks, token{tokEq, "=="})
			i += 2
		case strings.HasPrefix(src[i:], "!="):
			toks = append(toks, token{tokNe, "!="})
			i += 2
		case c == '\'' || c == '"':
			j := i + 1
			var b strings.Builder
			for j < len(src) && src[j] != c {
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}
				b.WriteByte(src[j])
				j++
			}
			if j >= len(src) {
				return nil, errUnterminatedString
			}
			toks = append(toks, token{tokString, b.String()})
			i = j + 1
		case c >= '0' && c <= '9', c == '-' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			j := i + 1
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j]})
			i = j
		case isIdentStart(src[i:]):
			j := i
			for j < len(src) {
				r, w := utf8.DecodeRuneInString(src[j:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				j += w
			}
			toks = append(toks, token{tokIdent, src[i:j]})
			i = j
		default:
			return nil, unexpectedChar(src[i:])
		}
	}
	return append(toks, token{kind: tokEOF}), nil
}

func isIdentStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || unicode.IsLetter(r)
}
