package odata

import (
	"strconv"
	"strings"

	"github.com/vyrodovalexey/ordcatalog/internal/catalog"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenString
	tokenNumber
	tokenOpen
	tokenClose
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits a $filter expression into tokens. String literals use single
// quotes; a doubled quote inside a literal stands for one quote.
func lex(s string) ([]token, error) {
	var tokens []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenOpen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenClose, text: ")", pos: i})
			i++
		case c == '\'':
			start := i
			var sb strings.Builder
			i++
			for {
				if i >= len(s) {
					return nil, badRequest("unterminated string literal at position %d", start)
				}
				if s[i] == '\'' {
					if i+1 < len(s) && s[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					break
				}
				sb.WriteByte(s[i])
				i++
			}
			tokens = append(tokens, token{kind: tokenString, text: sb.String(), pos: start})
		case c == '-' || isDigit(c):
			start := i
			i++
			for i < len(s) && (isDigit(s[i]) || s[i] == '.' || s[i] == 'e' || s[i] == 'E' || s[i] == '+' || s[i] == '-') {
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: s[start:i], pos: start})
		case isIdentStart(c):
			start := i
			for i < len(s) && isIdentPart(s[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: s[start:i], pos: start})
		default:
			return nil, badRequest("unexpected character %q at position %d", c, i)
		}
	}
	return append(tokens, token{kind: tokenEOF, pos: len(s)}), nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

//nolint:gochecknoglobals // immutable lookup table
var operators = map[string]catalog.Operator{
	"eq": catalog.OpEq,
	"ne": catalog.OpNe,
	"gt": catalog.OpGt,
	"ge": catalog.OpGe,
	"lt": catalog.OpLt,
	"le": catalog.OpLe,
}

// filterParser is a recursive descent parser for
//
//	expr       = and *( "or" and )
//	and        = primary *( "and" primary )
//	primary    = "(" expr ")" / comparison
//	comparison = property operator literal
type filterParser struct {
	tokens []token
	pos    int
}

// ParseFilter parses a $filter expression.
func ParseFilter(s string) (catalog.Filter, error) {
	if strings.TrimSpace(s) == "" {
		return nil, badRequest("$filter must not be empty")
	}
	tokens, err := lex(s)
	if err != nil {
		return nil, err
	}

	p := &filterParser{tokens: tokens}
	f, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokenEOF {
		return nil, badRequest("unexpected %q at position %d in $filter", t.text, t.pos)
	}
	return f, nil
}

func (p *filterParser) peek() token {
	return p.tokens[p.pos]
}

func (p *filterParser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *filterParser) keyword(word string) bool {
	if t := p.peek(); t.kind == tokenIdent && t.text == word {
		p.pos++
		return true
	}
	return false
}

func (p *filterParser) expr() (catalog.Filter, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = catalog.Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *filterParser) and() (catalog.Filter, error) {
	left, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.primary()
		if err != nil {
			return nil, err
		}
		left = catalog.And{Left: left, Right: right}
	}
	return left, nil
}

func (p *filterParser) primary() (catalog.Filter, error) {
	if p.peek().kind == tokenOpen {
		p.next()
		f, err := p.expr()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokenClose {
			return nil, badRequest("missing ')' at position %d in $filter", t.pos)
		}
		return f, nil
	}
	return p.comparison()
}

func (p *filterParser) comparison() (catalog.Filter, error) {
	prop := p.next()
	if prop.kind != tokenIdent {
		return nil, badRequest("expected property at position %d in $filter", prop.pos)
	}

	opTok := p.next()
	op, ok := operators[opTok.text]
	if opTok.kind != tokenIdent || !ok {
		return nil, badRequest("expected comparison operator at position %d in $filter", opTok.pos)
	}

	value, err := p.literal()
	if err != nil {
		return nil, err
	}
	return catalog.Comparison{Property: prop.text, Op: op, Value: value}, nil
}

func (p *filterParser) literal() (any, error) {
	t := p.next()
	switch t.kind {
	case tokenString:
		return t.text, nil
	case tokenNumber:
		if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, badRequest("invalid number %q at position %d in $filter", t.text, t.pos)
		}
		return f, nil
	case tokenIdent:
		switch t.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
	}
	return nil, badRequest("expected literal at position %d in $filter", t.pos)
}
