package marker

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func lexMarker(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++
		case c == '"' || c == '\'':
			quote := c
			j := i + 1
			for j < len(input) && input[j] != quote {
				j++
			}
			if j >= len(input) {
				return nil, errors.Errorf("unterminated string in marker at offset %d", i)
			}
			tokens = append(tokens, token{tokString, input[i+1 : j]})
			i = j + 1
		case strings.ContainsRune("<>=!~", rune(c)):
			j := i
			for j < len(input) && strings.ContainsRune("<>=!~", rune(input[j])) {
				j++
			}
			op := input[i:j]
			switch op {
			case "==", "===", "!=", "<", "<=", ">", ">=", "~=":
				tokens = append(tokens, token{tokOp, op})
			default:
				return nil, errors.Errorf("invalid operator %q in marker", op)
			}
			i = j
		case isIdentByte(c):
			j := i
			for j < len(input) && isIdentByte(input[j]) {
				j++
			}
			tokens = append(tokens, token{tokIdent, input[i:j]})
			i = j
		default:
			return nil, errors.Errorf("unexpected character %q in marker", string(c))
		}
	}
	return append(tokens, token{tokEOF, ""}), nil
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '.' || c == '-'
}

type markerParser struct {
	tokens []token
	pos    int
}

func (p *markerParser) peek() token { return p.tokens[p.pos] }
func (p *markerParser) next() token { t := p.tokens[p.pos]; p.pos++; return t }

// parseOr parses a disjunction of conjunctions. Nested parenthesized
// markers keep their raw union structure; only the top level is
// simplified, once the whole expression is known.
func (p *markerParser) parseOr(topLevel bool) (Marker, error) {
	var groups [][]Marker
	var current []Marker
	for {
		m, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		current = append(current, m)

		t := p.peek()
		if t.kind == tokIdent && t.text == "and" {
			p.next()
			continue
		}
		if t.kind == tokIdent && t.text == "or" {
			p.next()
			groups = append(groups, current)
			current = nil
			continue
		}
		break
	}
	groups = append(groups, current)

	subs := make([]Marker, 0, len(groups))
	for _, g := range groups {
		if len(g) == 1 {
			subs = append(subs, g[0])
		} else {
			subs = append(subs, NewMultiMarker(g...))
		}
	}
	if !topLevel {
		return NewMarkerUnion(subs...), nil
	}
	return union(subs...), nil
}

func (p *markerParser) parseExpr() (Marker, error) {
	if p.peek().kind == tokLParen {
		p.next()
		m, err := p.parseOr(false)
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, errors.Errorf("expected ')' in marker, got %q", t.text)
		}
		return m, nil
	}
	return p.parseItem()
}

func (p *markerParser) parseItem() (Marker, error) {
	lhs := p.next()
	if lhs.kind != tokIdent && lhs.kind != tokString {
		return nil, errors.Errorf("expected marker variable, got %q", lhs.text)
	}

	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}

	rhs := p.next()
	if rhs.kind != tokIdent && rhs.kind != tokString {
		return nil, errors.Errorf("expected marker value, got %q", rhs.text)
	}

	switch {
	case lhs.kind == tokIdent && rhs.kind == tokString:
		return newSingle(lhs.text, op, rhs.text, false)
	case lhs.kind == tokString && rhs.kind == tokIdent:
		return newSingle(rhs.text, op, lhs.text, true)
	default:
		return nil, errors.Errorf(
			"marker comparison needs a variable and a quoted value: %q %s %q",
			lhs.text, op, rhs.text)
	}
}

func (p *markerParser) parseCompareOp() (string, error) {
	t := p.next()
	switch {
	case t.kind == tokOp:
		return t.text, nil
	case t.kind == tokIdent && t.text == "in":
		return "in", nil
	case t.kind == tokIdent && t.text == "not":
		if n := p.next(); n.kind != tokIdent || n.text != "in" {
			return "", errors.Errorf("expected 'in' after 'not', got %q", n.text)
		}
		return "not in", nil
	default:
		return "", errors.Errorf("expected comparison operator, got %q", t.text)
	}
}

var parseCache = struct {
	sync.Mutex
	m map[string]Marker
}{m: map[string]Marker{}}

// Parse parses a PEP 508 environment marker. The empty string and "*"
// parse to the any marker and "<empty>" to the empty marker, matching
// how those markers render.
func Parse(text string) (Marker, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "<empty>" {
		return EmptyMarker(), nil
	}
	if trimmed == "" || trimmed == "*" {
		return AnyMarker(), nil
	}

	parseCache.Lock()
	cached, ok := parseCache.m[trimmed]
	parseCache.Unlock()
	if ok {
		return cached, nil
	}

	tokens, err := lexMarker(trimmed)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse marker %q", text)
	}
	p := &markerParser{tokens: tokens}
	m, err := p.parseOr(true)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse marker %q", text)
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, errors.Errorf("unexpected trailing %q in marker %q", t.text, text)
	}

	parseCache.Lock()
	parseCache.m[trimmed] = m
	parseCache.Unlock()
	return m, nil
}

// MustParse is Parse for known-good literals.
func MustParse(text string) Marker {
	m, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return m
}
