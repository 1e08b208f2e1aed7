// Package expression implements the closed arithmetic grammar used by
// computed metrics: numbers, metric-key identifiers, + - * / ( ), unary
// minus, and NULLIF(a, b). Evaluation never executes host code; the grammar
// is fixed and parsed by hand.
package expression

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is a parsed expression tree node.
type Node interface {
	// SQL renders the node as a SQL fragment, passing every identifier
	// through wrapIdent.
	SQL(wrapIdent func(string) string) string

	eval(row map[string]interface{}) (float64, bool)
}

// Number is a numeric literal.
type Number struct {
	Value float64
}

// Ident references another metric's result value by key.
type Ident struct {
	Name string
}

// Unary is a negation.
type Unary struct {
	X Node
}

// Binary applies one of + - * / to two operands. Division is always
// floating point.
type Binary struct {
	Op string
	L  Node
	R  Node
}

// NullIf yields null when both arguments are equal, else the first.
type NullIf struct {
	A Node
	B Node
}

func (n Number) SQL(func(string) string) string {
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

func (n Ident) SQL(wrapIdent func(string) string) string {
	return wrapIdent(n.Name)
}

func (n Unary) SQL(wrapIdent func(string) string) string {
	return "-" + n.X.SQL(wrapIdent)
}

func (n Binary) SQL(wrapIdent func(string) string) string {
	return "(" + n.L.SQL(wrapIdent) + " " + n.Op + " " + n.R.SQL(wrapIdent) + ")"
}

func (n NullIf) SQL(wrapIdent func(string) string) string {
	return "NULLIF(" + n.A.SQL(wrapIdent) + ", " + n.B.SQL(wrapIdent) + ")"
}

func (n Number) eval(map[string]interface{}) (float64, bool) {
	return n.Value, true
}

func (n Ident) eval(row map[string]interface{}) (float64, bool) {
	v, ok := row[n.Name]
	if !ok || v == nil {
		return 0, false
	}
	f, ok := toFloat(v)
	return f, ok
}

func (n Unary) eval(row map[string]interface{}) (float64, bool) {
	v, ok := n.X.eval(row)
	if !ok {
		return 0, false
	}
	return -v, true
}

func (n Binary) eval(row map[string]interface{}) (float64, bool) {
	l, ok := n.L.eval(row)
	if !ok {
		return 0, false
	}
	r, ok := n.R.eval(row)
	if !ok {
		return 0, false
	}
	switch n.Op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, false
		}
		return l / r, true
	}
	return 0, false
}

func (n NullIf) eval(row map[string]interface{}) (float64, bool) {
	a, ok := n.A.eval(row)
	if !ok {
		return 0, false
	}
	b, ok := n.B.eval(row)
	if !ok {
		return 0, false
	}
	if a == b {
		return 0, false
	}
	return a, true
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Evaluate computes the expression over one result row. The second return is
// false when the result is null: a referenced key missing from the row, a
// null operand, division by zero, or NULLIF equality all degrade the whole
// expression to null rather than raising.
func Evaluate(n Node, row map[string]interface{}) (float64, bool) {
	return n.eval(row)
}

// Identifiers returns the distinct metric keys the expression references, in
// first-appearance order.
func Identifiers(n Node) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(Node)
	walk = func(node Node) {
		switch x := node.(type) {
		case Ident:
			if !seen[x.Name] {
				seen[x.Name] = true
				out = append(out, x.Name)
			}
		case Unary:
			walk(x.X)
		case Binary:
			walk(x.L)
			walk(x.R)
		case NullIf:
			walk(x.A)
			walk(x.B)
		}
	}
	walk(n)
	return out
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokSymbol
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input  string
	pos    int
	tokens []token
}

func lex(input string) ([]token, error) {
	l := &lexer{input: input}
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			l.pos++
		case ch >= '0' && ch <= '9':
			l.lexNumber()
		case ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z'):
			l.lexIdent()
		case strings.ContainsRune("+-*/(),", rune(ch)):
			l.tokens = append(l.tokens, token{kind: tokSymbol, text: string(ch), pos: l.pos})
			l.pos++
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", ch, l.pos)
		}
	}
	l.tokens = append(l.tokens, token{kind: tokEOF, pos: l.pos})
	return l.tokens, nil
}

func (l *lexer) lexNumber() {
	start := l.pos
	sawDot := false
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch >= '0' && ch <= '9' {
			l.pos++
			continue
		}
		if ch == '.' && !sawDot {
			sawDot = true
			l.pos++
			continue
		}
		break
	}
	l.tokens = append(l.tokens, token{kind: tokNumber, text: l.input[start:l.pos], pos: start})
}

func (l *lexer) lexIdent() {
	start := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			l.pos++
			continue
		}
		break
	}
	l.tokens = append(l.tokens, token{kind: tokIdent, text: l.input[start:l.pos], pos: start})
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expectSymbol(sym string) error {
	t := p.next()
	if t.kind != tokSymbol || t.text != sym {
		return fmt.Errorf("expected %q at position %d", sym, t.pos)
	}
	return nil
}

// Parse parses an expression over the closed grammar.
func Parse(input string) (Node, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q at position %d", t.text, t.pos)
	}
	return node, nil
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokSymbol || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: t.text, L: left, R: right}
	}
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokSymbol || (t.text != "*" && t.text != "/") {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: t.text, L: left, R: right}
	}
}

func (p *parser) parseUnary() (Node, error) {
	t := p.peek()
	if t.kind == tokSymbol && t.text == "-" {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Unary{X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.next()
	switch {
	case t.kind == tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", t.text, t.pos)
		}
		return Number{Value: v}, nil
	case t.kind == tokIdent && strings.EqualFold(t.text, "nullif") && p.peek().kind == tokSymbol && p.peek().text == "(":
		p.next()
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(","); err != nil {
			return nil, err
		}
		b, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return NullIf{A: a, B: b}, nil
	case t.kind == tokIdent:
		return Ident{Name: t.text}, nil
	case t.kind == tokSymbol && t.text == "(":
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return nil, fmt.Errorf("unexpected token %q at position %d", t.text, t.pos)
}
