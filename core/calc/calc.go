// Package calc evaluates plain arithmetic expressions.
//
// Grammar:
//
//	expr   = term { ("+" | "-") term }
//	term   = unary { ("*" | "/" | "%") unary }
//	unary  = ("-" | "+") unary | power
//	power  = atom [ "^" unary ]
//	atom   = number | "(" expr ")"
//
// The symbols × ÷ and a decimal comma are accepted as well. Nothing but
// numbers and operators is ever interpreted.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrSyntax is returned for malformed expressions.
var ErrSyntax = errors.New("calc: syntax error")

// ErrDivisionByZero is returned for x/0 and x%0.
var ErrDivisionByZero = errors.New("calc: division by zero")

// ErrOverflow is returned when the result is not a finite number.
var ErrOverflow = errors.New("calc: result out of range")

const (
	maxInputLen = 256
	maxDepth    = 32
)

// Eval parses and evaluates expr.
func Eval(expr string) (float64, error) {
	if len([]rune(expr)) > maxInputLen {
		return 0, fmt.Errorf("%w: expression too long", ErrSyntax)
	}
	p := &parser{src: []rune(normalize(expr))}
	p.skipSpace()
	if p.eof() {
		return 0, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	v, err := p.expr(0)
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if !p.eof() {
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.src[p.pos], p.pos+1)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrOverflow
	}
	return v, nil
}

// Format renders v without trailing zeros.
func Format(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func normalize(s string) string {
	return strings.NewReplacer("×", "*", "÷", "/", ",", ".").Replace(s)
}

type parser struct {
	src []rune
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) expr(depth int) (float64, error) {
	if depth > maxDepth {
		return 0, fmt.Errorf("%w: nesting too deep", ErrSyntax)
	}
	left, err := p.term(depth)
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.term(depth)
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.term(depth)
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) term(depth int) (float64, error) {
	left, err := p.unary(depth)
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		op := p.peek()
		if op != '*' && op != '/' && op != '%' {
			return left, nil
		}
		p.pos++
		right, err := p.unary(depth)
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			left *= right
		case '/':
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left /= right
		case '%':
			if right == 0 {
				return 0, ErrDivisionByZero
			}
			left = math.Mod(left, right)
		}
	}
}

func (p *parser) unary(depth int) (float64, error) {
	if depth > maxDepth {
		return 0, fmt.Errorf("%w: nesting too deep", ErrSyntax)
	}
	p.skipSpace()
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.unary(depth + 1)
		return -v, err
	case '+':
		p.pos++
		return p.unary(depth + 1)
	}
	return p.power(depth)
}

func (p *parser) power(depth int) (float64, error) {
	base, err := p.atom(depth)
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.peek() != '^' {
		return base, nil
	}
	p.pos++
	exp, err := p.unary(depth + 1)
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) atom(depth int) (float64, error) {
	p.skipSpace()
	if p.eof() {
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	}
	if p.peek() == '(' {
		p.pos++
		v, err := p.expr(depth + 1)
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		p.pos++
		return v, nil
	}
	return p.number()
}

func (p *parser) number() (float64, error) {
	start := p.pos
	dots := 0
	for !p.eof() {
		r := p.src[p.pos]
		if r == '.' {
			dots++
		} else if r < '0' || r > '9' {
			break
		}
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.src[start], start+1)
	}
	lit := string(p.src[start:p.pos])
	if dots > 1 || lit == "." {
		return 0, fmt.Errorf("%w: bad number %q", ErrSyntax, lit)
	}
	v, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number %q", ErrSyntax, lit)
	}
	return v, nil
}
