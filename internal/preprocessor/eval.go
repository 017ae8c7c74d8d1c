package preprocessor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fwessels/glsl-pp/internal/lexer"
)

// Evaluate computes the value of an #if/#elif operand. Macros are expanded
// first, except for the operand of defined; identifiers left over are 0.
// Arithmetic is signed 64-bit and wraps.
func Evaluate(operand []lexer.Token, macros *MacroTable) (int64, error) {
	toks := lexer.Significant(macros.expandTokens(operand, map[string]bool{}))
	if len(toks) == 0 {
		return 0, errors.New("missing expression")
	}
	p := &exprParser{toks: toks, macros: macros}
	n, err := p.parseTernary()
	if err != nil {
		return 0, err
	}
	if p.pos < len(p.toks) {
		return 0, fmt.Errorf("unexpected %q in expression", p.toks[p.pos].Text)
	}
	return n.eval()
}

type node interface {
	eval() (int64, error)
}

type literal int64

type unary struct {
	op string
	x  node
}

type binary struct {
	op   string
	x, y node
}

type ternary struct {
	cond, then, els node
}

func (n literal) eval() (int64, error) { return int64(n), nil }

func (n unary) eval() (int64, error) {
	x, err := n.x.eval()
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "-":
		return -x, nil
	case "~":
		return ^x, nil
	case "!":
		return boolInt(x == 0), nil
	}
	return x, nil
}

func (n binary) eval() (int64, error) {
	x, err := n.x.eval()
	if err != nil {
		return 0, err
	}
	// && and || only evaluate the right operand when it decides the result.
	switch n.op {
	case "&&":
		if x == 0 {
			return 0, nil
		}
		y, err := n.y.eval()
		return boolInt(y != 0), err
	case "||":
		if x != 0 {
			return 1, nil
		}
		y, err := n.y.eval()
		return boolInt(y != 0), err
	}
	y, err := n.y.eval()
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "*":
		return x * y, nil
	case "/":
		if y == 0 {
			return 0, errors.New("division by zero")
		}
		return x / y, nil
	case "%":
		if y == 0 {
			return 0, errors.New("modulo by zero")
		}
		return x % y, nil
	case "+":
		return x + y, nil
	case "-":
		return x - y, nil
	case "<<":
		if y < 0 {
			return 0, errors.New("negative shift count")
		}
		return x << uint64(y), nil
	case ">>":
		if y < 0 {
			return 0, errors.New("negative shift count")
		}
		return x >> uint64(y), nil
	case "<":
		return boolInt(x < y), nil
	case "<=":
		return boolInt(x <= y), nil
	case ">":
		return boolInt(x > y), nil
	case ">=":
		return boolInt(x >= y), nil
	case "==":
		return boolInt(x == y), nil
	case "!=":
		return boolInt(x != y), nil
	case "&":
		return x & y, nil
	case "^":
		return x ^ y, nil
	case "|":
		return x | y, nil
	}
	return 0, fmt.Errorf("unknown operator %q", n.op)
}

func (n ternary) eval() (int64, error) {
	c, err := n.cond.eval()
	if err != nil {
		return 0, err
	}
	if c != 0 {
		return n.then.eval()
	}
	return n.els.eval()
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

type exprParser struct {
	toks   []lexer.Token
	pos    int
	macros *MacroTable
}

func (p *exprParser) peek() (lexer.Token, bool) {
	if p.pos >= len(p.toks) {
		return lexer.Token{}, false
	}
	return p.toks[p.pos], true
}

func (p *exprParser) peekIs(s string) bool {
	t, ok := p.peek()
	return ok && t.Is(s)
}

func (p *exprParser) expect(s string) error {
	t, ok := p.peek()
	if !ok {
		return fmt.Errorf("expected %q at end of expression", s)
	}
	if !t.Is(s) {
		return fmt.Errorf("expected %q, found %q", s, t.Text)
	}
	p.pos++
	return nil
}

func (p *exprParser) parseTernary() (node, error) {
	cond, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if !p.peekIs("?") {
		return cond, nil
	}
	p.pos++
	then, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if err := p.expect(":"); err != nil {
		return nil, err
	}
	els, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return ternary{cond: cond, then: then, els: els}, nil
}

func (p *exprParser) parseBinary(minPrec int) (node, error) {
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.Kind != lexer.Punct {
			return x, nil
		}
		prec, ok := binaryPrec[t.Text]
		if !ok || prec < minPrec {
			return x, nil
		}
		p.pos++
		y, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		x = binary{op: t.Text, x: x, y: y}
	}
}

func (p *exprParser) parseUnary() (node, error) {
	t, ok := p.peek()
	if ok && t.Kind == lexer.Punct {
		switch t.Text {
		case "+", "-", "!", "~":
			p.pos++
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return unary{op: t.Text, x: x}, nil
		}
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, errors.New("unexpected end of expression")
	}
	p.pos++
	switch t.Kind {
	case lexer.Number:
		v, err := parseInt(t.Text)
		if err != nil {
			return nil, err
		}
		return literal(v), nil
	case lexer.Ident:
		if t.Text == "defined" {
			return p.parseDefined()
		}
		return literal(0), nil
	case lexer.Punct:
		if t.Text == "(" {
			x, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return x, nil
		}
	}
	return nil, fmt.Errorf("unexpected %q in expression", t.Text)
}

func (p *exprParser) parseDefined() (node, error) {
	paren := p.peekIs("(")
	if paren {
		p.pos++
	}
	t, ok := p.peek()
	if !ok || t.Kind != lexer.Ident {
		return nil, errors.New("operator \"defined\" requires an identifier")
	}
	p.pos++
	if paren {
		if err := p.expect(")"); err != nil {
			return nil, err
		}
	}
	return literal(boolInt(p.macros.IsDefined(t.Text))), nil
}

// parseInt accepts decimal, octal and hexadecimal integer literals with an
// optional u/U suffix. Values above MaxInt64 wrap.
func parseInt(s string) (int64, error) {
	lit := strings.TrimSuffix(strings.TrimSuffix(s, "u"), "U")
	base := 10
	digits := lit
	switch {
	case strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X"):
		base, digits = 16, lit[2:]
	case len(lit) > 1 && lit[0] == '0':
		base, digits = 8, lit[1:]
	}
	if strings.ContainsAny(lit, ".") || (base != 16 && strings.ContainsAny(lit, "eE")) {
		return 0, fmt.Errorf("floating-point literal %q in expression", s)
	}
	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, fmt.Errorf("integer literal %q is too large", s)
		}
		return 0, fmt.Errorf("invalid integer literal %q", s)
	}
	return int64(v), nil
}
