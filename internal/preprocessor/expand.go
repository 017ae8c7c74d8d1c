package preprocessor

import (
	"strings"

	"github.com/fwessels/glsl-pp/internal/lexer"
)

// expander rescans program text for macro references using a stack of input
// chunks with pushback. The bottom chunk is the source text; every other
// chunk is the replacement of one macro, whose name stays painted until the
// chunk has been consumed.
type expander struct {
	macros  *MacroTable
	stack   []inputChunk
	painted map[string]int

	// newline is called for every line break read from the source chunk.
	newline func()
	// crossed is set when the last read entered or left a macro chunk.
	crossed bool
}

type inputChunk struct {
	s     string
	i     int
	macro string
}

func newExpander(macros *MacroTable, newline func()) *expander {
	return &expander{macros: macros, newline: newline}
}

// expand returns text with every macro reference replaced.
func (e *expander) expand(text string) string {
	e.stack = []inputChunk{{s: text}}
	e.painted = map[string]int{}
	defer func() { e.stack, e.painted = nil, nil }()

	var b strings.Builder
	b.Grow(len(text))
	for {
		e.crossed = false
		ch, ok := e.next()
		if !ok {
			break
		}
		if e.crossed && b.Len() > 0 && pastes(b.String()[b.Len()-1], ch) {
			b.WriteByte(' ')
		}
		switch {
		case ch == '"' || ch == '\'':
			b.WriteByte(ch)
			e.copyString(&b, ch)
		case ch == '/' && e.peekIs('/'):
			b.WriteByte(ch)
			b.WriteByte(e.mustNext())
			e.copyLineComment(&b)
		case ch == '/' && e.peekIs('*'):
			b.WriteByte(ch)
			b.WriteByte(e.mustNext())
			e.copyBlockComment(&b)
		case isDigit(ch) || (ch == '.' && e.peekDigit()):
			b.WriteByte(ch)
			b.WriteString(e.readNumber(ch))
		case isIdentStart(ch):
			name := string(ch) + e.readIdent()
			m, ok := e.macros.Lookup(name)
			if !ok || e.painted[name] > 0 {
				b.WriteString(name)
				continue
			}
			e.push(name, lexer.Join(m.expansion()))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func (e *expander) push(name, s string) {
	e.stack = append(e.stack, inputChunk{s: s, macro: name})
	e.painted[name]++
}

func (e *expander) next() (byte, bool) {
	for len(e.stack) > 0 {
		top := &e.stack[len(e.stack)-1]
		if top.i >= len(top.s) {
			if top.macro != "" {
				e.painted[top.macro]--
				e.crossed = true
			}
			e.stack = e.stack[:len(e.stack)-1]
			continue
		}
		if top.i == 0 && top.macro != "" {
			e.crossed = true
		}
		ch := top.s[top.i]
		top.i++
		if ch == '\n' && len(e.stack) == 1 && e.newline != nil {
			e.newline()
		}
		return ch, true
	}
	return 0, false
}

func (e *expander) mustNext() byte {
	ch, _ := e.next()
	return ch
}

func (e *expander) peekIs(b byte) bool {
	ch, ok := e.peek()
	return ok && ch == b
}

func (e *expander) peekDigit() bool {
	ch, ok := e.peek()
	return ok && isDigit(ch)
}

func (e *expander) peek() (byte, bool) {
	for i := len(e.stack) - 1; i >= 0; i-- {
		chunk := e.stack[i]
		if chunk.i < len(chunk.s) {
			return chunk.s[chunk.i], true
		}
	}
	return 0, false
}

// readIdent reads the rest of an identifier. Identifiers never span chunks.
func (e *expander) readIdent() string {
	top := &e.stack[len(e.stack)-1]
	start := top.i
	for top.i < len(top.s) && isIdentPart(top.s[top.i]) {
		top.i++
	}
	return top.s[start:top.i]
}

// readNumber reads the rest of a pp-number so suffixes and hex digits are
// never mistaken for identifiers.
func (e *expander) readNumber(first byte) string {
	top := &e.stack[len(e.stack)-1]
	start := top.i
	prev := first
	for top.i < len(top.s) {
		ch := top.s[top.i]
		switch {
		case isIdentPart(ch) || ch == '.':
		case (ch == '+' || ch == '-') && (prev == 'e' || prev == 'E'):
		default:
			return top.s[start:top.i]
		}
		prev = ch
		top.i++
	}
	return top.s[start:top.i]
}

func (e *expander) copyString(b *strings.Builder, quote byte) {
	for {
		ch, ok := e.next()
		if !ok {
			return
		}
		b.WriteByte(ch)
		if ch == '\\' {
			if next, ok := e.next(); ok {
				b.WriteByte(next)
			}
			continue
		}
		if ch == quote || ch == '\n' {
			return
		}
	}
}

func (e *expander) copyLineComment(b *strings.Builder) {
	for {
		ch, ok := e.next()
		if !ok {
			return
		}
		b.WriteByte(ch)
		if ch == '\n' {
			return
		}
	}
}

func (e *expander) copyBlockComment(b *strings.Builder) {
	for {
		ch, ok := e.next()
		if !ok {
			return
		}
		b.WriteByte(ch)
		if ch == '*' && e.peekIs('/') {
			b.WriteByte(e.mustNext())
			return
		}
	}
}

// expandTokens expands the macros in a directive operand. The operand of
// defined is copied untouched. painted holds the macros whose replacement is
// being rescanned.
func (t *MacroTable) expandTokens(toks []lexer.Token, painted map[string]bool) []lexer.Token {
	out := make([]lexer.Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.Kind != lexer.Ident {
			out = append(out, tok)
			continue
		}
		if tok.Text == "defined" {
			end := definedOperandEnd(toks, i+1)
			out = append(out, toks[i:end]...)
			i = end - 1
			continue
		}
		m, ok := t.Lookup(tok.Text)
		if !ok || painted[tok.Text] {
			out = append(out, tok)
			continue
		}
		painted[tok.Text] = true
		out = append(out, t.expandTokens(m.expansion(), painted)...)
		delete(painted, tok.Text)
	}
	return out
}

// definedOperandEnd returns the index just past the operand of a defined
// operator starting at i: either IDENT or ( IDENT ), whitespace allowed.
// Malformed operands end early and are reported by the evaluator.
func definedOperandEnd(toks []lexer.Token, i int) int {
	skip := func(j int) int {
		for j < len(toks) && toks[j].Kind == lexer.Space {
			j++
		}
		return j
	}
	j := skip(i)
	if j >= len(toks) {
		return j
	}
	if toks[j].Kind == lexer.Ident {
		return j + 1
	}
	if !toks[j].Is("(") {
		return i
	}
	j = skip(j + 1)
	if j < len(toks) && toks[j].Kind == lexer.Ident {
		j = skip(j + 1)
		if j < len(toks) && toks[j].Is(")") {
			return j + 1
		}
	}
	return j
}

// pastes reports whether a and b written next to each other would read as
// a single token where the source had two.
func pastes(a, b byte) bool {
	word := func(c byte) bool { return isIdentPart(c) || c == '.' }
	if word(a) && word(b) {
		return true
	}
	return punctPairs[string([]byte{a, b})]
}

var punctPairs = map[string]bool{
	"++": true, "--": true, "<<": true, ">>": true, "&&": true, "||": true, "^^": true,
	"+=": true, "-=": true, "*=": true, "/=": true, "%=": true, "&=": true, "|=": true, "^=": true,
	"<=": true, ">=": true, "==": true, "!=": true,
	"//": true, "/*": true, "*/": true,
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}
