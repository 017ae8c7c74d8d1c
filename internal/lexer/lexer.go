// Package lexer splits GLSL source into the lexical units the preprocessor
// works on: directive lines, spans of program text between them, and the end
// of input. Directive operands are further broken into tokens by Tokenize.
package lexer

import (
	"strings"
)

type Kind int

const (
	Text Kind = iota
	Directive
	EOF
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Directive:
		return "directive"
	case EOF:
		return "eof"
	}
	return "unknown"
}

// Unit is a single lexical unit.
type Unit struct {
	Kind Kind
	// Line is the physical line the unit starts on (1-based).
	Line int
	// Lines is the number of physical lines a directive spans, including
	// continuation lines and lines swallowed by a block comment.
	Lines int
	// Keyword is the directive name without '#'; empty for the null directive.
	Keyword string
	// Args is the operand text of a directive with comments replaced by a
	// single space and line continuations joined.
	Args string
	// Raw is the original text of the unit, trailing newline included.
	Raw string
	// Blank reports a text unit holding nothing but whitespace and comments.
	Blank bool
}

// Split breaks src into units. The returned slice always ends with an EOF unit.
func Split(src string) []Unit {
	lr := newLineReader(src)

	var (
		units     []Unit
		text      strings.Builder
		textLine  int
		textBlank = true
		inComment bool
		continued bool
	)
	flush := func() {
		if text.Len() == 0 {
			return
		}
		units = append(units, Unit{Kind: Text, Line: textLine, Raw: text.String(), Blank: textBlank})
		text.Reset()
		textBlank = true
	}

	for {
		l, ok := lr.next()
		if !ok {
			break
		}
		if !inComment && !continued && isDirectiveLine(l.text) {
			flush()
			units = append(units, readDirective(l, lr))
			continue
		}
		if text.Len() == 0 {
			textLine = l.no
		}
		text.WriteString(l.raw())
		var content bool
		inComment, content = scanText(l.text, inComment)
		if content {
			textBlank = false
		}
		continued = !inComment && lineContinues(l.text)
	}
	flush()
	return append(units, Unit{Kind: EOF, Line: lr.no + 1})
}

type line struct {
	text  string
	hasNL bool
	no    int
}

func (l line) raw() string {
	if l.hasNL {
		return l.text + "\n"
	}
	return l.text
}

type lineReader struct {
	s  string
	no int
}

func newLineReader(s string) *lineReader {
	return &lineReader{s: s}
}

func (lr *lineReader) next() (line, bool) {
	if lr.s == "" {
		return line{}, false
	}
	lr.no++
	i := strings.IndexByte(lr.s, '\n')
	if i < 0 {
		l := line{text: lr.s, no: lr.no}
		lr.s = ""
		return l, true
	}
	l := line{text: lr.s[:i], hasNL: true, no: lr.no}
	lr.s = lr.s[i+1:]
	return l, true
}

func readDirective(first line, lr *lineReader) Unit {
	u := Unit{Kind: Directive, Line: first.no}

	var raw, logical strings.Builder
	l := first
	inComment := false
	for {
		raw.WriteString(l.raw())
		u.Lines++

		body := l.text
		cont := !inComment && lineContinues(body)
		if cont {
			body = stripLineContinuation(body)
		}
		var stripped string
		stripped, inComment = stripComments(body, inComment)
		logical.WriteString(stripped)
		if !cont && !inComment {
			break
		}
		next, ok := lr.next()
		if !ok {
			break
		}
		l = next
	}
	u.Raw = raw.String()

	s := trimSpace(logical.String())
	s = trimSpace(s[1:]) // drop '#'
	i := 0
	for i < len(s) && isIdentPart(s[i]) {
		i++
	}
	u.Keyword = s[:i]
	u.Args = trimSpace(s[i:])
	return u
}

func isDirectiveLine(s string) bool {
	i := firstNonSpaceIndex(s)
	return i >= 0 && s[i] == '#'
}

func firstNonSpaceIndex(s string) int {
	for i := 0; i < len(s); i++ {
		if !isSpace(s[i]) {
			return i
		}
	}
	return -1
}

func lineContinues(s string) bool {
	i := strings.LastIndexFunc(s, func(r rune) bool {
		return r != ' ' && r != '\t' && r != '\r'
	})
	return i >= 0 && s[i] == '\\'
}

func stripLineContinuation(s string) string {
	i := strings.LastIndexByte(s, '\\')
	if i < 0 {
		return s
	}
	return s[:i]
}

// stripComments replaces every comment in s with a single space. inComment
// reports whether s starts inside a block comment; the returned flag reports
// whether it ends inside one.
func stripComments(s string, inComment bool) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(s); {
		if inComment {
			end := strings.Index(s[i:], "*/")
			if end < 0 {
				return b.String(), true
			}
			i += end + 2
			inComment = false
			continue
		}
		if s[i] == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				b.WriteByte(' ')
				return b.String(), false
			case '*':
				b.WriteByte(' ')
				inComment = true
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String(), inComment
}

// scanText tracks block comment state across a line of program text and
// reports whether the line carries anything besides whitespace and comments.
func scanText(s string, inComment bool) (bool, bool) {
	stripped, inComment := stripComments(s, inComment)
	return inComment, firstNonSpaceIndex(stripped) >= 0
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r < 0x80 && isSpace(byte(r))
	})
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\f' || b == '\v'
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isIdentPart(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}
