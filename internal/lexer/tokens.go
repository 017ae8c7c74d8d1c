package lexer

import (
	"fmt"
	"strings"

	plexer "github.com/alecthomas/participle/v2/lexer"
)

type TokenKind int

const (
	Space TokenKind = iota
	Ident
	Number
	Punct
	String
	Other
)

func (k TokenKind) String() string {
	switch k {
	case Space:
		return "space"
	case Ident:
		return "ident"
	case Number:
		return "number"
	case Punct:
		return "punct"
	case String:
		return "string"
	}
	return "other"
}

// Token is a preprocessing token of a directive operand or macro body.
type Token struct {
	Kind TokenKind
	Text string
}

func (t Token) String() string { return t.Text }

// Is reports whether t is the punctuator or identifier s.
func (t Token) Is(s string) bool {
	return (t.Kind == Punct || t.Kind == Ident) && t.Text == s
}

// Rules are tried in order and the first match wins, so longer punctuators
// precede their prefixes.
var definition = plexer.MustSimple([]plexer.SimpleRule{
	{Name: "Space", Pattern: `[ \t\r\n\f\v]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Number", Pattern: `(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?[A-Za-z0-9_]*`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Punct", Pattern: `<<|>>|<=|>=|==|!=|&&|\|\||\+\+|--|##|[-+*/%<>=!~&|^?:;,.(){}\[\]#]`},
	{Name: "Other", Pattern: `.`},
})

var kinds = func() map[plexer.TokenType]TokenKind {
	m := map[plexer.TokenType]TokenKind{}
	for name, kind := range map[string]TokenKind{
		"Space":  Space,
		"Ident":  Ident,
		"Number": Number,
		"String": String,
		"Punct":  Punct,
		"Other":  Other,
	} {
		m[definition.Symbols()[name]] = kind
	}
	return m
}()

// Tokenize breaks a single logical line into tokens. Runs of whitespace
// become one Space token.
func Tokenize(s string) ([]Token, error) {
	lex, err := definition.LexString("", s)
	if err != nil {
		return nil, err
	}
	raw, err := plexer.ConsumeAll(lex)
	if err != nil {
		return nil, fmt.Errorf("tokenize %q: %w", s, err)
	}
	toks := make([]Token, 0, len(raw))
	for _, t := range raw {
		if t.EOF() {
			break
		}
		kind, ok := kinds[t.Type]
		if !ok {
			kind = Other
		}
		toks = append(toks, Token{Kind: kind, Text: t.Value})
	}
	return toks, nil
}

// MustTokenize is like Tokenize but panics on error. Every input is accepted
// by the catch-all rule, so it only fails on a broken lexer definition.
func MustTokenize(s string) []Token {
	toks, err := Tokenize(s)
	if err != nil {
		panic(err)
	}
	return toks
}

// Trim drops leading and trailing Space tokens.
func Trim(toks []Token) []Token {
	for len(toks) > 0 && toks[0].Kind == Space {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].Kind == Space {
		toks = toks[:len(toks)-1]
	}
	return toks
}

// Significant returns toks without Space tokens.
func Significant(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind != Space {
			out = append(out, t)
		}
	}
	return out
}

// Join concatenates the token texts.
func Join(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Equal compares two token sequences the way identical macro redefinitions
// are compared: same tokens, and whitespace present in the same places.
func Equal(a, b []Token) bool {
	a, b = Trim(a), Trim(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind {
			return false
		}
		if a[i].Kind != Space && a[i].Text != b[i].Text {
			return false
		}
	}
	return true
}
