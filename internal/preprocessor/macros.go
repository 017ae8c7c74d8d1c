package preprocessor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fwessels/glsl-pp/internal/lexer"
)

// Macro is an object-like macro.
type Macro struct {
	Name        string
	Replacement []lexer.Token
	Line        int

	// builtin computes the replacement at expansion time (__LINE__ and friends).
	builtin func() []lexer.Token
}

func (m *Macro) expansion() []lexer.Token {
	if m.builtin != nil {
		return m.builtin()
	}
	return m.Replacement
}

// MacroTable maps macro names to their live definition.
type MacroTable struct {
	macros map[string]*Macro
}

func NewMacroTable() *MacroTable {
	return &MacroTable{macros: map[string]*Macro{}}
}

// Define inserts or overwrites name. It returns the previous definition when
// that one had a different replacement list.
func (t *MacroTable) Define(name string, replacement []lexer.Token, line int) (prev *Macro, changed bool) {
	replacement = lexer.Trim(replacement)
	old, ok := t.macros[name]
	t.macros[name] = &Macro{Name: name, Replacement: replacement, Line: line}
	if !ok || old.builtin != nil {
		return nil, false
	}
	if lexer.Equal(old.Replacement, replacement) {
		return old, false
	}
	return old, true
}

// DefineString tokenizes value and defines name with it.
func (t *MacroTable) DefineString(name, value string, line int) {
	t.Define(name, lexer.MustTokenize(value), line)
}

func (t *MacroTable) defineBuiltin(name string, fn func() []lexer.Token) {
	t.macros[name] = &Macro{Name: name, builtin: fn}
}

// Undef removes name. Unknown names are ignored.
func (t *MacroTable) Undef(name string) {
	delete(t.macros, name)
}

func (t *MacroTable) Lookup(name string) (*Macro, bool) {
	m, ok := t.macros[name]
	return m, ok
}

func (t *MacroTable) IsDefined(name string) bool {
	_, ok := t.macros[name]
	return ok
}

func (t *MacroTable) isBuiltin(name string) bool {
	m, ok := t.macros[name]
	return ok && m.builtin != nil
}

func numberToken(n int) []lexer.Token {
	return []lexer.Token{{Kind: lexer.Number, Text: strconv.Itoa(n)}}
}

// reservedName classifies names GLSL keeps for itself: a GL_ prefix is an
// error, a double underscore anywhere only a warning.
func reservedName(name string) (reserved, warn bool) {
	if strings.HasPrefix(name, "GL_") {
		return true, false
	}
	return false, strings.Contains(name, "__")
}

var builtinNames = map[string]bool{
	"__LINE__":    true,
	"__FILE__":    true,
	"__VERSION__": true,
	"defined":     true,
}

// ValidMacroName reports why name cannot be predefined from outside the
// source, or nil. It applies the rules #define enforces.
func ValidMacroName(name string) error {
	if name == "" {
		return errors.New("empty macro name")
	}
	if !isIdentStart(name[0]) {
		return fmt.Errorf("macro name %q is not an identifier", name)
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) {
			return fmt.Errorf("macro name %q is not an identifier", name)
		}
	}
	if builtinNames[name] {
		return fmt.Errorf("macro name %q is built in", name)
	}
	if reserved, _ := reservedName(name); reserved {
		return fmt.Errorf("macro name %q is reserved", name)
	}
	return nil
}
