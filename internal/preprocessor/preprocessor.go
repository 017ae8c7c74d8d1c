// Package preprocessor resolves the preprocessor directives of a GLSL
// shader: object-like macros, conditional compilation, #version,
// #extension, #pragma, #line, #error and caller-resolved #include.
package preprocessor

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/fwessels/glsl-pp/internal/lexer"
)

// Options configures one Process call. It is only read, so a single value
// may be shared by concurrent calls.
type Options struct {
	// Defines seeds the macro table; values are replacement text.
	Defines map[string]string
	// Extensions lists the extensions the target supports. Each one is
	// predefined as a macro expanding to 1, and when the list is non-empty
	// #extension names outside of it are diagnosed.
	Extensions []string
	// DefaultVersion is the value of __VERSION__ without a #version
	// directive. Zero means 100.
	DefaultVersion int
	// PreserveLines replaces stripped lines with empty ones so output lines
	// match input lines.
	PreserveLines bool
	// Include returns the text of an #include'd file.
	Include func(name string) (string, error)
	Logger  *slog.Logger
}

const maxIncludeDepth = 32

type Preprocessor struct {
	opts   Options
	log    *slog.Logger
	macros *MacroTable
	cond   *condStack
	exp    *expander
	known  map[string]bool

	out   strings.Builder
	diags []Diagnostic

	// line is the physical line being processed; lineOffset maps it to the
	// reported line after #line.
	line       int
	lineOffset int
	source     int

	version    int
	profile    string
	extensions []Extension
	pragmas    []Pragma

	sawContent   bool
	halted       bool
	includeDepth int
}

func New(opts Options) *Preprocessor {
	p := &Preprocessor{
		opts:   opts,
		log:    opts.Logger,
		macros: NewMacroTable(),
		cond:   newCondStack(),
		known:  map[string]bool{},
	}
	if p.log == nil {
		p.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p.exp = newExpander(p.macros, func() { p.line++ })

	for _, name := range slices.Sorted(maps.Keys(opts.Defines)) {
		if err := ValidMacroName(name); err != nil {
			p.errorfAt(DirectiveSyntaxError, 0, "predefined %v", err)
			continue
		}
		p.macros.DefineString(name, opts.Defines[name], 0)
	}
	for _, ext := range opts.Extensions {
		p.known[ext] = true
		p.macros.DefineString(ext, "1", 0)
	}
	if p.defaultVersion() == 100 {
		p.macros.DefineString("GL_ES", "1", 0)
	}
	p.macros.defineBuiltin("__LINE__", func() []lexer.Token { return numberToken(p.reportedLine()) })
	p.macros.defineBuiltin("__FILE__", func() []lexer.Token { return numberToken(p.source) })
	p.macros.defineBuiltin("__VERSION__", func() []lexer.Token {
		if p.version != 0 {
			return numberToken(p.version)
		}
		return numberToken(p.defaultVersion())
	})
	return p
}

func (p *Preprocessor) defaultVersion() int {
	if p.opts.DefaultVersion == 0 {
		return 100
	}
	return p.opts.DefaultVersion
}

// Process preprocesses src. A Preprocessor is meant for a single source.
func (p *Preprocessor) Process(src string) Result {
	p.run(lexer.Split(src))
	if !p.halted {
		for _, f := range p.cond.Truncate(0) {
			p.errorfAt(UnterminatedConditionalError, f.line, "unterminated %s", f.kind)
		}
	}
	return Result{
		Output:      p.out.String(),
		Diagnostics: p.diags,
		Version:     p.version,
		Profile:     p.profile,
		Extensions:  p.extensions,
		Pragmas:     p.pragmas,
	}
}

func (p *Preprocessor) run(units []lexer.Unit) {
	for _, u := range units {
		if p.halted {
			return
		}
		switch u.Kind {
		case lexer.Text:
			p.handleText(u)
		case lexer.Directive:
			p.handleDirective(u)
		case lexer.EOF:
			return
		}
	}
}

func (p *Preprocessor) handleText(u lexer.Unit) {
	if !u.Blank {
		p.sawContent = true
	}
	if !p.cond.Active() {
		p.skipLines(u.Raw)
		return
	}
	p.line = u.Line
	p.out.WriteString(p.exp.expand(u.Raw))
}

// skipLines keeps line numbering intact for text that is not emitted.
func (p *Preprocessor) skipLines(raw string) {
	if p.opts.PreserveLines {
		p.out.WriteString(strings.Repeat("\n", strings.Count(raw, "\n")))
	}
}

func (p *Preprocessor) reportedLine() int {
	return p.line + p.lineOffset
}

func (p *Preprocessor) report(kind Kind, severity Severity, line int, msg string) {
	p.diags = append(p.diags, Diagnostic{Kind: kind, Message: msg, Line: line, Severity: severity})
	p.log.Debug("diagnostic", "kind", kind, "line", line, "message", msg)
}

func (p *Preprocessor) errorf(kind Kind, format string, args ...any) {
	p.report(kind, Error, p.reportedLine(), fmt.Sprintf(format, args...))
}

func (p *Preprocessor) warnf(kind Kind, format string, args ...any) {
	p.report(kind, Warning, p.reportedLine(), fmt.Sprintf(format, args...))
}

func (p *Preprocessor) errorfAt(kind Kind, line int, format string, args ...any) {
	p.report(kind, Error, line, fmt.Sprintf(format, args...))
}
