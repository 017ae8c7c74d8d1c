package preprocessor

import (
	"strconv"
	"strings"

	"github.com/fwessels/glsl-pp/internal/lexer"
)

type directiveKind int

const (
	dirUnknown directiveKind = iota
	dirNull
	dirDefine
	dirUndef
	dirIf
	dirIfdef
	dirIfndef
	dirElif
	dirElse
	dirEndif
	dirVersion
	dirExtension
	dirPragma
	dirLine
	dirError
	dirInclude
)

var directiveKinds = map[string]directiveKind{
	"":          dirNull,
	"define":    dirDefine,
	"undef":     dirUndef,
	"if":        dirIf,
	"ifdef":     dirIfdef,
	"ifndef":    dirIfndef,
	"elif":      dirElif,
	"else":      dirElse,
	"endif":     dirEndif,
	"version":   dirVersion,
	"extension": dirExtension,
	"pragma":    dirPragma,
	"line":      dirLine,
	"error":     dirError,
	"include":   dirInclude,
}

// conditional directives are interpreted in dead code too, to keep nesting.
func (k directiveKind) conditional() bool {
	switch k {
	case dirIf, dirIfdef, dirIfndef, dirElif, dirElse, dirEndif:
		return true
	}
	return false
}

var glslVersions = map[int]bool{
	100: true, 110: true, 120: true, 130: true, 140: true, 150: true,
	300: true, 310: true, 320: true, 330: true,
	400: true, 410: true, 420: true, 430: true, 440: true, 450: true, 460: true,
}

var extensionBehaviors = map[string]bool{
	"require": true,
	"enable":  true,
	"warn":    true,
	"disable": true,
}

func (p *Preprocessor) handleDirective(u lexer.Unit) {
	p.line = u.Line
	kind := directiveKinds[u.Keyword] // dirUnknown when missing
	// Set after the handler ran, so only the first directive may be #version.
	defer func() { p.sawContent = true }()

	if !kind.conditional() && !p.cond.Active() {
		p.skipLines(u.Raw)
		return
	}
	p.log.Debug("directive", "keyword", u.Keyword, "line", p.reportedLine(), "args", u.Args)

	toks, err := lexer.Tokenize(u.Args)
	if err != nil {
		p.errorf(DirectiveSyntaxError, "#%s: %v", u.Keyword, err)
		p.skipLines(u.Raw)
		return
	}

	emit := false
	switch kind {
	case dirNull:
	case dirDefine:
		p.handleDefine(toks)
	case dirUndef:
		p.handleUndef(toks)
	case dirIf:
		p.cond.Push(frameIf, p.reportedLine(), func() bool {
			return p.evalCondition("#if", toks)
		})
	case dirIfdef:
		p.cond.Push(frameIfdef, p.reportedLine(), func() bool {
			defined, ok := p.definedOperand("#ifdef", toks)
			return ok && defined
		})
	case dirIfndef:
		p.cond.Push(frameIfndef, p.reportedLine(), func() bool {
			defined, ok := p.definedOperand("#ifndef", toks)
			return ok && !defined
		})
	case dirElif:
		if err := p.cond.Elif(func() bool { return p.evalCondition("#elif", toks) }); err != nil {
			p.errorf(UnmatchedElseOrEndifError, "%v", err)
		}
	case dirElse:
		if err := p.cond.Else(); err != nil {
			p.errorf(UnmatchedElseOrEndifError, "%v", err)
		}
		p.checkExtra("#else", toks)
	case dirEndif:
		if err := p.cond.Pop(); err != nil {
			p.errorf(UnmatchedElseOrEndifError, "%v", err)
		}
		p.checkExtra("#endif", toks)
	case dirVersion:
		emit = p.handleVersion(toks)
	case dirExtension:
		emit = p.handleExtension(toks)
	case dirPragma:
		p.pragmas = append(p.pragmas, Pragma{Line: p.reportedLine(), Text: u.Args})
	case dirLine:
		p.handleLine(u, toks)
	case dirError:
		msg := u.Args
		if msg == "" {
			msg = "#error"
		}
		p.errorf(UserError, "%s", msg)
		p.halted = true
		return
	case dirInclude:
		if !p.handleInclude(u.Args) {
			p.skipLines(u.Raw)
		}
		return
	default:
		p.errorf(DirectiveSyntaxError, "unknown directive #%s", u.Keyword)
	}

	if emit {
		p.out.WriteString(u.Raw)
		return
	}
	if !p.halted {
		p.skipLines(u.Raw)
	}
}

func (p *Preprocessor) handleDefine(toks []lexer.Token) {
	toks = lexer.Trim(toks)
	if len(toks) == 0 || toks[0].Kind != lexer.Ident {
		p.errorf(DirectiveSyntaxError, "#define requires a macro name")
		return
	}
	name, rest := toks[0].Text, toks[1:]
	if len(rest) > 0 && rest[0].Is("(") {
		p.errorf(DirectiveSyntaxError, "function-like macro %q is not supported", name)
		return
	}
	if !p.checkName("#define", name) {
		return
	}
	if len(rest) > 0 && rest[0].Kind != lexer.Space {
		p.warnf(DirectiveSyntaxError, "missing whitespace after the macro name %q", name)
	}
	prev, changed := p.macros.Define(name, rest, p.reportedLine())
	if changed {
		p.warnf(MacroRedefinitionWarning, "macro %q redefined (previous definition at line %d)", name, prev.Line)
	}
}

func (p *Preprocessor) handleUndef(toks []lexer.Token) {
	sig := lexer.Significant(toks)
	if len(sig) == 0 || sig[0].Kind != lexer.Ident {
		p.errorf(DirectiveSyntaxError, "#undef requires a macro name")
		return
	}
	p.checkExtra("#undef", sig[1:])
	if !p.checkName("#undef", sig[0].Text) {
		return
	}
	p.macros.Undef(sig[0].Text)
}

// checkName rejects names that may not be defined or undefined.
func (p *Preprocessor) checkName(directive, name string) bool {
	if name == "defined" || p.macros.isBuiltin(name) {
		p.errorf(DirectiveSyntaxError, "%s of built-in name %q", directive, name)
		return false
	}
	reserved, warn := reservedName(name)
	if reserved {
		p.errorf(DirectiveSyntaxError, "%s of reserved name %q", directive, name)
		return false
	}
	if warn && directive == "#define" {
		p.warnf(ReservedNameWarning, "macro name %q containing \"__\" is reserved", name)
	}
	return true
}

func (p *Preprocessor) checkExtra(directive string, toks []lexer.Token) {
	if len(lexer.Significant(toks)) > 0 {
		p.warnf(DirectiveSyntaxError, "extra tokens at end of %s directive", directive)
	}
}

func (p *Preprocessor) definedOperand(directive string, toks []lexer.Token) (defined, ok bool) {
	sig := lexer.Significant(toks)
	if len(sig) == 0 || sig[0].Kind != lexer.Ident {
		p.errorf(DirectiveSyntaxError, "%s requires a macro name", directive)
		return false, false
	}
	p.checkExtra(directive, sig[1:])
	return p.macros.IsDefined(sig[0].Text), true
}

func (p *Preprocessor) evalCondition(directive string, toks []lexer.Token) bool {
	v, err := Evaluate(toks, p.macros)
	if err != nil {
		p.errorf(EvaluationError, "%s: %v", directive, err)
		return false
	}
	return v != 0
}

func (p *Preprocessor) handleVersion(toks []lexer.Token) bool {
	if p.sawContent {
		p.errorf(VersionOrderError, "#version must occur before anything else in the shader")
		p.halted = true
		return false
	}
	sig := lexer.Significant(toks)
	if len(sig) == 0 || sig[0].Kind != lexer.Number {
		p.errorf(DirectiveSyntaxError, "#version requires a version number")
		return false
	}
	n, err := strconv.Atoi(sig[0].Text)
	if err != nil || !glslVersions[n] {
		p.errorf(DirectiveSyntaxError, "unsupported GLSL version %s", sig[0].Text)
		return false
	}
	profile := ""
	if len(sig) > 1 {
		if sig[1].Kind != lexer.Ident {
			p.errorf(DirectiveSyntaxError, "invalid #version profile %q", sig[1].Text)
			return false
		}
		profile = sig[1].Text
	}
	if len(sig) > 2 {
		p.errorf(DirectiveSyntaxError, "extra tokens at end of #version directive")
		return false
	}
	switch profile {
	case "", "es", "core", "compatibility":
	default:
		p.errorf(DirectiveSyntaxError, "unknown #version profile %q", profile)
		return false
	}
	switch {
	case n == 300 || n == 310 || n == 320:
		if profile != "es" {
			p.errorf(DirectiveSyntaxError, "GLSL version %d requires the es profile", n)
			return false
		}
	case profile == "es":
		p.errorf(DirectiveSyntaxError, "profile es is not valid for GLSL version %d", n)
		return false
	case profile != "" && n < 150:
		p.errorf(DirectiveSyntaxError, "profile %q requires GLSL version 150 or above", profile)
		return false
	}

	p.version, p.profile = n, profile
	if n == 100 || profile == "es" {
		p.macros.DefineString("GL_ES", "1", p.reportedLine())
	} else {
		p.macros.Undef("GL_ES")
	}
	return true
}

func (p *Preprocessor) handleExtension(toks []lexer.Token) bool {
	sig := lexer.Significant(toks)
	if len(sig) != 3 || sig[0].Kind != lexer.Ident || !sig[1].Is(":") || sig[2].Kind != lexer.Ident {
		p.errorf(DirectiveSyntaxError, "#extension requires \"name : behavior\"")
		return false
	}
	name, behavior := sig[0].Text, sig[2].Text
	if !extensionBehaviors[behavior] {
		p.errorf(DirectiveSyntaxError, "unknown extension behavior %q", behavior)
		return false
	}
	if name == "all" {
		if behavior == "require" || behavior == "enable" {
			p.errorf(DirectiveSyntaxError, "extension \"all\" cannot have behavior %q", behavior)
			return false
		}
	} else if len(p.known) > 0 && !p.known[name] {
		switch behavior {
		case "require":
			p.errorf(ExtensionError, "extension %q is not supported", name)
		case "enable", "warn":
			p.warnf(ExtensionError, "extension %q is not supported", name)
		}
	}
	p.extensions = append(p.extensions, Extension{Name: name, Behavior: behavior, Line: p.reportedLine()})
	return true
}

func (p *Preprocessor) handleLine(u lexer.Unit, toks []lexer.Token) {
	sig := lexer.Significant(p.macros.expandTokens(toks, map[string]bool{}))
	if len(sig) == 0 || len(sig) > 2 {
		p.errorf(DirectiveSyntaxError, "#line requires a line number and an optional source string number")
		return
	}
	n, ok := decimal(sig[0])
	if !ok {
		p.errorf(DirectiveSyntaxError, "invalid #line number %q", sig[0].Text)
		return
	}
	if len(sig) == 2 {
		src, ok := decimal(sig[1])
		if !ok {
			p.errorf(DirectiveSyntaxError, "invalid #line source string number %q", sig[1].Text)
			return
		}
		p.source = src
	}
	// The line after the directive is reported as n.
	p.lineOffset = n - (u.Line + u.Lines)
}

func decimal(t lexer.Token) (int, bool) {
	if t.Kind != lexer.Number {
		return 0, false
	}
	n, err := strconv.Atoi(t.Text)
	return n, err == nil && n >= 0
}

// handleInclude splices the included text in place. It reports false when
// nothing was included.
func (p *Preprocessor) handleInclude(arg string) bool {
	name, ok := parseIncludeArg(arg)
	if !ok {
		p.errorf(DirectiveSyntaxError, "bad #include syntax: %q", arg)
		return false
	}
	if p.opts.Include == nil {
		p.errorf(DirectiveSyntaxError, "#include %q: no include handler", name)
		return false
	}
	if p.includeDepth >= maxIncludeDepth {
		p.errorf(DirectiveSyntaxError, "#include %q: nested too deeply", name)
		return false
	}
	text, err := p.opts.Include(name)
	if err != nil {
		p.errorf(DirectiveSyntaxError, "#include %q: %v", name, err)
		return false
	}
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	line, offset, depth := p.line, p.lineOffset, p.cond.Depth()
	p.includeDepth++
	p.lineOffset = 0
	p.run(lexer.Split(text))
	p.includeDepth--
	if !p.halted {
		for _, f := range p.cond.Truncate(depth) {
			p.errorfAt(UnterminatedConditionalError, f.line, "unterminated %s in %q", f.kind, name)
		}
	}
	p.line, p.lineOffset = line, offset
	return true
}

func parseIncludeArg(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if len(arg) >= 2 && arg[0] == '"' && arg[len(arg)-1] == '"' {
		return arg[1 : len(arg)-1], true
	}
	if len(arg) >= 2 && arg[0] == '<' && arg[len(arg)-1] == '>' {
		return arg[1 : len(arg)-1], true
	}
	return "", false
}
