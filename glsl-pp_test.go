package glsl_pp

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type diag struct {
	Kind Kind
	Line int
}

func kinds(ds []Diagnostic) []diag {
	var out []diag
	for _, d := range ds {
		out = append(out, diag{d.Kind, d.Line})
	}
	return out
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		opts    Options
		want    string
		diags   []diag
		isFatal bool
	}{
		{
			name: "no directives",
			src:  "precision mediump float;\nvoid main() {\n  gl_FragColor = vec4(1.0);\n}\n",
			want: "precision mediump float;\nvoid main() {\n  gl_FragColor = vec4(1.0);\n}\n",
		},
		{
			name: "ifdef undefined",
			src:  "#ifdef X\nfoo\n#endif\nbar\n",
			want: "bar\n",
		},
		{
			name: "ifdef defined",
			src:  "#ifdef X\nfoo\n#endif\nbar\n",
			opts: Options{Defines: map[string]string{"X": "1"}},
			want: "foo\nbar\n",
		},
		{
			name: "object-like macro",
			src:  "#define N 4\nfloat a[N];\n",
			want: "float a[4];\n",
		},
		{
			name: "self reference",
			src:  "#define A A+1\nA\nA\n",
			want: "A+1\nA+1\n",
		},
		{
			name: "undef",
			src:  "#define X 1\n#undef X\nX\n",
			want: "X\n",
		},
		{
			name: "elif chain",
			src:  "#if 0\na\n#elif 1\nb\n#else\nc\n#endif\n",
			want: "b\n",
		},
		{
			name:  "elif after else",
			src:   "#if 0\na\n#else\nb\n#elif 1\nc\n#endif\nd\n",
			want:  "b\nd\n",
			diags: []diag{{UnmatchedElseOrEndifError, 5}},
		},
		{
			name:  "unmatched endif",
			src:   "a\n#endif\nb\n",
			want:  "a\nb\n",
			diags: []diag{{UnmatchedElseOrEndifError, 2}},
		},
		{
			name:  "unterminated",
			src:   "#if 1\na\n#ifdef X\nb\n",
			want:  "a\n",
			diags: []diag{{UnterminatedConditionalError, 3}, {UnterminatedConditionalError, 1}},
		},
		{
			name: "dead branch not evaluated",
			src:  "#if 0\n#if SOME_UNDEFINED / 0\n#elif 1 % 0\n#endif\n#endif\nok\n",
			want: "ok\n",
		},
		{
			name:    "error directive",
			src:     "#define A 1\n#endif\nx\n#error \"boom\"\ny\n#if 1\n",
			want:    "x\n",
			diags:   []diag{{UnmatchedElseOrEndifError, 2}, {UserError, 4}},
			isFatal: true,
		},
		{
			name:  "evaluation error is false",
			src:   "#if 1 / 0\na\n#else\nb\n#endif\n",
			want:  "b\n",
			diags: []diag{{EvaluationError, 1}},
		},
		{
			name: "line directive",
			src:  "a __LINE__\n#line 10\nb __LINE__\nc __LINE__\n",
			want: "a 1\nb 10\nc 11\n",
		},
		{
			name: "version",
			src:  "// header\n#version 300 es\nint v = __VERSION__;\n#ifdef GL_ES\nes\n#endif\n",
			want: "// header\n#version 300 es\nint v = 300;\nes\n",
		},
		{
			name: "desktop version",
			src:  "#version 330 core\n#ifdef GL_ES\nes\n#endif\nint v = __VERSION__;\n",
			want: "#version 330 core\nint v = 330;\n",
		},
		{
			name: "default version",
			src:  "int v = __VERSION__;\n#ifdef GL_ES\nes\n#endif\n",
			want: "int v = 100;\nes\n",
		},
		{
			name:    "version after content",
			src:     "float x;\n#version 300 es\nfloat y;\n",
			want:    "float x;\n",
			diags:   []diag{{VersionOrderError, 2}},
			isFatal: true,
		},
		{
			name: "extension",
			src:  "#extension GL_OES_standard_derivatives : enable\n#extension GL_FOO : require\n",
			opts: Options{Extensions: []string{"GL_OES_standard_derivatives"}},
			want: "#extension GL_OES_standard_derivatives : enable\n#extension GL_FOO : require\n",
			diags: []diag{
				{ExtensionError, 2},
			},
		},
		{
			name:  "extension all",
			src:   "#extension all : enable\n",
			want:  "",
			diags: []diag{{DirectiveSyntaxError, 1}},
		},
		{
			name: "identical redefinition",
			src:  "#define A 1 + 2\n#define A 1  +  2\nA\n",
			want: "1  +  2\n",
		},
		{
			name:  "redefinition",
			src:   "#define A 1\n#define A 2\nA\n",
			want:  "2\n",
			diags: []diag{{MacroRedefinitionWarning, 2}},
		},
		{
			name:  "function-like macro",
			src:   "#define F(x) x\nF(1)\n",
			want:  "F(1)\n",
			diags: []diag{{DirectiveSyntaxError, 1}},
		},
		{
			name:  "reserved names",
			src:   "#define GL_FOO 1\n#define MY__NAME 2\nGL_FOO MY__NAME\n",
			want:  "GL_FOO 2\n",
			diags: []diag{{DirectiveSyntaxError, 1}, {ReservedNameWarning, 2}},
		},
		{
			name:  "unknown directive",
			src:   "#foo\n#if 0\n#bar\n#endif\n",
			want:  "",
			diags: []diag{{DirectiveSyntaxError, 1}},
		},
		{
			name: "substitution keeps tokens apart",
			src:  "#define NEG -1\n#define PLUS +\n#define E\nint x = -NEG;\nint y = a+PLUS b;\nint z = a+E+b;\n",
			want: "int x = - -1;\nint y = a+ + b;\nint z = a+ +b;\n",
		},
		{
			name:  "failed include keeps its line",
			src:   "a\n#include \"missing.glsl\"\nb\n",
			opts:  Options{PreserveLines: true},
			want:  "a\n\nb\n",
			diags: []diag{{DirectiveSyntaxError, 2}},
		},
		{
			name:    "rejected version still comes first",
			src:     "#version 999\n#version 300 es\nx\n",
			want:    "",
			diags:   []diag{{DirectiveSyntaxError, 1}, {VersionOrderError, 2}},
			isFatal: true,
		},
		{
			name:  "invalid predefined name",
			src:   "GL_FOO\n",
			opts:  Options{Defines: map[string]string{"GL_FOO": "1"}},
			want:  "GL_FOO\n",
			diags: []diag{{DirectiveSyntaxError, 0}},
		},
		{
			name: "pragma stripped",
			src:  "#pragma optimize(off)\nx\n",
			want: "x\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Preprocess(tt.src, tt.opts)
			if diff := cmp.Diff(tt.want, res.Output); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.diags, kinds(res.Diagnostics)); diff != "" {
				t.Errorf("diagnostics mismatch (-want +got):\n%s\n%v", diff, res.Diagnostics)
			}
			if res.Fatal() != tt.isFatal {
				t.Errorf("Fatal() = %v, want %v", res.Fatal(), tt.isFatal)
			}
		})
	}
}

func TestErrorDirective(t *testing.T) {
	res := Preprocess("#if 1\n#error \"boom\"\n#endif\n", Options{})
	require.True(t, res.Fatal())
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	require.Equal(t, UserError, d.Kind)
	require.Contains(t, d.Message, "boom")

	var target Diagnostic
	require.True(t, errors.As(res.Err(), &target))
	require.Equal(t, UserError, target.Kind)
}

func TestWarningsAreNotErrors(t *testing.T) {
	res := Preprocess("#define A 1\n#define A 2\n", Options{})
	require.Len(t, res.Diagnostics, 1)
	require.Equal(t, Warning, res.Diagnostics[0].Severity)
	require.NoError(t, res.Err())
}

func TestInclude(t *testing.T) {
	files := map[string]string{
		"common.glsl": "#define SCALE 2.0\nfloat scale() { return SCALE; }",
		"loop.glsl":   "#include \"loop.glsl\"\n",
	}
	opts := Options{
		Include: func(name string) (string, error) {
			s, ok := files[name]
			if !ok {
				return "", fmt.Errorf("%s: not found", name)
			}
			return s, nil
		},
	}

	res := Preprocess("#include \"common.glsl\"\nvec2 v = vec2(SCALE);\n", opts)
	require.NoError(t, res.Err())
	require.Equal(t, "float scale() { return 2.0; }\nvec2 v = vec2(2.0);\n", res.Output)

	res = Preprocess("#include <missing.glsl>\n", opts)
	require.Len(t, res.Diagnostics, 1)
	require.Equal(t, DirectiveSyntaxError, res.Diagnostics[0].Kind)

	res = Preprocess("#include \"loop.glsl\"\n", opts)
	require.Len(t, res.Diagnostics, 1)
	require.Contains(t, res.Diagnostics[0].Message, "nested too deeply")

	res = Preprocess("#include \"common.glsl\"\n", Options{})
	require.Len(t, res.Diagnostics, 1)
	require.Contains(t, res.Diagnostics[0].Message, "no include handler")
}

func TestPreprocessConcurrent(t *testing.T) {
	opts := Options{Defines: map[string]string{"N": "3"}}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := fmt.Sprintf("#define M %d\nN M\n", i)
			res := Preprocess(src, opts)
			if got, want := res.Output, fmt.Sprintf("3 %d\n", i); got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		}(i)
	}
	wg.Wait()
}

func TestParseDefine(t *testing.T) {
	tests := []struct {
		in, name, value string
	}{
		{"DEBUG", "DEBUG", "1"},
		{"N=4", "N", "4"},
		{"EMPTY=", "EMPTY", ""},
		{"EXPR=a=b", "EXPR", "a=b"},
	}
	for _, tt := range tests {
		name, value := ParseDefine(tt.in)
		if name != tt.name || value != tt.value {
			t.Errorf("ParseDefine(%q) = %q, %q; want %q, %q", tt.in, name, value, tt.name, tt.value)
		}
	}
}
