/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package glsl_pp resolves the preprocessor directives of GLSL shader
// source so the result can be handed to a GLSL parser.
package glsl_pp

import (
	"strings"

	"github.com/fwessels/glsl-pp/internal/preprocessor"
)

type (
	Options    = preprocessor.Options
	Result     = preprocessor.Result
	Diagnostic = preprocessor.Diagnostic
	Kind       = preprocessor.Kind
	Severity   = preprocessor.Severity
	Extension  = preprocessor.Extension
	Pragma     = preprocessor.Pragma
)

const (
	DirectiveSyntaxError         = preprocessor.DirectiveSyntaxError
	UnmatchedElseOrEndifError    = preprocessor.UnmatchedElseOrEndifError
	UnterminatedConditionalError = preprocessor.UnterminatedConditionalError
	MacroRedefinitionWarning     = preprocessor.MacroRedefinitionWarning
	EvaluationError              = preprocessor.EvaluationError
	UserError                    = preprocessor.UserError
	VersionOrderError            = preprocessor.VersionOrderError
	ExtensionError               = preprocessor.ExtensionError
	ReservedNameWarning          = preprocessor.ReservedNameWarning
)

const (
	Error   = preprocessor.Error
	Warning = preprocessor.Warning
)

// Preprocess runs the preprocessor over src. Every call starts from a fresh
// macro table seeded from opts, so concurrent calls may share opts.
//
// Recoverable problems are reported in Result.Diagnostics and processing
// continues; #error and a misplaced #version stop it, see Result.Fatal.
func Preprocess(src string, opts Options) Result {
	return preprocessor.New(opts).Process(src)
}

// ParseDefine splits a command line definition of the form NAME=VALUE.
// A bare NAME is defined as 1.
func ParseDefine(s string) (name, value string) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, "1"
}
