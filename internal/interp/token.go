// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package interp

// tokenType 词法单元类别
type tokenType int

const (
	tokEOF tokenType = iota
	tokNewline
	tokIndent
	tokDedent

	tokName
	tokInt
	tokFloat
	tokString
	tokFString

	tokPlus      // +
	tokMinus     // -
	tokStar      // *
	tokSlash     // /
	tokDblSlash  // //
	tokPercent   // %
	tokDblStar   // **
	tokEq        // ==
	tokNotEq     // !=
	tokLt        // <
	tokLtEq      // <=
	tokGt        // >
	tokGtEq      // >=
	tokAssign    // =
	tokPlusEq    // +=
	tokMinusEq   // -=
	tokStarEq    // *=
	tokSlashEq   // /=
	tokDblSlEq   // //=
	tokPercentEq // %=
	tokDblStarEq // **=
	tokLParen    // (
	tokRParen    // )
	tokLBracket  // [
	tokRBracket  // ]
	tokLBrace    // {
	tokRBrace    // }
	tokComma     // ,
	tokColon     // :
	tokDot       // .
	tokArrow     // ->

	// 关键字
	tokIf
	tokElif
	tokElse
	tokWhile
	tokFor
	tokIn
	tokNotIn // 合成：not in
	tokDef
	tokLambda
	tokReturn
	tokPass
	tokBreak
	tokContinue
	tokImport
	tokFrom
	tokAs
	tokAnd
	tokOr
	tokNot
	tokTrue
	tokFalse
	tokNone
	tokIs
	tokIsNot // 合成：is not
)

var keywords = map[string]tokenType{
	"if": tokIf, "elif": tokElif, "else": tokElse,
	"while": tokWhile, "for": tokFor, "in": tokIn,
	"def": tokDef, "lambda": tokLambda, "return": tokReturn,
	"pass": tokPass, "break": tokBreak, "continue": tokContinue,
	"import": tokImport, "from": tokFrom, "as": tokAs,
	"and": tokAnd, "or": tokOr, "not": tokNot,
	"True": tokTrue, "False": tokFalse, "None": tokNone,
	"is": tokIs,
}

// 保留但不支持的关键字：出现即报 unsupported construct，而不是当作普通名字
var reservedUnsupported = map[string]string{
	"class": "class definition", "try": "try/except", "except": "try/except",
	"finally": "try/finally", "raise": "raise statement", "with": "with statement",
	"yield": "yield expression", "global": "global statement", "nonlocal": "nonlocal statement",
	"assert": "assert statement", "del": "del statement", "async": "async construct",
	"await": "await expression",
}

// token 单个词法单元
type token struct {
	typ  tokenType
	lit  string
	line int
	col  int
	// fstring 的插值片段（tokFString 专用）：文本与表达式源交替
	fparts []fpart
}

// fpart f-string 的一个片段：Expr 为 true 时 Text 是表达式源码
type fpart struct {
	Text string
	Expr bool
	Line int
}
