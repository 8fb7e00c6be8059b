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

import (
	"strings"

	"agent-platform/pkg/errors"
)

// lexer 将源码切分为 token 流；缩进转换为 INDENT/DEDENT，括号内换行视为续行
type lexer struct {
	src    string
	pos    int
	line   int
	col    int
	indent []int // 缩进栈，单位为列
	depth  int   // 括号嵌套深度
	toks   []token
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 0, indent: []int{0}}
}

func (lx *lexer) errorf(line int, format string, args ...interface{}) error {
	return errors.NewAgentErrorAt(errors.KindParse, line, format, args...)
}

func (lx *lexer) peek() byte {
	if lx.pos >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos]
}

func (lx *lexer) peekAt(off int) byte {
	if lx.pos+off >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+off]
}

func (lx *lexer) advance() byte {
	c := lx.src[lx.pos]
	lx.pos++
	if c == '\n' {
		lx.line++
		lx.col = 0
	} else {
		lx.col++
	}
	return c
}

func (lx *lexer) emit(typ tokenType, lit string, line, col int) {
	lx.toks = append(lx.toks, token{typ: typ, lit: lit, line: line, col: col})
}

// tokenize 返回完整 token 流（末尾补齐 DEDENT 与 EOF）
func (lx *lexer) tokenize() ([]token, error) {
	atLineStart := true
	for lx.pos < len(lx.src) {
		if atLineStart && lx.depth == 0 {
			if err := lx.handleIndentation(); err != nil {
				return nil, err
			}
			atLineStart = false
			if lx.pos >= len(lx.src) {
				break
			}
		}

		c := lx.peek()
		switch {
		case c == '\n':
			lx.advance()
			if lx.depth == 0 {
				if n := len(lx.toks); n > 0 && lx.toks[n-1].typ != tokNewline && lx.toks[n-1].typ != tokIndent && lx.toks[n-1].typ != tokDedent {
					lx.emit(tokNewline, "\n", lx.line-1, lx.col)
				}
				atLineStart = true
			}
		case c == '#':
			for lx.pos < len(lx.src) && lx.peek() != '\n' {
				lx.advance()
			}
		case c == ' ' || c == '\t' || c == '\r':
			lx.advance()
		case isDigit(c) || (c == '.' && isDigit(lx.peekAt(1))):
			if err := lx.lexNumber(); err != nil {
				return nil, err
			}
		case c == '"' || c == '\'':
			if err := lx.lexString(false); err != nil {
				return nil, err
			}
		case isNameStart(c):
			if err := lx.lexName(); err != nil {
				return nil, err
			}
		default:
			if err := lx.lexOperator(); err != nil {
				return nil, err
			}
		}
	}

	if n := len(lx.toks); n > 0 && lx.toks[n-1].typ != tokNewline {
		lx.emit(tokNewline, "\n", lx.line, lx.col)
	}
	for len(lx.indent) > 1 {
		lx.indent = lx.indent[:len(lx.indent)-1]
		lx.emit(tokDedent, "", lx.line, 0)
	}
	lx.emit(tokEOF, "", lx.line, lx.col)
	return lx.toks, nil
}

// handleIndentation 行首缩进处理；空行与纯注释行不产生 token
func (lx *lexer) handleIndentation() error {
	for {
		width := 0
		for lx.pos < len(lx.src) {
			c := lx.peek()
			if c == ' ' {
				width++
				lx.advance()
			} else if c == '\t' {
				width += 8 - width%8
				lx.advance()
			} else {
				break
			}
		}
		if lx.pos >= len(lx.src) {
			return nil
		}
		c := lx.peek()
		if c == '\n' {
			lx.advance()
			continue
		}
		if c == '#' {
			for lx.pos < len(lx.src) && lx.peek() != '\n' {
				lx.advance()
			}
			continue
		}
		cur := lx.indent[len(lx.indent)-1]
		if width > cur {
			lx.indent = append(lx.indent, width)
			lx.emit(tokIndent, "", lx.line, 0)
		} else if width < cur {
			for len(lx.indent) > 1 && lx.indent[len(lx.indent)-1] > width {
				lx.indent = lx.indent[:len(lx.indent)-1]
				lx.emit(tokDedent, "", lx.line, 0)
			}
			if lx.indent[len(lx.indent)-1] != width {
				return lx.errorf(lx.line, "unindent does not match any outer indentation level")
			}
		}
		return nil
	}
}

func (lx *lexer) lexNumber() error {
	line, col := lx.line, lx.col
	var sb strings.Builder
	isFloat := false
	for lx.pos < len(lx.src) {
		c := lx.peek()
		if isDigit(c) {
			sb.WriteByte(lx.advance())
		} else if c == '.' && !isFloat && isDigit(lx.peekAt(1)) {
			isFloat = true
			sb.WriteByte(lx.advance())
		} else if c == '.' && !isFloat && !isNameStart(lx.peekAt(1)) {
			// 形如 "2." 的浮点
			isFloat = true
			sb.WriteByte(lx.advance())
		} else if (c == 'e' || c == 'E') && (isDigit(lx.peekAt(1)) || ((lx.peekAt(1) == '+' || lx.peekAt(1) == '-') && isDigit(lx.peekAt(2)))) {
			isFloat = true
			sb.WriteByte(lx.advance())
			if lx.peek() == '+' || lx.peek() == '-' {
				sb.WriteByte(lx.advance())
			}
		} else {
			break
		}
	}
	if isFloat {
		lx.emit(tokFloat, sb.String(), line, col)
	} else {
		lx.emit(tokInt, sb.String(), line, col)
	}
	return nil
}

// lexString 扫描字符串字面量；fstr 为 true 时产出 tokFString 并切分插值片段
func (lx *lexer) lexString(fstr bool) error {
	line, col := lx.line, lx.col
	quote := lx.advance()
	triple := false
	if lx.peek() == quote && lx.peekAt(1) == quote {
		lx.advance()
		lx.advance()
		triple = true
	}

	var sb strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return lx.errorf(line, "unterminated string literal")
		}
		c := lx.peek()
		if !triple && c == '\n' {
			return lx.errorf(line, "unterminated string literal")
		}
		if c == quote {
			if !triple {
				lx.advance()
				break
			}
			if lx.peekAt(1) == quote && lx.peekAt(2) == quote {
				lx.advance()
				lx.advance()
				lx.advance()
				break
			}
			sb.WriteByte(lx.advance())
			continue
		}
		if c == '\\' {
			lx.advance()
			if lx.pos >= len(lx.src) {
				return lx.errorf(line, "unterminated string literal")
			}
			e := lx.advance()
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '\'':
				sb.WriteByte('\'')
			case '"':
				sb.WriteByte('"')
			case '0':
				sb.WriteByte(0)
			case '\n':
				// 续行
			default:
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}
			continue
		}
		sb.WriteByte(lx.advance())
	}

	if !fstr {
		lx.emit(tokString, sb.String(), line, col)
		return nil
	}
	parts, err := splitFString(sb.String(), line)
	if err != nil {
		return err
	}
	lx.toks = append(lx.toks, token{typ: tokFString, lit: sb.String(), line: line, col: col, fparts: parts})
	return nil
}

// splitFString 将 f-string 内容切分为文本与表达式片段；支持 {{ 与 }} 转义
func splitFString(s string, line int) ([]fpart, error) {
	var parts []fpart
	var text strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '{' {
			if i+1 < len(s) && s[i+1] == '{' {
				text.WriteByte('{')
				i += 2
				continue
			}
			if text.Len() > 0 {
				parts = append(parts, fpart{Text: text.String(), Line: line})
				text.Reset()
			}
			depth := 1
			j := i + 1
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '{', '[', '(':
					depth++
				case '}', ']', ')':
					depth--
				}
				if depth == 0 {
					break
				}
				j++
			}
			if depth != 0 {
				return nil, errors.NewAgentErrorAt(errors.KindParse, line, "f-string: unmatched '{'")
			}
			expr := s[i+1 : j]
			if strings.TrimSpace(expr) == "" {
				return nil, errors.NewAgentErrorAt(errors.KindParse, line, "f-string: empty expression not allowed")
			}
			parts = append(parts, fpart{Text: expr, Expr: true, Line: line})
			i = j + 1
			continue
		}
		if c == '}' {
			if i+1 < len(s) && s[i+1] == '}' {
				text.WriteByte('}')
				i += 2
				continue
			}
			return nil, errors.NewAgentErrorAt(errors.KindParse, line, "f-string: single '}' is not allowed")
		}
		text.WriteByte(c)
		i++
	}
	if text.Len() > 0 {
		parts = append(parts, fpart{Text: text.String(), Line: line})
	}
	return parts, nil
}

func (lx *lexer) lexName() error {
	line, col := lx.line, lx.col
	var sb strings.Builder
	for lx.pos < len(lx.src) && isNameChar(lx.peek()) {
		sb.WriteByte(lx.advance())
	}
	name := sb.String()

	// 字符串前缀：f"..." / r"..."（r 原样按普通字符串处理）
	if (name == "f" || name == "F") && (lx.peek() == '"' || lx.peek() == '\'') {
		return lx.lexString(true)
	}
	if (name == "r" || name == "R") && (lx.peek() == '"' || lx.peek() == '\'') {
		return lx.lexString(false)
	}

	if construct, ok := reservedUnsupported[name]; ok {
		return errors.NewAgentErrorAt(errors.KindUnsupportedConstruct, line, "unsupported construct: %s", construct)
	}
	if kw, ok := keywords[name]; ok {
		// "not in" 与 "is not" 合成单 token，便于解析
		if kw == tokIn && lx.lastTokenIs(tokNot) {
			lx.toks[len(lx.toks)-1] = token{typ: tokNotIn, lit: "not in", line: line, col: col}
			return nil
		}
		if kw == tokNot && lx.lastTokenIs(tokIs) {
			lx.toks[len(lx.toks)-1] = token{typ: tokIsNot, lit: "is not", line: line, col: col}
			return nil
		}
		lx.emit(kw, name, line, col)
		return nil
	}
	lx.emit(tokName, name, line, col)
	return nil
}

func (lx *lexer) lastTokenIs(typ tokenType) bool {
	return len(lx.toks) > 0 && lx.toks[len(lx.toks)-1].typ == typ
}

func (lx *lexer) lexOperator() error {
	line, col := lx.line, lx.col
	c := lx.advance()
	two := string(c)
	if lx.pos < len(lx.src) {
		two += string(lx.peek())
	}

	emit2 := func(typ tokenType) error {
		lx.advance()
		lx.emit(typ, two, line, col)
		return nil
	}

	switch c {
	case '+':
		if two == "+=" {
			return emit2(tokPlusEq)
		}
		lx.emit(tokPlus, "+", line, col)
	case '-':
		if two == "-=" {
			return emit2(tokMinusEq)
		}
		if two == "->" {
			return emit2(tokArrow)
		}
		lx.emit(tokMinus, "-", line, col)
	case '*':
		if two == "**" {
			lx.advance()
			if lx.peek() == '=' {
				lx.advance()
				lx.emit(tokDblStarEq, "**=", line, col)
			} else {
				lx.emit(tokDblStar, "**", line, col)
			}
			return nil
		}
		if two == "*=" {
			return emit2(tokStarEq)
		}
		lx.emit(tokStar, "*", line, col)
	case '/':
		if two == "//" {
			lx.advance()
			if lx.peek() == '=' {
				lx.advance()
				lx.emit(tokDblSlEq, "//=", line, col)
			} else {
				lx.emit(tokDblSlash, "//", line, col)
			}
			return nil
		}
		if two == "/=" {
			return emit2(tokSlashEq)
		}
		lx.emit(tokSlash, "/", line, col)
	case '%':
		if two == "%=" {
			return emit2(tokPercentEq)
		}
		lx.emit(tokPercent, "%", line, col)
	case '=':
		if two == "==" {
			return emit2(tokEq)
		}
		lx.emit(tokAssign, "=", line, col)
	case '!':
		if two == "!=" {
			return emit2(tokNotEq)
		}
		return lx.errorf(line, "unexpected character %q", c)
	case '<':
		if two == "<=" {
			return emit2(tokLtEq)
		}
		lx.emit(tokLt, "<", line, col)
	case '>':
		if two == ">=" {
			return emit2(tokGtEq)
		}
		lx.emit(tokGt, ">", line, col)
	case '(':
		lx.depth++
		lx.emit(tokLParen, "(", line, col)
	case ')':
		lx.depth--
		lx.emit(tokRParen, ")", line, col)
	case '[':
		lx.depth++
		lx.emit(tokLBracket, "[", line, col)
	case ']':
		lx.depth--
		lx.emit(tokRBracket, "]", line, col)
	case '{':
		lx.depth++
		lx.emit(tokLBrace, "{", line, col)
	case '}':
		lx.depth--
		lx.emit(tokRBrace, "}", line, col)
	case ',':
		lx.emit(tokComma, ",", line, col)
	case ':':
		lx.emit(tokColon, ":", line, col)
	case '.':
		lx.emit(tokDot, ".", line, col)
	case ';':
		// 同行多语句视为语句边界
		lx.emit(tokNewline, ";", line, col)
	default:
		return errors.NewAgentErrorAt(errors.KindUnsupportedConstruct, line, "unsupported construct: operator %q", string(c))
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool { return isNameStart(c) || isDigit(c) }
