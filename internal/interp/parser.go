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
	"strconv"

	"agent-platform/pkg/errors"
)

type parser struct {
	toks []token
	pos  int
}

// parse 将源码解析为语句序列
func parse(src string) ([]stmt, error) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var out []stmt
	for !p.at(tokEOF) {
		if p.at(tokNewline) {
			p.next()
			continue
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) at(typ tokenType) bool { return p.cur().typ == typ }

func (p *parser) accept(typ tokenType) bool {
	if p.at(typ) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(typ tokenType, what string) (token, error) {
	if !p.at(typ) {
		return token{}, p.errorf("expected %s, got %q", what, p.cur().lit)
	}
	return p.next(), nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.NewAgentErrorAt(errors.KindParse, p.cur().line, format, args...)
}

// ---- 语句 ----

func (p *parser) statement() (stmt, error) {
	switch p.cur().typ {
	case tokIf:
		return p.ifStatement()
	case tokWhile:
		return p.whileStatement()
	case tokFor:
		return p.forStatement()
	case tokDef:
		return p.funcDef()
	case tokReturn:
		t := p.next()
		var val expr
		if !p.at(tokNewline) && !p.at(tokEOF) {
			var err error
			val, err = p.exprList()
			if err != nil {
				return nil, err
			}
		}
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		return &returnStmt{baseNode{t.line}, val}, nil
	case tokBreak:
		t := p.next()
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		return &breakStmt{baseNode{t.line}}, nil
	case tokContinue:
		t := p.next()
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		return &continueStmt{baseNode{t.line}}, nil
	case tokPass:
		t := p.next()
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		return &passStmt{baseNode{t.line}}, nil
	case tokImport:
		return p.importStatement()
	case tokFrom:
		return p.importFromStatement()
	default:
		return p.exprOrAssign()
	}
}

func (p *parser) endStmt() error {
	if p.at(tokEOF) {
		return nil
	}
	if p.at(tokDedent) {
		return nil
	}
	_, err := p.expect(tokNewline, "end of statement")
	return err
}

func (p *parser) block() ([]stmt, error) {
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}
	// 同行单语句：if x: y = 1
	if !p.at(tokNewline) {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		return []stmt{s}, nil
	}
	p.next() // newline
	if _, err := p.expect(tokIndent, "an indented block"); err != nil {
		return nil, err
	}
	var body []stmt
	for !p.at(tokDedent) && !p.at(tokEOF) {
		if p.at(tokNewline) {
			p.next()
			continue
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		body = append(body, s)
	}
	p.accept(tokDedent)
	if len(body) == 0 {
		return nil, p.errorf("empty block")
	}
	return body, nil
}

func (p *parser) ifStatement() (stmt, error) {
	t := p.next() // if / elif
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	var els []stmt
	if p.at(tokElif) {
		s, err := p.ifStatement()
		if err != nil {
			return nil, err
		}
		els = []stmt{s}
	} else if p.accept(tokElse) {
		els, err = p.block()
		if err != nil {
			return nil, err
		}
	}
	return &ifStmt{baseNode{t.line}, cond, body, els}, nil
}

func (p *parser) whileStatement() (stmt, error) {
	t := p.next()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &whileStmt{baseNode{t.line}, cond, body}, nil
}

func (p *parser) forStatement() (stmt, error) {
	t := p.next()
	target, err := p.targetList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokIn, "'in'"); err != nil {
		return nil, err
	}
	iter, err := p.exprList()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &forStmt{baseNode{t.line}, target, iter, body}, nil
}

// targetList 解析 for 目标：name 或 name, name, ...
func (p *parser) targetList() (expr, error) {
	first, err := p.primaryTarget()
	if err != nil {
		return nil, err
	}
	if !p.at(tokComma) {
		return first, nil
	}
	elems := []expr{first}
	for p.accept(tokComma) {
		if p.at(tokIn) {
			break
		}
		e, err := p.primaryTarget()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return &tupleExpr{baseNode{first.Line()}, elems}, nil
}

func (p *parser) primaryTarget() (expr, error) {
	if p.accept(tokLParen) {
		inner, err := p.targetList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	t, err := p.expect(tokName, "a name")
	if err != nil {
		return nil, err
	}
	return &nameExpr{baseNode{t.line}, t.lit}, nil
}

func (p *parser) funcDef() (stmt, error) {
	t := p.next()
	name, err := p.expect(tokName, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	params, err := p.paramList(tokRParen)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	// 返回值标注可忽略
	if p.accept(tokArrow) {
		if _, err := p.expression(); err != nil {
			return nil, err
		}
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &funcDefStmt{baseNode{t.line}, name.lit, params, body}, nil
}

func (p *parser) paramList(end tokenType) ([]param, error) {
	var params []param
	seenDefault := false
	for !p.at(end) {
		t, err := p.expect(tokName, "parameter name")
		if err != nil {
			return nil, err
		}
		pr := param{Name: t.lit}
		// 类型标注忽略
		if p.accept(tokColon) {
			if _, err := p.expression(); err != nil {
				return nil, err
			}
		}
		if p.accept(tokAssign) {
			d, err := p.expression()
			if err != nil {
				return nil, err
			}
			pr.Default = d
			seenDefault = true
		} else if seenDefault {
			return nil, p.errorf("non-default parameter %q follows default parameter", t.lit)
		}
		params = append(params, pr)
		if !p.accept(tokComma) {
			break
		}
	}
	return params, nil
}

func (p *parser) importStatement() (stmt, error) {
	t := p.next()
	mod, err := p.dottedName()
	if err != nil {
		return nil, err
	}
	alias := ""
	if p.accept(tokAs) {
		a, err := p.expect(tokName, "alias")
		if err != nil {
			return nil, err
		}
		alias = a.lit
	}
	if err := p.endStmt(); err != nil {
		return nil, err
	}
	return &importStmt{baseNode{t.line}, mod, alias}, nil
}

func (p *parser) importFromStatement() (stmt, error) {
	t := p.next()
	mod, err := p.dottedName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokImport, "'import'"); err != nil {
		return nil, err
	}
	if p.at(tokStar) {
		return nil, errors.NewAgentErrorAt(errors.KindUnsupportedConstruct, t.line, "unsupported construct: wildcard import")
	}
	var names []importName
	for {
		n, err := p.expect(tokName, "imported name")
		if err != nil {
			return nil, err
		}
		in := importName{Name: n.lit}
		if p.accept(tokAs) {
			a, err := p.expect(tokName, "alias")
			if err != nil {
				return nil, err
			}
			in.Alias = a.lit
		}
		names = append(names, in)
		if !p.accept(tokComma) {
			break
		}
	}
	if err := p.endStmt(); err != nil {
		return nil, err
	}
	return &importFromStmt{baseNode{t.line}, mod, names}, nil
}

func (p *parser) dottedName() (string, error) {
	t, err := p.expect(tokName, "module name")
	if err != nil {
		return "", err
	}
	name := t.lit
	for p.accept(tokDot) {
		n, err := p.expect(tokName, "module name")
		if err != nil {
			return "", err
		}
		name += "." + n.lit
	}
	return name, nil
}

// exprOrAssign 区分表达式语句、赋值与增量赋值
func (p *parser) exprOrAssign() (stmt, error) {
	line := p.cur().line
	first, err := p.exprList()
	if err != nil {
		return nil, err
	}

	switch p.cur().typ {
	case tokAssign:
		targets := []expr{first}
		var value expr
		for p.accept(tokAssign) {
			e, err := p.exprList()
			if err != nil {
				return nil, err
			}
			if p.at(tokAssign) {
				targets = append(targets, e)
			} else {
				value = e
			}
		}
		for _, t := range targets {
			if err := checkTarget(t); err != nil {
				return nil, err
			}
		}
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		return &assignStmt{baseNode{line}, targets, value}, nil
	case tokPlusEq, tokMinusEq, tokStarEq, tokSlashEq, tokDblSlEq, tokPercentEq, tokDblStarEq:
		op := p.next()
		if err := checkTarget(first); err != nil {
			return nil, err
		}
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		return &augAssignStmt{baseNode{line}, first, augBaseOp(op.typ), value}, nil
	default:
		if err := p.endStmt(); err != nil {
			return nil, err
		}
		return &exprStmt{baseNode{line}, first}, nil
	}
}

func augBaseOp(t tokenType) tokenType {
	switch t {
	case tokPlusEq:
		return tokPlus
	case tokMinusEq:
		return tokMinus
	case tokStarEq:
		return tokStar
	case tokSlashEq:
		return tokSlash
	case tokDblSlEq:
		return tokDblSlash
	case tokPercentEq:
		return tokPercent
	default:
		return tokDblStar
	}
}

func checkTarget(e expr) error {
	switch t := e.(type) {
	case *nameExpr, *indexExpr, *attrExpr, *sliceExpr:
		return nil
	case *tupleExpr:
		for _, el := range t.Elems {
			if err := checkTarget(el); err != nil {
				return err
			}
		}
		return nil
	case *listExpr:
		for _, el := range t.Elems {
			if err := checkTarget(el); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.NewAgentErrorAt(errors.KindParse, e.Line(), "cannot assign to this expression")
	}
}

// ---- 表达式 ----

// exprList 解析逗号分隔的表达式，多个时合成元组（裸元组赋值/返回）
func (p *parser) exprList() (expr, error) {
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if !p.at(tokComma) {
		return first, nil
	}
	elems := []expr{first}
	for p.accept(tokComma) {
		if p.exprBoundary() {
			break
		}
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return &tupleExpr{baseNode{first.Line()}, elems}, nil
}

func (p *parser) exprBoundary() bool {
	switch p.cur().typ {
	case tokNewline, tokEOF, tokAssign, tokRParen, tokRBracket, tokRBrace, tokColon, tokDedent:
		return true
	}
	return false
}

func (p *parser) expression() (expr, error) {
	if p.at(tokLambda) {
		return p.lambda()
	}
	e, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	// 条件表达式 a if cond else b
	if p.at(tokIf) {
		line := p.next().line
		cond, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokElse, "'else'"); err != nil {
			return nil, err
		}
		els, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &condExpr{baseNode{line}, cond, e, els}, nil
	}
	return e, nil
}

func (p *parser) lambda() (expr, error) {
	t := p.next()
	params, err := p.paramList(tokColon)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}
	body, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &lambdaExpr{baseNode{t.line}, params, body}, nil
}

func (p *parser) orExpr() (expr, error) {
	first, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	if !p.at(tokOr) {
		return first, nil
	}
	values := []expr{first}
	for p.accept(tokOr) {
		e, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		values = append(values, e)
	}
	return &boolOpExpr{baseNode{first.Line()}, tokOr, values}, nil
}

func (p *parser) andExpr() (expr, error) {
	first, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	if !p.at(tokAnd) {
		return first, nil
	}
	values := []expr{first}
	for p.accept(tokAnd) {
		e, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		values = append(values, e)
	}
	return &boolOpExpr{baseNode{first.Line()}, tokAnd, values}, nil
}

func (p *parser) notExpr() (expr, error) {
	if p.at(tokNot) {
		t := p.next()
		x, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{baseNode{t.line}, tokNot, x}, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (expr, error) {
	first, err := p.arith()
	if err != nil {
		return nil, err
	}
	var ops []tokenType
	var rest []expr
	for {
		switch p.cur().typ {
		case tokLt, tokGt, tokLtEq, tokGtEq, tokEq, tokNotEq, tokIn, tokNotIn, tokIs, tokIsNot:
			op := p.next().typ
			r, err := p.arith()
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
			rest = append(rest, r)
		default:
			if len(ops) == 0 {
				return first, nil
			}
			return &compareExpr{baseNode{first.Line()}, first, ops, rest}, nil
		}
	}
}

func (p *parser) arith() (expr, error) {
	l, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.at(tokPlus) || p.at(tokMinus) {
		op := p.next()
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{baseNode{op.line}, op.typ, l, r}
	}
	return l, nil
}

func (p *parser) term() (expr, error) {
	l, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.at(tokStar) || p.at(tokSlash) || p.at(tokDblSlash) || p.at(tokPercent) {
		op := p.next()
		r, err := p.factor()
		if err != nil {
			return nil, err
		}
		l = &binaryExpr{baseNode{op.line}, op.typ, l, r}
	}
	return l, nil
}

func (p *parser) factor() (expr, error) {
	if p.at(tokMinus) || p.at(tokPlus) {
		t := p.next()
		x, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{baseNode{t.line}, t.typ, x}, nil
	}
	return p.power()
}

func (p *parser) power() (expr, error) {
	base, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if p.at(tokDblStar) {
		op := p.next()
		// 右结合
		exp, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &binaryExpr{baseNode{op.line}, tokDblStar, base, exp}, nil
	}
	return base, nil
}

func (p *parser) postfix() (expr, error) {
	e, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().typ {
		case tokLParen:
			e, err = p.finishCall(e)
		case tokDot:
			p.next()
			n, nerr := p.expect(tokName, "attribute name")
			if nerr != nil {
				return nil, nerr
			}
			e = &attrExpr{baseNode{n.line}, e, n.lit}
		case tokLBracket:
			e, err = p.finishSubscript(e)
		default:
			return e, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) finishCall(fn expr) (expr, error) {
	t := p.next() // (
	var args []expr
	var kwargs []kwarg
	for !p.at(tokRParen) {
		if p.at(tokStar) || p.at(tokDblStar) {
			return nil, errors.NewAgentErrorAt(errors.KindUnsupportedConstruct, p.cur().line, "unsupported construct: argument unpacking")
		}
		// name=value 形式的关键字参数
		if p.at(tokName) && p.toks[p.pos+1].typ == tokAssign {
			n := p.next()
			p.next() // =
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			kwargs = append(kwargs, kwarg{Name: n.lit, Value: v})
		} else {
			if len(kwargs) > 0 {
				return nil, p.errorf("positional argument follows keyword argument")
			}
			a, err := p.expression()
			if err != nil {
				return nil, err
			}
			// 生成器实参：f(x for x in y)
			if p.at(tokFor) {
				comp, err := p.finishComprehension(compGen, a, nil, a.Line())
				if err != nil {
					return nil, err
				}
				args = append(args, comp)
				if _, err := p.expect(tokRParen, "')'"); err != nil {
					return nil, err
				}
				return &callExpr{baseNode{t.line}, fn, args, kwargs}, nil
			}
			args = append(args, a)
		}
		if !p.accept(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return &callExpr{baseNode{t.line}, fn, args, kwargs}, nil
}

func (p *parser) finishSubscript(x expr) (expr, error) {
	t := p.next() // [
	var lo, hi, st expr
	var err error
	if !p.at(tokColon) {
		lo, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if p.accept(tokColon) {
		if !p.at(tokColon) && !p.at(tokRBracket) {
			hi, err = p.expression()
			if err != nil {
				return nil, err
			}
		}
		if p.accept(tokColon) && !p.at(tokRBracket) {
			st, err = p.expression()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
		return &sliceExpr{baseNode{t.line}, x, lo, hi, st}, nil
	}
	if _, err := p.expect(tokRBracket, "']'"); err != nil {
		return nil, err
	}
	return &indexExpr{baseNode{t.line}, x, lo}, nil
}

func (p *parser) atom() (expr, error) {
	t := p.cur()
	switch t.typ {
	case tokInt:
		p.next()
		v, err := strconv.ParseInt(t.lit, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer literal %q", t.lit)
		}
		return &intLit{baseNode{t.line}, v}, nil
	case tokFloat:
		p.next()
		v, err := strconv.ParseFloat(t.lit, 64)
		if err != nil {
			return nil, p.errorf("invalid float literal %q", t.lit)
		}
		return &floatLit{baseNode{t.line}, v}, nil
	case tokString:
		p.next()
		// 相邻字符串字面量拼接
		s := t.lit
		for p.at(tokString) {
			s += p.next().lit
		}
		return &strLit{baseNode{t.line}, s}, nil
	case tokFString:
		p.next()
		return p.buildFString(t)
	case tokTrue:
		p.next()
		return &boolLit{baseNode{t.line}, true}, nil
	case tokFalse:
		p.next()
		return &boolLit{baseNode{t.line}, false}, nil
	case tokNone:
		p.next()
		return &noneLit{baseNode{t.line}}, nil
	case tokName:
		p.next()
		return &nameExpr{baseNode{t.line}, t.lit}, nil
	case tokLParen:
		return p.parenExpr()
	case tokLBracket:
		return p.listOrComp()
	case tokLBrace:
		return p.dictOrSet()
	case tokLambda:
		return p.lambda()
	default:
		return nil, p.errorf("unexpected token %q", t.lit)
	}
}

// buildFString 将词法阶段切出的插值片段解析为表达式
func (p *parser) buildFString(t token) (expr, error) {
	lit := &fstrLit{baseNode: baseNode{t.line}, Parts: t.fparts}
	for _, part := range t.fparts {
		if !part.Expr {
			continue
		}
		sub, err := parseExprString(part.Text, part.Line)
		if err != nil {
			return nil, err
		}
		lit.Exprs = append(lit.Exprs, sub)
	}
	return lit, nil
}

func parseExprString(src string, line int) (expr, error) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return nil, err
	}
	sp := &parser{toks: toks}
	e, perr := sp.expression()
	if perr != nil {
		return nil, perr
	}
	if !sp.at(tokNewline) && !sp.at(tokEOF) {
		return nil, errors.NewAgentErrorAt(errors.KindParse, line, "f-string: invalid expression %q", src)
	}
	return e, nil
}

func (p *parser) parenExpr() (expr, error) {
	t := p.next() // (
	if p.at(tokRParen) {
		p.next()
		return &tupleExpr{baseNode{t.line}, nil}, nil
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.at(tokFor) {
		comp, err := p.finishComprehension(compGen, first, nil, t.line)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	if p.at(tokComma) {
		elems := []expr{first}
		for p.accept(tokComma) {
			if p.at(tokRParen) {
				break
			}
			e, err := p.expression()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return &tupleExpr{baseNode{t.line}, elems}, nil
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return first, nil
}

func (p *parser) listOrComp() (expr, error) {
	t := p.next() // [
	if p.at(tokRBracket) {
		p.next()
		return &listExpr{baseNode{t.line}, nil}, nil
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.at(tokFor) {
		comp, err := p.finishComprehension(compList, first, nil, t.line)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	elems := []expr{first}
	for p.accept(tokComma) {
		if p.at(tokRBracket) {
			break
		}
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := p.expect(tokRBracket, "']'"); err != nil {
		return nil, err
	}
	return &listExpr{baseNode{t.line}, elems}, nil
}

func (p *parser) dictOrSet() (expr, error) {
	t := p.next() // {
	if p.at(tokRBrace) {
		p.next()
		return &dictExpr{baseNode{t.line}, nil, nil}, nil
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.accept(tokColon) {
		val, err := p.expression()
		if err != nil {
			return nil, err
		}
		if p.at(tokFor) {
			comp, err := p.finishComprehension(compDict, val, first, t.line)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBrace, "'}'"); err != nil {
				return nil, err
			}
			return comp, nil
		}
		keys := []expr{first}
		values := []expr{val}
		for p.accept(tokComma) {
			if p.at(tokRBrace) {
				break
			}
			k, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokColon, "':'"); err != nil {
				return nil, err
			}
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			values = append(values, v)
		}
		if _, err := p.expect(tokRBrace, "'}'"); err != nil {
			return nil, err
		}
		return &dictExpr{baseNode{t.line}, keys, values}, nil
	}
	if p.at(tokFor) {
		comp, err := p.finishComprehension(compSet, first, nil, t.line)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBrace, "'}'"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	elems := []expr{first}
	for p.accept(tokComma) {
		if p.at(tokRBrace) {
			break
		}
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return &setExpr{baseNode{t.line}, elems}, nil
}

// finishComprehension 当前位于 for；elt/key 已解析
func (p *parser) finishComprehension(kind compKind, elt, key expr, line int) (expr, error) {
	var clauses []compClause
	for p.at(tokFor) {
		p.next()
		target, err := p.targetList()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokIn, "'in'"); err != nil {
			return nil, err
		}
		iter, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		cl := compClause{Target: target, Iter: iter}
		for p.accept(tokIf) {
			cond, err := p.orExpr()
			if err != nil {
				return nil, err
			}
			cl.Conds = append(cl.Conds, cond)
		}
		clauses = append(clauses, cl)
	}
	return &comprehensionExpr{baseNode{line}, kind, elt, key, clauses}, nil
}
