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
	"context"
	"math"
	"sort"
	"strings"

	"agent-platform/pkg/errors"
)

// env 词法作用域环境；赋值写当前层，读取逐层向上
type env struct {
	vars   map[string]value
	parent *env
}

func newEnv(parent *env) *env {
	return &env{vars: make(map[string]value), parent: parent}
}

func (e *env) get(name string) (value, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *env) set(name string, v value) { e.vars[name] = v }

// setExisting 在已定义的层更新；未找到时写当前层（增量赋值用）
func (e *env) setExisting(name string, v value) {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.vars[name]; ok {
			s.vars[name] = v
			return
		}
	}
	e.vars[name] = v
}

// ---- 控制流信号 ----

type breakSignal struct{}

func (breakSignal) Error() string { return "break outside loop" }

type continueSignal struct{}

func (continueSignal) Error() string { return "continue outside loop" }

type returnSignal struct{ v value }

func (returnSignal) Error() string { return "return outside function" }

// finalAnswerSignal 由 final_answer 内建抛出，立刻终止本次执行
type finalAnswerSignal struct{ v value }

func (finalAnswerSignal) Error() string { return "final answer" }

// evaluator 遍历执行 AST；持有输出缓冲与资源计数
type evaluator struct {
	ctx       context.Context
	opts      Options
	globals   *env
	stdout    strings.Builder
	iterCount int
	callDepth int
	imports   map[string]bool // 允许导入的模块名集合
}

func newEvaluator(ctx context.Context, opts Options, globals *env) *evaluator {
	imports := make(map[string]bool, len(opts.AuthorizedImports))
	for _, m := range opts.AuthorizedImports {
		imports[m] = true
	}
	return &evaluator{ctx: ctx, opts: opts, globals: globals, imports: imports}
}

// authorizedList 放行模块名的稳定排序列表，用于拒绝消息
func (ev *evaluator) authorizedList() string {
	names := make([]string, 0, len(ev.imports))
	for m := range ev.imports {
		names = append(names, m)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (ev *evaluator) tickLoop(line int) error {
	select {
	case <-ev.ctx.Done():
		return errors.NewAgentErrorAt(errors.KindResourceLimit, line, "execution cancelled: %v", ev.ctx.Err())
	default:
	}
	ev.iterCount++
	if ev.opts.MaxLoopIterations > 0 && ev.iterCount > ev.opts.MaxLoopIterations {
		return errors.NewAgentErrorAt(errors.KindResourceLimit, line,
			"loop iteration limit exceeded (%d)", ev.opts.MaxLoopIterations)
	}
	return nil
}

func (ev *evaluator) runtimeErr(line int, format string, args ...interface{}) error {
	return errors.NewAgentErrorAt(errors.KindRuntime, line, format, args...)
}

// ---- 语句执行 ----

func (ev *evaluator) execBlock(stmts []stmt, e *env) (value, error) {
	var last value
	var hasLast bool
	for _, s := range stmts {
		v, expr, err := ev.execStmt(s, e)
		if err != nil {
			return nil, err
		}
		if expr {
			last = v
			hasLast = true
		} else {
			hasLast = false
		}
	}
	if hasLast {
		return last, nil
	}
	return nil, nil
}

// execStmt 返回 (值, 是否为表达式语句, err)；顶层最后一个表达式语句的值即代码块输出
func (ev *evaluator) execStmt(s stmt, e *env) (value, bool, error) {
	switch t := s.(type) {
	case *exprStmt:
		v, err := ev.eval(t.X, e)
		return v, true, err
	case *assignStmt:
		v, err := ev.eval(t.Value, e)
		if err != nil {
			return nil, false, err
		}
		for _, target := range t.Targets {
			if err := ev.assign(target, v, e); err != nil {
				return nil, false, err
			}
		}
		return nil, false, nil
	case *augAssignStmt:
		cur, err := ev.eval(t.Target, e)
		if err != nil {
			return nil, false, err
		}
		rhs, err := ev.eval(t.Value, e)
		if err != nil {
			return nil, false, err
		}
		res, err := ev.binaryOp(t.Op, cur, rhs, t.Line())
		if err != nil {
			return nil, false, err
		}
		if n, ok := t.Target.(*nameExpr); ok {
			e.setExisting(n.Name, res)
			return nil, false, nil
		}
		return nil, false, ev.assign(t.Target, res, e)
	case *ifStmt:
		cond, err := ev.eval(t.Cond, e)
		if err != nil {
			return nil, false, err
		}
		if truthy(cond) {
			_, err := ev.execBlock(t.Body, e)
			return nil, false, err
		}
		if len(t.Else) > 0 {
			_, err := ev.execBlock(t.Else, e)
			return nil, false, err
		}
		return nil, false, nil
	case *whileStmt:
		for {
			if err := ev.tickLoop(t.Line()); err != nil {
				return nil, false, err
			}
			cond, err := ev.eval(t.Cond, e)
			if err != nil {
				return nil, false, err
			}
			if !truthy(cond) {
				return nil, false, nil
			}
			_, err = ev.execBlock(t.Body, e)
			if err != nil {
				if _, ok := err.(breakSignal); ok {
					return nil, false, nil
				}
				if _, ok := err.(continueSignal); ok {
					continue
				}
				return nil, false, err
			}
		}
	case *forStmt:
		iter, err := ev.eval(t.Iter, e)
		if err != nil {
			return nil, false, err
		}
		stop := false
		err = ev.iterate(iter, t.Line(), func(item value) error {
			if err := ev.tickLoop(t.Line()); err != nil {
				return err
			}
			if err := ev.assign(t.Target, item, e); err != nil {
				return err
			}
			_, berr := ev.execBlock(t.Body, e)
			if berr != nil {
				if _, ok := berr.(breakSignal); ok {
					stop = true
					return breakSignal{}
				}
				if _, ok := berr.(continueSignal); ok {
					return nil
				}
				return berr
			}
			return nil
		})
		if err != nil {
			if _, ok := err.(breakSignal); ok && stop {
				return nil, false, nil
			}
			return nil, false, err
		}
		return nil, false, nil
	case *funcDefStmt:
		fn := &pyFunc{Name: t.Name, Params: t.Params, Body: t.Body, Env: e}
		if err := ev.bindDefaults(fn, e); err != nil {
			return nil, false, err
		}
		e.set(t.Name, fn)
		return nil, false, nil
	case *returnStmt:
		var v value
		if t.Value != nil {
			var err error
			v, err = ev.eval(t.Value, e)
			if err != nil {
				return nil, false, err
			}
		}
		return nil, false, returnSignal{v}
	case *breakStmt:
		return nil, false, breakSignal{}
	case *continueStmt:
		return nil, false, continueSignal{}
	case *passStmt:
		return nil, false, nil
	case *importStmt:
		mod, err := ev.importModule(t.Module, t.Line())
		if err != nil {
			return nil, false, err
		}
		name := t.Alias
		if name == "" {
			name = t.Module
			if i := strings.Index(name, "."); i >= 0 {
				name = name[:i]
			}
		}
		e.set(name, mod)
		return nil, false, nil
	case *importFromStmt:
		mod, err := ev.importModule(t.Module, t.Line())
		if err != nil {
			return nil, false, err
		}
		for _, n := range t.Names {
			v, ok := mod.Attrs[n.Name]
			if !ok {
				return nil, false, ev.runtimeErr(t.Line(), "cannot import name %q from %q", n.Name, t.Module)
			}
			name := n.Alias
			if name == "" {
				name = n.Name
			}
			e.set(name, v)
		}
		return nil, false, nil
	default:
		return nil, false, ev.runtimeErr(s.Line(), "unsupported statement %T", s)
	}
}

func (ev *evaluator) bindDefaults(fn *pyFunc, e *env) error {
	fn.Default = make([]value, len(fn.Params))
	fn.HasDef = make([]bool, len(fn.Params))
	for i, p := range fn.Params {
		if p.Default != nil {
			d, err := ev.eval(p.Default, e)
			if err != nil {
				return err
			}
			fn.Default[i] = d
			fn.HasDef[i] = true
		}
	}
	return nil
}

func (ev *evaluator) importModule(name string, line int) (*pyModule, error) {
	if !ev.imports[name] {
		// 拒绝消息同时给出当前放行集合，模型可据此自我纠偏
		return nil, errors.NewAgentErrorAt(errors.KindUnauthorizedImport, line,
			"import of %q is not allowed; authorized imports are: %s",
			name, ev.authorizedList())
	}
	if mod := stdModule(name); mod != nil {
		return mod, nil
	}
	// 在白名单内但无内建实现：给出空模块占位
	return &pyModule{Name: name, Attrs: map[string]value{}}, nil
}

// assign 解构赋值到 name / index / attr / tuple 目标
func (ev *evaluator) assign(target expr, v value, e *env) error {
	switch t := target.(type) {
	case *nameExpr:
		e.set(t.Name, v)
		return nil
	case *indexExpr:
		obj, err := ev.eval(t.X, e)
		if err != nil {
			return err
		}
		idx, err := ev.eval(t.Index, e)
		if err != nil {
			return err
		}
		return ev.setIndex(obj, idx, v, t.Line())
	case *tupleExpr:
		return ev.unpack(t.Elems, v, t.Line(), e)
	case *listExpr:
		return ev.unpack(t.Elems, v, t.Line(), e)
	case *attrExpr:
		return ev.runtimeErr(t.Line(), "attribute assignment is not supported")
	case *sliceExpr:
		return ev.runtimeErr(t.Line(), "slice assignment is not supported")
	default:
		return ev.runtimeErr(target.Line(), "cannot assign to this expression")
	}
}

func (ev *evaluator) unpack(targets []expr, v value, line int, e *env) error {
	var items []value
	switch t := v.(type) {
	case *pyList:
		items = t.Items
	case *pyTuple:
		items = t.Items
	case string:
		for _, r := range t {
			items = append(items, string(r))
		}
	default:
		if err := ev.iterate(v, line, func(item value) error {
			items = append(items, item)
			return nil
		}); err != nil {
			return ev.runtimeErr(line, "cannot unpack non-iterable %s", typeName(v))
		}
	}
	if len(items) != len(targets) {
		return ev.runtimeErr(line, "expected %d values to unpack, got %d", len(targets), len(items))
	}
	for i, t := range targets {
		if err := ev.assign(t, items[i], e); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) setIndex(obj, idx, v value, line int) error {
	switch t := obj.(type) {
	case *pyList:
		i, ok := asInt(idx)
		if !ok {
			return ev.runtimeErr(line, "list indices must be integers, not %s", typeName(idx))
		}
		n := int64(len(t.Items))
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return ev.runtimeErr(line, "list assignment index out of range")
		}
		t.Items[i] = v
		return nil
	case *pyDict:
		if err := t.Set(idx, v); err != nil {
			return errors.NewAgentErrorAt(errors.KindRuntime, line, "%v", err)
		}
		return nil
	default:
		return ev.runtimeErr(line, "'%s' object does not support item assignment", typeName(obj))
	}
}

// iterate 统一迭代协议；fn 返回的 breakSignal 向上传递
func (ev *evaluator) iterate(v value, line int, fn func(value) error) error {
	switch t := v.(type) {
	case *pyList:
		// 复制一份，容忍循环体内追加
		items := make([]value, len(t.Items))
		copy(items, t.Items)
		for _, it := range items {
			if err := fn(it); err != nil {
				return err
			}
		}
		return nil
	case *pyTuple:
		for _, it := range t.Items {
			if err := fn(it); err != nil {
				return err
			}
		}
		return nil
	case string:
		for _, r := range t {
			if err := fn(string(r)); err != nil {
				return err
			}
		}
		return nil
	case *pyDict:
		for _, p := range t.Pairs() {
			if err := fn(p.Key); err != nil {
				return err
			}
		}
		return nil
	case *pySet:
		for _, it := range t.Items() {
			if err := fn(it); err != nil {
				return err
			}
		}
		return nil
	case rangeVal:
		if t.Step > 0 {
			for i := t.Start; i < t.Stop; i += t.Step {
				if err := fn(i); err != nil {
					return err
				}
			}
		} else {
			for i := t.Start; i > t.Stop; i += t.Step {
				if err := fn(i); err != nil {
					return err
				}
			}
		}
		return nil
	default:
		return ev.runtimeErr(line, "'%s' object is not iterable", typeName(v))
	}
}

// ---- 表达式求值 ----

func (ev *evaluator) eval(x expr, e *env) (value, error) {
	switch t := x.(type) {
	case *intLit:
		return t.Value, nil
	case *floatLit:
		return t.Value, nil
	case *strLit:
		return t.Value, nil
	case *boolLit:
		return t.Value, nil
	case *noneLit:
		return nil, nil
	case *nameExpr:
		if v, ok := e.get(t.Name); ok {
			return v, nil
		}
		if b, ok := builtins[t.Name]; ok {
			return b, nil
		}
		return nil, ev.runtimeErr(t.Line(), "name %q is not defined", t.Name)
	case *fstrLit:
		return ev.evalFString(t, e)
	case *listExpr:
		items := make([]value, 0, len(t.Elems))
		for _, el := range t.Elems {
			v, err := ev.eval(el, e)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return &pyList{Items: items}, nil
	case *tupleExpr:
		items := make([]value, 0, len(t.Elems))
		for _, el := range t.Elems {
			v, err := ev.eval(el, e)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return &pyTuple{Items: items}, nil
	case *dictExpr:
		d := newDict()
		for i := range t.Keys {
			k, err := ev.eval(t.Keys[i], e)
			if err != nil {
				return nil, err
			}
			v, err := ev.eval(t.Values[i], e)
			if err != nil {
				return nil, err
			}
			if err := d.Set(k, v); err != nil {
				return nil, errors.NewAgentErrorAt(errors.KindRuntime, t.Line(), "%v", err)
			}
		}
		return d, nil
	case *setExpr:
		s := newSet()
		for _, el := range t.Elems {
			v, err := ev.eval(el, e)
			if err != nil {
				return nil, err
			}
			if err := s.Add(v); err != nil {
				return nil, errors.NewAgentErrorAt(errors.KindRuntime, t.Line(), "%v", err)
			}
		}
		return s, nil
	case *binaryExpr:
		l, err := ev.eval(t.L, e)
		if err != nil {
			return nil, err
		}
		r, err := ev.eval(t.R, e)
		if err != nil {
			return nil, err
		}
		return ev.binaryOp(t.Op, l, r, t.Line())
	case *boolOpExpr:
		var last value
		for i, sub := range t.Values {
			v, err := ev.eval(sub, e)
			if err != nil {
				return nil, err
			}
			last = v
			if t.Op == tokAnd && !truthy(v) {
				return v, nil
			}
			if t.Op == tokOr && truthy(v) {
				return v, nil
			}
			_ = i
		}
		return last, nil
	case *unaryExpr:
		v, err := ev.eval(t.X, e)
		if err != nil {
			return nil, err
		}
		return ev.unaryOp(t.Op, v, t.Line())
	case *compareExpr:
		return ev.evalCompare(t, e)
	case *condExpr:
		cond, err := ev.eval(t.Cond, e)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return ev.eval(t.Then, e)
		}
		return ev.eval(t.Else, e)
	case *callExpr:
		return ev.evalCall(t, e)
	case *attrExpr:
		return ev.evalAttr(t, e)
	case *indexExpr:
		obj, err := ev.eval(t.X, e)
		if err != nil {
			return nil, err
		}
		idx, err := ev.eval(t.Index, e)
		if err != nil {
			return nil, err
		}
		return ev.getIndex(obj, idx, t.Line())
	case *sliceExpr:
		return ev.evalSlice(t, e)
	case *lambdaExpr:
		fn := &pyFunc{Params: t.Params, Expr: t.Body, Env: e}
		if err := ev.bindDefaults(fn, e); err != nil {
			return nil, err
		}
		return fn, nil
	case *comprehensionExpr:
		return ev.evalComprehension(t, e)
	default:
		return nil, ev.runtimeErr(x.Line(), "unsupported expression %T", x)
	}
}

func (ev *evaluator) evalFString(t *fstrLit, e *env) (value, error) {
	var sb strings.Builder
	exprIdx := 0
	for _, part := range t.Parts {
		if !part.Expr {
			sb.WriteString(part.Text)
			continue
		}
		v, err := ev.eval(t.Exprs[exprIdx], e)
		if err != nil {
			return nil, err
		}
		exprIdx++
		sb.WriteString(pyStr(v))
	}
	return sb.String(), nil
}

func (ev *evaluator) evalCompare(t *compareExpr, e *env) (value, error) {
	left, err := ev.eval(t.First, e)
	if err != nil {
		return nil, err
	}
	for i, op := range t.Ops {
		right, err := ev.eval(t.Rest[i], e)
		if err != nil {
			return nil, err
		}
		ok, err := ev.compareOnce(op, left, right, t.Line())
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func (ev *evaluator) compareOnce(op tokenType, l, r value, line int) (bool, error) {
	switch op {
	case tokEq:
		return pyEqual(l, r), nil
	case tokNotEq:
		return !pyEqual(l, r), nil
	case tokIs:
		return l == nil && r == nil || l == r, nil
	case tokIsNot:
		ok := l == nil && r == nil || l == r
		return !ok, nil
	case tokIn, tokNotIn:
		found, err := ev.contains(r, l, line)
		if err != nil {
			return false, err
		}
		if op == tokNotIn {
			return !found, nil
		}
		return found, nil
	default:
		c, err := pyCompare(l, r)
		if err != nil {
			return false, errors.NewAgentErrorAt(errors.KindRuntime, line, "%v", err)
		}
		switch op {
		case tokLt:
			return c < 0, nil
		case tokLtEq:
			return c <= 0, nil
		case tokGt:
			return c > 0, nil
		case tokGtEq:
			return c >= 0, nil
		}
		return false, ev.runtimeErr(line, "unsupported comparison")
	}
}

func (ev *evaluator) contains(container, item value, line int) (bool, error) {
	switch t := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, ev.runtimeErr(line, "'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(t, s), nil
	case *pyList:
		for _, el := range t.Items {
			if pyEqual(el, item) {
				return true, nil
			}
		}
		return false, nil
	case *pyTuple:
		for _, el := range t.Items {
			if pyEqual(el, item) {
				return true, nil
			}
		}
		return false, nil
	case *pyDict:
		_, found, err := t.Get(item)
		if err != nil {
			return false, errors.NewAgentErrorAt(errors.KindRuntime, line, "%v", err)
		}
		return found, nil
	case *pySet:
		has, err := t.Has(item)
		if err != nil {
			return false, errors.NewAgentErrorAt(errors.KindRuntime, line, "%v", err)
		}
		return has, nil
	case rangeVal:
		i, ok := asInt(item)
		if !ok {
			return false, nil
		}
		if t.Step > 0 {
			return i >= t.Start && i < t.Stop && (i-t.Start)%t.Step == 0, nil
		}
		return i <= t.Start && i > t.Stop && (t.Start-i)%(-t.Step) == 0, nil
	default:
		return false, ev.runtimeErr(line, "argument of type '%s' is not iterable", typeName(container))
	}
}

func (ev *evaluator) unaryOp(op tokenType, v value, line int) (value, error) {
	switch op {
	case tokNot:
		return !truthy(v), nil
	case tokMinus:
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		case bool:
			if n {
				return int64(-1), nil
			}
			return int64(0), nil
		}
		return nil, ev.runtimeErr(line, "bad operand type for unary -: '%s'", typeName(v))
	case tokPlus:
		if _, ok := asFloat(v); ok {
			return v, nil
		}
		return nil, ev.runtimeErr(line, "bad operand type for unary +: '%s'", typeName(v))
	}
	return nil, ev.runtimeErr(line, "unsupported unary operator")
}

// binaryOp 数值运算保持 Python 语义：/ 恒为浮点除，// 向负无穷取整
func (ev *evaluator) binaryOp(op tokenType, l, r value, line int) (value, error) {
	// 序列运算优先
	switch op {
	case tokPlus:
		switch lt := l.(type) {
		case string:
			if rs, ok := r.(string); ok {
				return lt + rs, nil
			}
			return nil, ev.runtimeErr(line, "can only concatenate str (not \"%s\") to str", typeName(r))
		case *pyList:
			if rl, ok := r.(*pyList); ok {
				items := make([]value, 0, len(lt.Items)+len(rl.Items))
				items = append(items, lt.Items...)
				items = append(items, rl.Items...)
				return &pyList{Items: items}, nil
			}
			return nil, ev.runtimeErr(line, "can only concatenate list (not \"%s\") to list", typeName(r))
		case *pyTuple:
			if rt, ok := r.(*pyTuple); ok {
				items := make([]value, 0, len(lt.Items)+len(rt.Items))
				items = append(items, lt.Items...)
				items = append(items, rt.Items...)
				return &pyTuple{Items: items}, nil
			}
			return nil, ev.runtimeErr(line, "can only concatenate tuple (not \"%s\") to tuple", typeName(r))
		}
	case tokStar:
		if s, n, ok := repeatOperands(l, r); ok {
			if str, isStr := s.(string); isStr {
				if n <= 0 {
					return "", nil
				}
				return strings.Repeat(str, int(n)), nil
			}
			items, _ := seqItems(s)
			var out []value
			for i := int64(0); i < n; i++ {
				out = append(out, items...)
			}
			if _, isList := s.(*pyList); isList {
				return &pyList{Items: out}, nil
			}
			return &pyTuple{Items: out}, nil
		}
	}

	li, lInt := asInt(l)
	ri, rInt := asInt(r)
	_, lIsFloat := l.(float64)
	_, rIsFloat := r.(float64)
	bothInt := lInt && rInt && !lIsFloat && !rIsFloat

	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, ev.runtimeErr(line, "unsupported operand type(s) for %s: '%s' and '%s'",
			opName(op), typeName(l), typeName(r))
	}

	switch op {
	case tokPlus:
		if bothInt {
			return li + ri, nil
		}
		return lf + rf, nil
	case tokMinus:
		if bothInt {
			return li - ri, nil
		}
		return lf - rf, nil
	case tokStar:
		if bothInt {
			return li * ri, nil
		}
		return lf * rf, nil
	case tokSlash:
		if rf == 0 {
			return nil, ev.runtimeErr(line, "division by zero")
		}
		return lf / rf, nil
	case tokDblSlash:
		if rf == 0 {
			return nil, ev.runtimeErr(line, "integer division or modulo by zero")
		}
		if bothInt {
			q := li / ri
			if (li%ri != 0) && ((li < 0) != (ri < 0)) {
				q--
			}
			return q, nil
		}
		return math.Floor(lf / rf), nil
	case tokPercent:
		if rf == 0 {
			return nil, ev.runtimeErr(line, "integer division or modulo by zero")
		}
		if bothInt {
			m := li % ri
			if m != 0 && ((m < 0) != (ri < 0)) {
				m += ri
			}
			return m, nil
		}
		m := math.Mod(lf, rf)
		if m != 0 && ((m < 0) != (rf < 0)) {
			m += rf
		}
		return m, nil
	case tokDblStar:
		if bothInt && ri >= 0 {
			result := int64(1)
			base := li
			exp := ri
			for exp > 0 {
				if exp&1 == 1 {
					result *= base
				}
				base *= base
				exp >>= 1
			}
			return result, nil
		}
		return math.Pow(lf, rf), nil
	}
	return nil, ev.runtimeErr(line, "unsupported binary operator")
}

func repeatOperands(l, r value) (seq value, n int64, ok bool) {
	if n, isInt := asInt(r); isInt {
		switch l.(type) {
		case string, *pyList, *pyTuple:
			return l, n, true
		}
	}
	if n, isInt := asInt(l); isInt {
		switch r.(type) {
		case string, *pyList, *pyTuple:
			return r, n, true
		}
	}
	return nil, 0, false
}

func opName(op tokenType) string {
	switch op {
	case tokPlus:
		return "+"
	case tokMinus:
		return "-"
	case tokStar:
		return "*"
	case tokSlash:
		return "/"
	case tokDblSlash:
		return "//"
	case tokPercent:
		return "%"
	case tokDblStar:
		return "**"
	}
	return "?"
}

func (ev *evaluator) getIndex(obj, idx value, line int) (value, error) {
	switch t := obj.(type) {
	case *pyList:
		return seqIndex(t.Items, idx, "list", line)
	case *pyTuple:
		return seqIndex(t.Items, idx, "tuple", line)
	case string:
		runes := []rune(t)
		i, ok := asInt(idx)
		if !ok {
			return nil, errors.NewAgentErrorAt(errors.KindRuntime, line, "string indices must be integers")
		}
		n := int64(len(runes))
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return nil, errors.NewAgentErrorAt(errors.KindRuntime, line, "string index out of range")
		}
		return string(runes[i]), nil
	case *pyDict:
		v, found, err := t.Get(idx)
		if err != nil {
			return nil, errors.NewAgentErrorAt(errors.KindRuntime, line, "%v", err)
		}
		if !found {
			return nil, errors.NewAgentErrorAt(errors.KindRuntime, line, "KeyError: %s", pyRepr(idx))
		}
		return v, nil
	case rangeVal:
		i, ok := asInt(idx)
		if !ok {
			return nil, errors.NewAgentErrorAt(errors.KindRuntime, line, "range indices must be integers")
		}
		n := t.Len()
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return nil, errors.NewAgentErrorAt(errors.KindRuntime, line, "range object index out of range")
		}
		return t.Start + i*t.Step, nil
	default:
		return nil, errors.NewAgentErrorAt(errors.KindRuntime, line, "'%s' object is not subscriptable", typeName(obj))
	}
}

func seqIndex(items []value, idx value, kind string, line int) (value, error) {
	i, ok := asInt(idx)
	if !ok {
		return nil, errors.NewAgentErrorAt(errors.KindRuntime, line, "%s indices must be integers, not %s", kind, typeName(idx))
	}
	n := int64(len(items))
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, errors.NewAgentErrorAt(errors.KindRuntime, line, "%s index out of range", kind)
	}
	return items[i], nil
}

func (ev *evaluator) evalSlice(t *sliceExpr, e *env) (value, error) {
	obj, err := ev.eval(t.X, e)
	if err != nil {
		return nil, err
	}
	evalOpt := func(x expr) (int64, bool, error) {
		if x == nil {
			return 0, false, nil
		}
		v, err := ev.eval(x, e)
		if err != nil {
			return 0, false, err
		}
		if v == nil {
			return 0, false, nil
		}
		i, ok := asInt(v)
		if !ok {
			return 0, false, ev.runtimeErr(t.Line(), "slice indices must be integers or None")
		}
		return i, true, nil
	}
	lo, hasLo, err := evalOpt(t.Lo)
	if err != nil {
		return nil, err
	}
	hi, hasHi, err := evalOpt(t.Hi)
	if err != nil {
		return nil, err
	}
	st, hasSt, err := evalOpt(t.St)
	if err != nil {
		return nil, err
	}
	step := int64(1)
	if hasSt {
		step = st
	}
	if step == 0 {
		return nil, ev.runtimeErr(t.Line(), "slice step cannot be zero")
	}

	switch o := obj.(type) {
	case string:
		runes := []rune(o)
		out := sliceItems(runesToValues(runes), lo, hasLo, hi, hasHi, step)
		var sb strings.Builder
		for _, v := range out {
			sb.WriteString(v.(string))
		}
		return sb.String(), nil
	case *pyList:
		return &pyList{Items: sliceItems(o.Items, lo, hasLo, hi, hasHi, step)}, nil
	case *pyTuple:
		return &pyTuple{Items: sliceItems(o.Items, lo, hasLo, hi, hasHi, step)}, nil
	default:
		return nil, ev.runtimeErr(t.Line(), "'%s' object is not sliceable", typeName(obj))
	}
}

func runesToValues(rs []rune) []value {
	out := make([]value, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

func sliceItems(items []value, lo int64, hasLo bool, hi int64, hasHi bool, step int64) []value {
	n := int64(len(items))
	clampIdx := func(i int64, low, high int64) int64 {
		if i < 0 {
			i += n
		}
		if i < low {
			i = low
		}
		if i > high {
			i = high
		}
		return i
	}
	var start, stop int64
	if step > 0 {
		start, stop = 0, n
		if hasLo {
			start = clampIdx(lo, 0, n)
		}
		if hasHi {
			stop = clampIdx(hi, 0, n)
		}
		var out []value
		for i := start; i < stop; i += step {
			out = append(out, items[i])
		}
		return out
	}
	start, stop = n-1, -1
	if hasLo {
		start = clampIdx(lo, -1, n-1)
	}
	if hasHi {
		stop = clampIdx(hi, -1, n-1)
		if hi < 0 && hi+n < 0 {
			stop = -1
		}
	}
	var out []value
	for i := start; i > stop; i += step {
		out = append(out, items[i])
	}
	return out
}

// evalAttr 属性访问：拒绝下划线开头属性，其余按类型分派到方法表或模块属性
func (ev *evaluator) evalAttr(t *attrExpr, e *env) (value, error) {
	if strings.HasPrefix(t.Name, "_") {
		return nil, ev.runtimeErr(t.Line(), "access to attribute %q is forbidden", t.Name)
	}
	obj, err := ev.eval(t.X, e)
	if err != nil {
		return nil, err
	}
	if mod, ok := obj.(*pyModule); ok {
		v, found := mod.Attrs[t.Name]
		if !found {
			return nil, ev.runtimeErr(t.Line(), "module %q has no attribute %q", mod.Name, t.Name)
		}
		return v, nil
	}
	if m := methodFor(obj, t.Name); m != nil {
		return m, nil
	}
	return nil, ev.runtimeErr(t.Line(), "'%s' object has no attribute %q", typeName(obj), t.Name)
}

func (ev *evaluator) evalCall(t *callExpr, e *env) (value, error) {
	fn, err := ev.eval(t.Fn, e)
	if err != nil {
		return nil, err
	}
	args := make([]value, 0, len(t.Args))
	for _, a := range t.Args {
		v, err := ev.eval(a, e)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	var kwargs map[string]value
	if len(t.Kwargs) > 0 {
		kwargs = make(map[string]value, len(t.Kwargs))
		for _, kw := range t.Kwargs {
			v, err := ev.eval(kw.Value, e)
			if err != nil {
				return nil, err
			}
			kwargs[kw.Name] = v
		}
	}
	return ev.callValue(fn, args, kwargs, t.Line())
}

func (ev *evaluator) callValue(fn value, args []value, kwargs map[string]value, line int) (value, error) {
	switch f := fn.(type) {
	case *builtinFunc:
		return f.Fn(ev, line, args, kwargs)
	case *pyFunc:
		return ev.callFunc(f, args, kwargs, line)
	default:
		return nil, ev.runtimeErr(line, "'%s' object is not callable", typeName(fn))
	}
}

func (ev *evaluator) callFunc(f *pyFunc, args []value, kwargs map[string]value, line int) (value, error) {
	ev.callDepth++
	defer func() { ev.callDepth-- }()
	if ev.opts.MaxCallDepth > 0 && ev.callDepth > ev.opts.MaxCallDepth {
		return nil, errors.NewAgentErrorAt(errors.KindResourceLimit, line,
			"maximum call depth exceeded (%d)", ev.opts.MaxCallDepth)
	}

	local := newEnv(f.Env)
	if len(args) > len(f.Params) {
		return nil, ev.runtimeErr(line, "%s() takes %d positional arguments but %d were given",
			funcName(f), len(f.Params), len(args))
	}
	bound := make([]bool, len(f.Params))
	for i, a := range args {
		local.set(f.Params[i].Name, a)
		bound[i] = true
	}
	for name, v := range kwargs {
		idx := -1
		for i, p := range f.Params {
			if p.Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ev.runtimeErr(line, "%s() got an unexpected keyword argument %q", funcName(f), name)
		}
		if bound[idx] {
			return nil, ev.runtimeErr(line, "%s() got multiple values for argument %q", funcName(f), name)
		}
		local.set(name, v)
		bound[idx] = true
	}
	for i, p := range f.Params {
		if bound[i] {
			continue
		}
		if f.HasDef[i] {
			local.set(p.Name, f.Default[i])
			continue
		}
		return nil, ev.runtimeErr(line, "%s() missing required argument %q", funcName(f), p.Name)
	}

	if f.Expr != nil {
		return ev.eval(f.Expr, local)
	}
	_, err := ev.execBlock(f.Body, local)
	if err != nil {
		if ret, ok := err.(returnSignal); ok {
			return ret.v, nil
		}
		return nil, err
	}
	return nil, nil
}

func funcName(f *pyFunc) string {
	if f.Name == "" {
		return "<lambda>"
	}
	return f.Name
}

func (ev *evaluator) evalComprehension(t *comprehensionExpr, e *env) (value, error) {
	var list []value
	d := newDict()
	s := newSet()

	var run func(ci int, scope *env) error
	run = func(ci int, scope *env) error {
		if ci == len(t.Clauses) {
			switch t.Kind {
			case compDict:
				k, err := ev.eval(t.Key, scope)
				if err != nil {
					return err
				}
				v, err := ev.eval(t.Elt, scope)
				if err != nil {
					return err
				}
				if err := d.Set(k, v); err != nil {
					return errors.NewAgentErrorAt(errors.KindRuntime, t.Line(), "%v", err)
				}
			case compSet:
				v, err := ev.eval(t.Elt, scope)
				if err != nil {
					return err
				}
				if err := s.Add(v); err != nil {
					return errors.NewAgentErrorAt(errors.KindRuntime, t.Line(), "%v", err)
				}
			default:
				v, err := ev.eval(t.Elt, scope)
				if err != nil {
					return err
				}
				list = append(list, v)
			}
			return nil
		}
		cl := t.Clauses[ci]
		iter, err := ev.eval(cl.Iter, scope)
		if err != nil {
			return err
		}
		return ev.iterate(iter, t.Line(), func(item value) error {
			if err := ev.tickLoop(t.Line()); err != nil {
				return err
			}
			if err := ev.assign(cl.Target, item, scope); err != nil {
				return err
			}
			for _, cond := range cl.Conds {
				cv, err := ev.eval(cond, scope)
				if err != nil {
					return err
				}
				if !truthy(cv) {
					return nil
				}
			}
			return run(ci+1, scope)
		})
	}

	scope := newEnv(e)
	if err := run(0, scope); err != nil {
		return nil, err
	}
	switch t.Kind {
	case compDict:
		return d, nil
	case compSet:
		return s, nil
	default:
		// 生成器物化为列表
		return &pyList{Items: list}, nil
	}
}
