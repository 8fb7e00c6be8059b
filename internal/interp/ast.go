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

// AST 按封闭白名单建模：解析器只产出这里列出的节点，
// 任何越界语法在 lex/parse 阶段即报 unsupported_construct。

type node interface {
	Line() int
}

type baseNode struct{ line int }

func (n baseNode) Line() int { return n.line }

// ---- 语句 ----

type stmt interface{ node }

type exprStmt struct {
	baseNode
	X expr
}

type assignStmt struct {
	baseNode
	Targets []expr // Name / indexExpr / attrExpr / tupleExpr；多目标链式赋值
	Value   expr
}

type augAssignStmt struct {
	baseNode
	Target expr
	Op     tokenType // tokPlus 等基础运算符
	Value  expr
}

type ifStmt struct {
	baseNode
	Cond expr
	Body []stmt
	Else []stmt // elif 以嵌套 ifStmt 表达
}

type whileStmt struct {
	baseNode
	Cond expr
	Body []stmt
}

type forStmt struct {
	baseNode
	Target expr // Name 或 tupleExpr
	Iter   expr
	Body   []stmt
}

type funcDefStmt struct {
	baseNode
	Name   string
	Params []param
	Body   []stmt
}

type param struct {
	Name    string
	Default expr // 可为 nil
}

type returnStmt struct {
	baseNode
	Value expr // 可为 nil
}

type breakStmt struct{ baseNode }

type continueStmt struct{ baseNode }

type passStmt struct{ baseNode }

type importStmt struct {
	baseNode
	Module string
	Alias  string // 为空时用 Module
}

type importFromStmt struct {
	baseNode
	Module string
	Names  []importName
}

type importName struct {
	Name  string
	Alias string
}

// ---- 表达式 ----

type expr interface{ node }

type nameExpr struct {
	baseNode
	Name string
}

type intLit struct {
	baseNode
	Value int64
}

type floatLit struct {
	baseNode
	Value float64
}

type strLit struct {
	baseNode
	Value string
}

type fstrLit struct {
	baseNode
	Parts []fpart
	Exprs []expr // 与 Parts 中 Expr 片段一一对应
}

type boolLit struct {
	baseNode
	Value bool
}

type noneLit struct{ baseNode }

type listExpr struct {
	baseNode
	Elems []expr
}

type tupleExpr struct {
	baseNode
	Elems []expr
}

type dictExpr struct {
	baseNode
	Keys   []expr
	Values []expr
}

type setExpr struct {
	baseNode
	Elems []expr
}

type binaryExpr struct {
	baseNode
	Op   tokenType
	L, R expr
}

// compareExpr 支持链式比较 a < b <= c
type compareExpr struct {
	baseNode
	First expr
	Ops   []tokenType // tokLt/tokEq/tokIn/tokNotIn/tokIs/tokIsNot 等
	Rest  []expr
}

type boolOpExpr struct {
	baseNode
	Op     tokenType // tokAnd / tokOr
	Values []expr
}

type unaryExpr struct {
	baseNode
	Op tokenType // tokMinus / tokPlus / tokNot
	X  expr
}

type callExpr struct {
	baseNode
	Fn     expr
	Args   []expr
	Kwargs []kwarg
}

type kwarg struct {
	Name  string
	Value expr
}

type attrExpr struct {
	baseNode
	X    expr
	Name string
}

type indexExpr struct {
	baseNode
	X     expr
	Index expr
}

type sliceExpr struct {
	baseNode
	X          expr
	Lo, Hi, St expr // 均可为 nil
}

type condExpr struct {
	baseNode
	Cond, Then, Else expr // then if cond else else
}

type lambdaExpr struct {
	baseNode
	Params []param
	Body   expr
}

// comprehensionExpr 列表/集合/生成器推导；Kind 区分产出类型
type comprehensionExpr struct {
	baseNode
	Kind    compKind
	Elt     expr
	Key     expr // dict 推导的 key
	Clauses []compClause
}

type compKind int

const (
	compList compKind = iota
	compSet
	compDict
	compGen
)

type compClause struct {
	Target expr
	Iter   expr
	Conds  []expr
}
