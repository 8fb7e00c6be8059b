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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"agent-platform/pkg/errors"
)

// value 是解释器运行时值：int64 / float64 / string / bool / nil
// 与下面的复合类型。复合类型一律以指针传递，保持引用语义。
type value interface{}

type pyList struct {
	Items []value
}

type pyTuple struct {
	Items []value
}

// pyDict 保持插入序；键以规范化字符串索引，值存 (key, val) 对
type pyDict struct {
	keys  []string
	pairs map[string]dictPair
}

type dictPair struct {
	Key value
	Val value
}

func newDict() *pyDict {
	return &pyDict{pairs: make(map[string]dictPair)}
}

func (d *pyDict) Set(k, v value) error {
	ck, err := hashKey(k)
	if err != nil {
		return err
	}
	if _, ok := d.pairs[ck]; !ok {
		d.keys = append(d.keys, ck)
	}
	d.pairs[ck] = dictPair{Key: k, Val: v}
	return nil
}

func (d *pyDict) Get(k value) (value, bool, error) {
	ck, err := hashKey(k)
	if err != nil {
		return nil, false, err
	}
	p, ok := d.pairs[ck]
	if !ok {
		return nil, false, nil
	}
	return p.Val, true, nil
}

func (d *pyDict) Delete(k value) (bool, error) {
	ck, err := hashKey(k)
	if err != nil {
		return false, err
	}
	if _, ok := d.pairs[ck]; !ok {
		return false, nil
	}
	delete(d.pairs, ck)
	for i, key := range d.keys {
		if key == ck {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	return true, nil
}

func (d *pyDict) Len() int { return len(d.keys) }

func (d *pyDict) Pairs() []dictPair {
	out := make([]dictPair, 0, len(d.keys))
	for _, k := range d.keys {
		out = append(out, d.pairs[k])
	}
	return out
}

// pySet 保持插入序
type pySet struct {
	keys  []string
	elems map[string]value
}

func newSet() *pySet {
	return &pySet{elems: make(map[string]value)}
}

func (s *pySet) Add(v value) error {
	ck, err := hashKey(v)
	if err != nil {
		return err
	}
	if _, ok := s.elems[ck]; !ok {
		s.keys = append(s.keys, ck)
		s.elems[ck] = v
	}
	return nil
}

func (s *pySet) Has(v value) (bool, error) {
	ck, err := hashKey(v)
	if err != nil {
		return false, err
	}
	_, ok := s.elems[ck]
	return ok, nil
}

func (s *pySet) Remove(v value) (bool, error) {
	ck, err := hashKey(v)
	if err != nil {
		return false, err
	}
	if _, ok := s.elems[ck]; !ok {
		return false, nil
	}
	delete(s.elems, ck)
	for i, k := range s.keys {
		if k == ck {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *pySet) Len() int { return len(s.keys) }

func (s *pySet) Items() []value {
	out := make([]value, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.elems[k])
	}
	return out
}

// pyFunc 用户定义函数（def 或 lambda），捕获定义处环境
type pyFunc struct {
	Name    string
	Params  []param
	Body    []stmt // def
	Expr    expr   // lambda
	Env     *env
	Default []value // 与 Params 对齐，未给默认值的位置为 nil 占位（用 hasDef 区分）
	HasDef  []bool
}

// builtinFunc 内建函数与方法
type builtinFunc struct {
	Name string
	Fn   func(ev *evaluator, line int, args []value, kwargs map[string]value) (value, error)
}

// pyModule 允许导入的模块对象
type pyModule struct {
	Name  string
	Attrs map[string]value
}

// rangeVal 惰性 range，不物化大区间
type rangeVal struct {
	Start, Stop, Step int64
}

func (r rangeVal) Len() int64 {
	if r.Step > 0 {
		if r.Stop <= r.Start {
			return 0
		}
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	}
	if r.Stop >= r.Start {
		return 0
	}
	return (r.Start - r.Stop + (-r.Step) - 1) / (-r.Step)
}

// hashKey 为可哈希值生成规范化键；list/dict/set 不可哈希
func hashKey(v value) (string, error) {
	switch t := v.(type) {
	case nil:
		return "N", nil
	case bool:
		// Python 中 True == 1、False == 0，哈希一致
		if t {
			return "i1", nil
		}
		return "i0", nil
	case int64:
		return "i" + strconv.FormatInt(t, 10), nil
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) && math.Abs(t) < 1e18 {
			return "i" + strconv.FormatInt(int64(t), 10), nil
		}
		return "f" + strconv.FormatFloat(t, 'g', -1, 64), nil
	case string:
		return "s" + t, nil
	case *pyTuple:
		var sb strings.Builder
		sb.WriteString("t(")
		for _, el := range t.Items {
			k, err := hashKey(el)
			if err != nil {
				return "", err
			}
			sb.WriteString(k)
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
		return sb.String(), nil
	default:
		return "", errors.NewAgentError(errors.KindRuntime, fmt.Sprintf("unhashable type: '%s'", typeName(v)))
	}
}

func typeName(v value) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *pyList:
		return "list"
	case *pyTuple:
		return "tuple"
	case *pyDict:
		return "dict"
	case *pySet:
		return "set"
	case *pyFunc, *builtinFunc:
		return "function"
	case *pyModule:
		return "module"
	case rangeVal:
		return "range"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// formatFloat 按 Python repr 习惯输出浮点：整数值带 ".0"
func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	// Go 的 "1e+06" 风格与 Python 的 "1e+06" 一致性处理
	if strings.Contains(s, "e") && !strings.Contains(s, "e+") && !strings.Contains(s, "e-") {
		s = strings.Replace(s, "e", "e+", 1)
	}
	return s
}

// pyStr 等价于 Python str()
func pyStr(v value) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return formatFloat(t)
	case string:
		return t
	default:
		return pyRepr(v)
	}
}

// pyRepr 等价于 Python repr()
func pyRepr(v value) string {
	switch t := v.(type) {
	case string:
		return reprString(t)
	case *pyList:
		parts := make([]string, len(t.Items))
		for i, el := range t.Items {
			parts[i] = pyRepr(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *pyTuple:
		parts := make([]string, len(t.Items))
		for i, el := range t.Items {
			parts[i] = pyRepr(el)
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *pyDict:
		pairs := t.Pairs()
		parts := make([]string, len(pairs))
		for i, p := range pairs {
			parts[i] = pyRepr(p.Key) + ": " + pyRepr(p.Val)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *pySet:
		if t.Len() == 0 {
			return "set()"
		}
		items := t.Items()
		parts := make([]string, len(items))
		for i, el := range items {
			parts[i] = pyRepr(el)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *pyFunc:
		name := t.Name
		if name == "" {
			name = "<lambda>"
		}
		return "<function " + name + ">"
	case *builtinFunc:
		return "<built-in function " + t.Name + ">"
	case *pyModule:
		return "<module '" + t.Name + "'>"
	case rangeVal:
		if t.Step == 1 {
			return fmt.Sprintf("range(%d, %d)", t.Start, t.Stop)
		}
		return fmt.Sprintf("range(%d, %d, %d)", t.Start, t.Stop, t.Step)
	default:
		return pyStr(v)
	}
}

func reprString(s string) string {
	quote := byte('\'')
	if strings.Contains(s, "'") && !strings.Contains(s, "\"") {
		quote = '"'
	}
	var sb strings.Builder
	sb.WriteByte(quote)
	for _, r := range s {
		switch r {
		case '\n':
			sb.WriteString("\\n")
		case '\t':
			sb.WriteString("\\t")
		case '\r':
			sb.WriteString("\\r")
		case '\\':
			sb.WriteString("\\\\")
		case rune(quote):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}

func truthy(v value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case *pyList:
		return len(t.Items) > 0
	case *pyTuple:
		return len(t.Items) > 0
	case *pyDict:
		return t.Len() > 0
	case *pySet:
		return t.Len() > 0
	case rangeVal:
		return t.Len() > 0
	default:
		return true
	}
}

// asFloat 数值拉平到 float64；bool 参与算术时为 0/1
func asFloat(v value) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asInt(v value) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// pyEqual 等价于 Python ==
func pyEqual(a, b value) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	switch at := a.(type) {
	case nil:
		return b == nil
	case string:
		bs, ok := b.(string)
		return ok && at == bs
	case *pyList:
		bl, ok := b.(*pyList)
		return ok && equalSeq(at.Items, bl.Items)
	case *pyTuple:
		bt, ok := b.(*pyTuple)
		return ok && equalSeq(at.Items, bt.Items)
	case *pyDict:
		bd, ok := b.(*pyDict)
		if !ok || at.Len() != bd.Len() {
			return false
		}
		for _, p := range at.Pairs() {
			bv, found, err := bd.Get(p.Key)
			if err != nil || !found || !pyEqual(p.Val, bv) {
				return false
			}
		}
		return true
	case *pySet:
		bs, ok := b.(*pySet)
		if !ok || at.Len() != bs.Len() {
			return false
		}
		for _, el := range at.Items() {
			has, err := bs.Has(el)
			if err != nil || !has {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func equalSeq(a, b []value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pyEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// pyCompare 返回 -1/0/1；不可比较时报错
func pyCompare(a, b value) (int, error) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), nil
		}
	}
	aItems, aok := seqItems(a)
	bItems, bok := seqItems(b)
	if aok && bok && typeName(a) == typeName(b) {
		for i := 0; i < len(aItems) && i < len(bItems); i++ {
			c, err := pyCompare(aItems[i], bItems[i])
			if err != nil {
				return 0, err
			}
			if c != 0 {
				return c, nil
			}
		}
		switch {
		case len(aItems) < len(bItems):
			return -1, nil
		case len(aItems) > len(bItems):
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, errors.NewAgentError(errors.KindRuntime,
		fmt.Sprintf("'<' not supported between instances of '%s' and '%s'", typeName(a), typeName(b)))
}

func seqItems(v value) ([]value, bool) {
	switch t := v.(type) {
	case *pyList:
		return t.Items, true
	case *pyTuple:
		return t.Items, true
	}
	return nil, false
}

// sortValues 对切片做 Python 风格稳定排序
func sortValues(items []value, keyFn func(value) (value, error), reverse bool) error {
	type keyed struct {
		key value
		val value
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		k := it
		if keyFn != nil {
			var err error
			k, err = keyFn(it)
			if err != nil {
				return err
			}
		}
		ks[i] = keyed{key: k, val: it}
	}
	var sortErr error
	sort.SliceStable(ks, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		c, err := pyCompare(ks[i].key, ks[j].key)
		if err != nil {
			sortErr = err
			return false
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	if sortErr != nil {
		return sortErr
	}
	for i := range ks {
		items[i] = ks[i].val
	}
	return nil
}
