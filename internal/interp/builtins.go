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
	"math"
	"strconv"
	"strings"

	"agent-platform/pkg/errors"
)

func argErr(line int, format string, args ...interface{}) error {
	return errors.NewAgentErrorAt(errors.KindRuntime, line, format, args...)
}

func needArgs(name string, line int, args []value, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return argErr(line, "%s() takes %d to %d arguments, got %d", name, min, max, len(args))
	}
	return nil
}

// builtins 全局内建函数表
var builtins = map[string]*builtinFunc{}

func reg(name string, fn func(ev *evaluator, line int, args []value, kwargs map[string]value) (value, error)) {
	builtins[name] = &builtinFunc{Name: name, Fn: fn}
}

func init() {
	reg("print", builtinPrint)
	reg("range", builtinRange)
	reg("len", builtinLen)
	reg("str", builtinStr)
	reg("repr", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("repr", line, args, 1, 1); err != nil {
			return nil, err
		}
		return pyRepr(args[0]), nil
	})
	reg("int", builtinInt)
	reg("float", builtinFloat)
	reg("bool", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if len(args) == 0 {
			return false, nil
		}
		return truthy(args[0]), nil
	})
	reg("list", builtinList)
	reg("tuple", builtinTuple)
	reg("dict", builtinDict)
	reg("set", builtinSet)
	reg("abs", builtinAbs)
	reg("min", builtinMin)
	reg("max", builtinMax)
	reg("sum", builtinSum)
	reg("round", builtinRound)
	reg("sorted", builtinSorted)
	reg("reversed", builtinReversed)
	reg("enumerate", builtinEnumerate)
	reg("zip", builtinZip)
	reg("any", builtinAny)
	reg("all", builtinAll)
	reg("map", builtinMap)
	reg("filter", builtinFilter)
	reg("divmod", builtinDivmod)
	reg("final_answer", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("final_answer", line, args, 1, 1); err != nil {
			return nil, err
		}
		return nil, finalAnswerSignal{v: args[0]}
	})
}

func builtinPrint(ev *evaluator, line int, args []value, kwargs map[string]value) (value, error) {
	sep := " "
	end := "\n"
	if v, ok := kwargs["sep"]; ok {
		s, isStr := v.(string)
		if !isStr {
			return nil, argErr(line, "sep must be a string")
		}
		sep = s
	}
	if v, ok := kwargs["end"]; ok {
		s, isStr := v.(string)
		if !isStr {
			return nil, argErr(line, "end must be a string")
		}
		end = s
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = pyStr(a)
	}
	ev.stdout.WriteString(strings.Join(parts, sep))
	ev.stdout.WriteString(end)
	if ev.opts.MaxOutputBytes > 0 && ev.stdout.Len() > ev.opts.MaxOutputBytes {
		return nil, errors.NewAgentErrorAt(errors.KindResourceLimit, line,
			"output limit exceeded (%d bytes)", ev.opts.MaxOutputBytes)
	}
	return nil, nil
}

func builtinRange(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("range", line, args, 1, 3); err != nil {
		return nil, err
	}
	ints := make([]int64, len(args))
	for i, a := range args {
		n, ok := asInt(a)
		if !ok {
			return nil, argErr(line, "range() argument must be an integer, not %s", typeName(a))
		}
		ints[i] = n
	}
	switch len(ints) {
	case 1:
		return rangeVal{Start: 0, Stop: ints[0], Step: 1}, nil
	case 2:
		return rangeVal{Start: ints[0], Stop: ints[1], Step: 1}, nil
	default:
		if ints[2] == 0 {
			return nil, argErr(line, "range() arg 3 must not be zero")
		}
		return rangeVal{Start: ints[0], Stop: ints[1], Step: ints[2]}, nil
	}
}

func builtinLen(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("len", line, args, 1, 1); err != nil {
		return nil, err
	}
	switch t := args[0].(type) {
	case string:
		return int64(len([]rune(t))), nil
	case *pyList:
		return int64(len(t.Items)), nil
	case *pyTuple:
		return int64(len(t.Items)), nil
	case *pyDict:
		return int64(t.Len()), nil
	case *pySet:
		return int64(t.Len()), nil
	case rangeVal:
		return t.Len(), nil
	default:
		return nil, argErr(line, "object of type '%s' has no len()", typeName(args[0]))
	}
}

func builtinStr(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if len(args) == 0 {
		return "", nil
	}
	if err := needArgs("str", line, args, 1, 1); err != nil {
		return nil, err
	}
	return pyStr(args[0]), nil
}

func builtinInt(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if len(args) == 0 {
		return int64(0), nil
	}
	if err := needArgs("int", line, args, 1, 2); err != nil {
		return nil, err
	}
	switch t := args[0].(type) {
	case int64:
		return t, nil
	case float64:
		return int64(math.Trunc(t)), nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		base := 10
		if len(args) == 2 {
			b, ok := asInt(args[1])
			if !ok {
				return nil, argErr(line, "int() base must be an integer")
			}
			base = int(b)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(t), base, 64)
		if err != nil {
			return nil, argErr(line, "invalid literal for int() with base %d: %s", base, pyRepr(t))
		}
		return n, nil
	default:
		return nil, argErr(line, "int() argument must be a string or a number, not '%s'", typeName(args[0]))
	}
}

func builtinFloat(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if len(args) == 0 {
		return float64(0), nil
	}
	if err := needArgs("float", line, args, 1, 1); err != nil {
		return nil, err
	}
	switch t := args[0].(type) {
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	case bool:
		if t {
			return float64(1), nil
		}
		return float64(0), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, argErr(line, "could not convert string to float: %s", pyRepr(t))
		}
		return f, nil
	default:
		return nil, argErr(line, "float() argument must be a string or a number, not '%s'", typeName(args[0]))
	}
}

func collect(ev *evaluator, v value, line int) ([]value, error) {
	var out []value
	err := ev.iterate(v, line, func(item value) error {
		out = append(out, item)
		return nil
	})
	return out, err
}

func builtinList(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if len(args) == 0 {
		return &pyList{}, nil
	}
	if err := needArgs("list", line, args, 1, 1); err != nil {
		return nil, err
	}
	items, err := collect(ev, args[0], line)
	if err != nil {
		return nil, err
	}
	return &pyList{Items: items}, nil
}

func builtinTuple(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if len(args) == 0 {
		return &pyTuple{}, nil
	}
	if err := needArgs("tuple", line, args, 1, 1); err != nil {
		return nil, err
	}
	items, err := collect(ev, args[0], line)
	if err != nil {
		return nil, err
	}
	return &pyTuple{Items: items}, nil
}

func builtinDict(ev *evaluator, line int, args []value, kwargs map[string]value) (value, error) {
	d := newDict()
	if len(args) == 1 {
		switch t := args[0].(type) {
		case *pyDict:
			for _, p := range t.Pairs() {
				if err := d.Set(p.Key, p.Val); err != nil {
					return nil, argErr(line, "%v", err)
				}
			}
		case *pyList, *pyTuple:
			items, _ := seqItems(args[0])
			for _, it := range items {
				pair, ok := seqItems(it)
				if !ok || len(pair) != 2 {
					return nil, argErr(line, "dict update sequence element is not a length-2 sequence")
				}
				if err := d.Set(pair[0], pair[1]); err != nil {
					return nil, argErr(line, "%v", err)
				}
			}
		default:
			return nil, argErr(line, "'%s' object is not iterable", typeName(args[0]))
		}
	} else if len(args) > 1 {
		return nil, argErr(line, "dict expected at most 1 positional argument, got %d", len(args))
	}
	for k, v := range kwargs {
		if err := d.Set(k, v); err != nil {
			return nil, argErr(line, "%v", err)
		}
	}
	return d, nil
}

func builtinSet(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	s := newSet()
	if len(args) == 0 {
		return s, nil
	}
	if err := needArgs("set", line, args, 1, 1); err != nil {
		return nil, err
	}
	err := ev.iterate(args[0], line, func(item value) error {
		return s.Add(item)
	})
	if err != nil {
		return nil, argErr(line, "%v", err)
	}
	return s, nil
}

func builtinAbs(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("abs", line, args, 1, 1); err != nil {
		return nil, err
	}
	switch t := args[0].(type) {
	case int64:
		if t < 0 {
			return -t, nil
		}
		return t, nil
	case float64:
		return math.Abs(t), nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, argErr(line, "bad operand type for abs(): '%s'", typeName(args[0]))
	}
}

func minMax(ev *evaluator, name string, line int, args []value, kwargs map[string]value, wantMax bool) (value, error) {
	var items []value
	if len(args) == 1 {
		var err error
		items, err = collect(ev, args[0], line)
		if err != nil {
			return nil, err
		}
	} else {
		items = args
	}
	if len(items) == 0 {
		return nil, argErr(line, "%s() arg is an empty sequence", name)
	}
	keyOf := func(v value) (value, error) {
		if kv, ok := kwargs["key"]; ok {
			return ev.callValue(kv, []value{v}, nil, line)
		}
		return v, nil
	}
	best := items[0]
	bestKey, err := keyOf(best)
	if err != nil {
		return nil, err
	}
	for _, it := range items[1:] {
		k, err := keyOf(it)
		if err != nil {
			return nil, err
		}
		c, err := pyCompare(k, bestKey)
		if err != nil {
			return nil, argErr(line, "%v", err)
		}
		if (wantMax && c > 0) || (!wantMax && c < 0) {
			best, bestKey = it, k
		}
	}
	return best, nil
}

func builtinMin(ev *evaluator, line int, args []value, kwargs map[string]value) (value, error) {
	return minMax(ev, "min", line, args, kwargs, false)
}

func builtinMax(ev *evaluator, line int, args []value, kwargs map[string]value) (value, error) {
	return minMax(ev, "max", line, args, kwargs, true)
}

func builtinSum(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("sum", line, args, 1, 2); err != nil {
		return nil, err
	}
	items, err := collect(ev, args[0], line)
	if err != nil {
		return nil, err
	}
	var acc value = int64(0)
	if len(args) == 2 {
		acc = args[1]
	}
	for _, it := range items {
		acc, err = ev.binaryOp(tokPlus, acc, it, line)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func builtinRound(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("round", line, args, 1, 2); err != nil {
		return nil, err
	}
	f, ok := asFloat(args[0])
	if !ok {
		return nil, argErr(line, "type %s doesn't define round()", typeName(args[0]))
	}
	if len(args) == 1 {
		// banker's rounding
		r := math.RoundToEven(f)
		return int64(r), nil
	}
	nd, ok := asInt(args[1])
	if !ok {
		return nil, argErr(line, "round() ndigits must be an integer")
	}
	scale := math.Pow(10, float64(nd))
	return math.RoundToEven(f*scale) / scale, nil
}

func builtinSorted(ev *evaluator, line int, args []value, kwargs map[string]value) (value, error) {
	if err := needArgs("sorted", line, args, 1, 1); err != nil {
		return nil, err
	}
	items, err := collect(ev, args[0], line)
	if err != nil {
		return nil, err
	}
	reverse := false
	if rv, ok := kwargs["reverse"]; ok {
		reverse = truthy(rv)
	}
	var keyFn func(value) (value, error)
	if kv, ok := kwargs["key"]; ok {
		keyFn = func(v value) (value, error) {
			return ev.callValue(kv, []value{v}, nil, line)
		}
	}
	if err := sortValues(items, keyFn, reverse); err != nil {
		return nil, argErr(line, "%v", err)
	}
	return &pyList{Items: items}, nil
}

func builtinReversed(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("reversed", line, args, 1, 1); err != nil {
		return nil, err
	}
	items, err := collect(ev, args[0], line)
	if err != nil {
		return nil, err
	}
	out := make([]value, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return &pyList{Items: out}, nil
}

func builtinEnumerate(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("enumerate", line, args, 1, 2); err != nil {
		return nil, err
	}
	start := int64(0)
	if len(args) == 2 {
		n, ok := asInt(args[1])
		if !ok {
			return nil, argErr(line, "enumerate() start must be an integer")
		}
		start = n
	}
	items, err := collect(ev, args[0], line)
	if err != nil {
		return nil, err
	}
	out := make([]value, len(items))
	for i, it := range items {
		out[i] = &pyTuple{Items: []value{start + int64(i), it}}
	}
	return &pyList{Items: out}, nil
}

func builtinZip(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if len(args) == 0 {
		return &pyList{}, nil
	}
	seqs := make([][]value, len(args))
	minLen := -1
	for i, a := range args {
		items, err := collect(ev, a, line)
		if err != nil {
			return nil, err
		}
		seqs[i] = items
		if minLen < 0 || len(items) < minLen {
			minLen = len(items)
		}
	}
	out := make([]value, minLen)
	for i := 0; i < minLen; i++ {
		t := make([]value, len(seqs))
		for j := range seqs {
			t[j] = seqs[j][i]
		}
		out[i] = &pyTuple{Items: t}
	}
	return &pyList{Items: out}, nil
}

func builtinAny(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("any", line, args, 1, 1); err != nil {
		return nil, err
	}
	items, err := collect(ev, args[0], line)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if truthy(it) {
			return true, nil
		}
	}
	return false, nil
}

func builtinAll(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("all", line, args, 1, 1); err != nil {
		return nil, err
	}
	items, err := collect(ev, args[0], line)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if !truthy(it) {
			return false, nil
		}
	}
	return true, nil
}

func builtinMap(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("map", line, args, 2, 2); err != nil {
		return nil, err
	}
	items, err := collect(ev, args[1], line)
	if err != nil {
		return nil, err
	}
	out := make([]value, len(items))
	for i, it := range items {
		v, err := ev.callValue(args[0], []value{it}, nil, line)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return &pyList{Items: out}, nil
}

func builtinFilter(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("filter", line, args, 2, 2); err != nil {
		return nil, err
	}
	items, err := collect(ev, args[1], line)
	if err != nil {
		return nil, err
	}
	var out []value
	for _, it := range items {
		keep := truthy(it)
		if args[0] != nil {
			v, err := ev.callValue(args[0], []value{it}, nil, line)
			if err != nil {
				return nil, err
			}
			keep = truthy(v)
		}
		if keep {
			out = append(out, it)
		}
	}
	return &pyList{Items: out}, nil
}

func builtinDivmod(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
	if err := needArgs("divmod", line, args, 2, 2); err != nil {
		return nil, err
	}
	q, err := ev.binaryOp(tokDblSlash, args[0], args[1], line)
	if err != nil {
		return nil, err
	}
	r, err := ev.binaryOp(tokPercent, args[0], args[1], line)
	if err != nil {
		return nil, err
	}
	return &pyTuple{Items: []value{q, r}}, nil
}
