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
)

// methodFor 为内建类型返回绑定方法；未知方法返回 nil
func methodFor(obj value, name string) *builtinFunc {
	switch t := obj.(type) {
	case string:
		return strMethod(t, name)
	case *pyList:
		return listMethod(t, name)
	case *pyTuple:
		return tupleMethod(t, name)
	case *pyDict:
		return dictMethod(t, name)
	case *pySet:
		return setMethod(t, name)
	}
	return nil
}

func bound(name string, fn func(ev *evaluator, line int, args []value, kwargs map[string]value) (value, error)) *builtinFunc {
	return &builtinFunc{Name: name, Fn: fn}
}

func strMethod(s string, name string) *builtinFunc {
	switch name {
	case "upper":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			return strings.ToUpper(s), nil
		})
	case "lower":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			return strings.ToLower(s), nil
		})
	case "strip":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if len(args) == 1 {
				cut, ok := args[0].(string)
				if !ok {
					return nil, argErr(line, "strip arg must be a string")
				}
				return strings.Trim(s, cut), nil
			}
			return strings.TrimSpace(s), nil
		})
	case "lstrip":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if len(args) == 1 {
				cut, ok := args[0].(string)
				if !ok {
					return nil, argErr(line, "lstrip arg must be a string")
				}
				return strings.TrimLeft(s, cut), nil
			}
			return strings.TrimLeft(s, " \t\n\r"), nil
		})
	case "rstrip":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if len(args) == 1 {
				cut, ok := args[0].(string)
				if !ok {
					return nil, argErr(line, "rstrip arg must be a string")
				}
				return strings.TrimRight(s, cut), nil
			}
			return strings.TrimRight(s, " \t\n\r"), nil
		})
	case "split":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			var parts []string
			if len(args) == 0 || args[0] == nil {
				parts = strings.Fields(s)
			} else {
				sep, ok := args[0].(string)
				if !ok {
					return nil, argErr(line, "split sep must be a string")
				}
				if sep == "" {
					return nil, argErr(line, "empty separator")
				}
				parts = strings.Split(s, sep)
			}
			out := make([]value, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return &pyList{Items: out}, nil
		})
	case "splitlines":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			trimmed := strings.TrimSuffix(s, "\n")
			if trimmed == "" {
				return &pyList{}, nil
			}
			parts := strings.Split(trimmed, "\n")
			out := make([]value, len(parts))
			for i, p := range parts {
				out[i] = strings.TrimSuffix(p, "\r")
			}
			return &pyList{Items: out}, nil
		})
	case "join":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("join", line, args, 1, 1); err != nil {
				return nil, err
			}
			items, err := collect(ev, args[0], line)
			if err != nil {
				return nil, err
			}
			parts := make([]string, len(items))
			for i, it := range items {
				str, ok := it.(string)
				if !ok {
					return nil, argErr(line, "sequence item %d: expected str instance, %s found", i, typeName(it))
				}
				parts[i] = str
			}
			return strings.Join(parts, s), nil
		})
	case "replace":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("replace", line, args, 2, 3); err != nil {
				return nil, err
			}
			old, ok1 := args[0].(string)
			repl, ok2 := args[1].(string)
			if !ok1 || !ok2 {
				return nil, argErr(line, "replace arguments must be strings")
			}
			n := -1
			if len(args) == 3 {
				c, ok := asInt(args[2])
				if !ok {
					return nil, argErr(line, "replace count must be an integer")
				}
				n = int(c)
			}
			return strings.Replace(s, old, repl, n), nil
		})
	case "startswith":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("startswith", line, args, 1, 1); err != nil {
				return nil, err
			}
			prefix, ok := args[0].(string)
			if !ok {
				return nil, argErr(line, "startswith arg must be a string")
			}
			return strings.HasPrefix(s, prefix), nil
		})
	case "endswith":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("endswith", line, args, 1, 1); err != nil {
				return nil, err
			}
			suffix, ok := args[0].(string)
			if !ok {
				return nil, argErr(line, "endswith arg must be a string")
			}
			return strings.HasSuffix(s, suffix), nil
		})
	case "find":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("find", line, args, 1, 1); err != nil {
				return nil, err
			}
			sub, ok := args[0].(string)
			if !ok {
				return nil, argErr(line, "find arg must be a string")
			}
			return int64(strings.Index(s, sub)), nil
		})
	case "index":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("index", line, args, 1, 1); err != nil {
				return nil, err
			}
			sub, ok := args[0].(string)
			if !ok {
				return nil, argErr(line, "index arg must be a string")
			}
			i := strings.Index(s, sub)
			if i < 0 {
				return nil, argErr(line, "substring not found")
			}
			return int64(i), nil
		})
	case "count":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("count", line, args, 1, 1); err != nil {
				return nil, err
			}
			sub, ok := args[0].(string)
			if !ok {
				return nil, argErr(line, "count arg must be a string")
			}
			return int64(strings.Count(s, sub)), nil
		})
	case "title":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			return strings.Title(strings.ToLower(s)), nil
		})
	case "capitalize":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if s == "" {
				return s, nil
			}
			return strings.ToUpper(s[:1]) + strings.ToLower(s[1:]), nil
		})
	case "isdigit":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if s == "" {
				return false, nil
			}
			for _, r := range s {
				if r < '0' || r > '9' {
					return false, nil
				}
			}
			return true, nil
		})
	case "isalpha":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if s == "" {
				return false, nil
			}
			for _, r := range s {
				if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
					return false, nil
				}
			}
			return true, nil
		})
	case "format":
		return bound(name, func(ev *evaluator, line int, args []value, kwargs map[string]value) (value, error) {
			return formatStr(s, args, kwargs, line)
		})
	case "zfill":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("zfill", line, args, 1, 1); err != nil {
				return nil, err
			}
			w, ok := asInt(args[0])
			if !ok {
				return nil, argErr(line, "zfill width must be an integer")
			}
			if int64(len(s)) >= w {
				return s, nil
			}
			return strings.Repeat("0", int(w)-len(s)) + s, nil
		})
	}
	return nil
}

// formatStr 支持 {}、{0}、{name} 三种占位
func formatStr(tmpl string, args []value, kwargs map[string]value, line int) (value, error) {
	var sb strings.Builder
	auto := 0
	i := 0
	for i < len(tmpl) {
		c := tmpl[i]
		if c == '{' {
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				sb.WriteByte('{')
				i += 2
				continue
			}
			j := strings.IndexByte(tmpl[i:], '}')
			if j < 0 {
				return nil, argErr(line, "single '{' encountered in format string")
			}
			field := tmpl[i+1 : i+j]
			var v value
			if field == "" {
				if auto >= len(args) {
					return nil, argErr(line, "format index out of range")
				}
				v = args[auto]
				auto++
			} else if n, err := parseUint(field); err == nil {
				if n >= len(args) {
					return nil, argErr(line, "format index out of range")
				}
				v = args[n]
			} else {
				kv, ok := kwargs[field]
				if !ok {
					return nil, argErr(line, "format field %q not found", field)
				}
				v = kv
			}
			sb.WriteString(pyStr(v))
			i += j + 1
			continue
		}
		if c == '}' {
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				sb.WriteByte('}')
				i += 2
				continue
			}
			return nil, argErr(line, "single '}' encountered in format string")
		}
		sb.WriteByte(c)
		i++
	}
	return sb.String(), nil
}

func parseUint(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, errEmptyField
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errEmptyField
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, nil
}

var errEmptyField = &fieldError{}

type fieldError struct{}

func (*fieldError) Error() string { return "not a numeric field" }

func listMethod(l *pyList, name string) *builtinFunc {
	switch name {
	case "append":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("append", line, args, 1, 1); err != nil {
				return nil, err
			}
			l.Items = append(l.Items, args[0])
			return nil, nil
		})
	case "extend":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("extend", line, args, 1, 1); err != nil {
				return nil, err
			}
			items, err := collect(ev, args[0], line)
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, items...)
			return nil, nil
		})
	case "insert":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("insert", line, args, 2, 2); err != nil {
				return nil, err
			}
			i, ok := asInt(args[0])
			if !ok {
				return nil, argErr(line, "insert index must be an integer")
			}
			n := int64(len(l.Items))
			if i < 0 {
				i += n
				if i < 0 {
					i = 0
				}
			}
			if i > n {
				i = n
			}
			l.Items = append(l.Items, nil)
			copy(l.Items[i+1:], l.Items[i:])
			l.Items[i] = args[1]
			return nil, nil
		})
	case "pop":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if len(l.Items) == 0 {
				return nil, argErr(line, "pop from empty list")
			}
			i := int64(len(l.Items) - 1)
			if len(args) == 1 {
				n, ok := asInt(args[0])
				if !ok {
					return nil, argErr(line, "pop index must be an integer")
				}
				i = n
				if i < 0 {
					i += int64(len(l.Items))
				}
				if i < 0 || i >= int64(len(l.Items)) {
					return nil, argErr(line, "pop index out of range")
				}
			}
			v := l.Items[i]
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return v, nil
		})
	case "remove":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("remove", line, args, 1, 1); err != nil {
				return nil, err
			}
			for i, it := range l.Items {
				if pyEqual(it, args[0]) {
					l.Items = append(l.Items[:i], l.Items[i+1:]...)
					return nil, nil
				}
			}
			return nil, argErr(line, "list.remove(x): x not in list")
		})
	case "sort":
		return bound(name, func(ev *evaluator, line int, args []value, kwargs map[string]value) (value, error) {
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
			if err := sortValues(l.Items, keyFn, reverse); err != nil {
				return nil, argErr(line, "%v", err)
			}
			return nil, nil
		})
	case "reverse":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			for i, j := 0, len(l.Items)-1; i < j; i, j = i+1, j-1 {
				l.Items[i], l.Items[j] = l.Items[j], l.Items[i]
			}
			return nil, nil
		})
	case "index":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("index", line, args, 1, 1); err != nil {
				return nil, err
			}
			for i, it := range l.Items {
				if pyEqual(it, args[0]) {
					return int64(i), nil
				}
			}
			return nil, argErr(line, "%s is not in list", pyRepr(args[0]))
		})
	case "count":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("count", line, args, 1, 1); err != nil {
				return nil, err
			}
			n := int64(0)
			for _, it := range l.Items {
				if pyEqual(it, args[0]) {
					n++
				}
			}
			return n, nil
		})
	case "clear":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			l.Items = nil
			return nil, nil
		})
	case "copy":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			items := make([]value, len(l.Items))
			copy(items, l.Items)
			return &pyList{Items: items}, nil
		})
	}
	return nil
}

func tupleMethod(t *pyTuple, name string) *builtinFunc {
	switch name {
	case "index":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("index", line, args, 1, 1); err != nil {
				return nil, err
			}
			for i, it := range t.Items {
				if pyEqual(it, args[0]) {
					return int64(i), nil
				}
			}
			return nil, argErr(line, "tuple.index(x): x not in tuple")
		})
	case "count":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("count", line, args, 1, 1); err != nil {
				return nil, err
			}
			n := int64(0)
			for _, it := range t.Items {
				if pyEqual(it, args[0]) {
					n++
				}
			}
			return n, nil
		})
	}
	return nil
}

func dictMethod(d *pyDict, name string) *builtinFunc {
	switch name {
	case "get":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("get", line, args, 1, 2); err != nil {
				return nil, err
			}
			v, found, err := d.Get(args[0])
			if err != nil {
				return nil, argErr(line, "%v", err)
			}
			if found {
				return v, nil
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return nil, nil
		})
	case "keys":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			pairs := d.Pairs()
			out := make([]value, len(pairs))
			for i, p := range pairs {
				out[i] = p.Key
			}
			return &pyList{Items: out}, nil
		})
	case "values":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			pairs := d.Pairs()
			out := make([]value, len(pairs))
			for i, p := range pairs {
				out[i] = p.Val
			}
			return &pyList{Items: out}, nil
		})
	case "items":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			pairs := d.Pairs()
			out := make([]value, len(pairs))
			for i, p := range pairs {
				out[i] = &pyTuple{Items: []value{p.Key, p.Val}}
			}
			return &pyList{Items: out}, nil
		})
	case "pop":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("pop", line, args, 1, 2); err != nil {
				return nil, err
			}
			v, found, err := d.Get(args[0])
			if err != nil {
				return nil, argErr(line, "%v", err)
			}
			if found {
				if _, err := d.Delete(args[0]); err != nil {
					return nil, argErr(line, "%v", err)
				}
				return v, nil
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return nil, argErr(line, "KeyError: %s", pyRepr(args[0]))
		})
	case "update":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("update", line, args, 1, 1); err != nil {
				return nil, err
			}
			other, ok := args[0].(*pyDict)
			if !ok {
				return nil, argErr(line, "update argument must be a dict")
			}
			for _, p := range other.Pairs() {
				if err := d.Set(p.Key, p.Val); err != nil {
					return nil, argErr(line, "%v", err)
				}
			}
			return nil, nil
		})
	case "setdefault":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("setdefault", line, args, 1, 2); err != nil {
				return nil, err
			}
			v, found, err := d.Get(args[0])
			if err != nil {
				return nil, argErr(line, "%v", err)
			}
			if found {
				return v, nil
			}
			var def value
			if len(args) == 2 {
				def = args[1]
			}
			if err := d.Set(args[0], def); err != nil {
				return nil, argErr(line, "%v", err)
			}
			return def, nil
		})
	case "clear":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			d.keys = nil
			d.pairs = make(map[string]dictPair)
			return nil, nil
		})
	case "copy":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			nd := newDict()
			for _, p := range d.Pairs() {
				if err := nd.Set(p.Key, p.Val); err != nil {
					return nil, argErr(line, "%v", err)
				}
			}
			return nd, nil
		})
	}
	return nil
}

func setMethod(s *pySet, name string) *builtinFunc {
	switch name {
	case "add":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("add", line, args, 1, 1); err != nil {
				return nil, err
			}
			if err := s.Add(args[0]); err != nil {
				return nil, argErr(line, "%v", err)
			}
			return nil, nil
		})
	case "remove":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("remove", line, args, 1, 1); err != nil {
				return nil, err
			}
			removed, err := s.Remove(args[0])
			if err != nil {
				return nil, argErr(line, "%v", err)
			}
			if !removed {
				return nil, argErr(line, "KeyError: %s", pyRepr(args[0]))
			}
			return nil, nil
		})
	case "discard":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("discard", line, args, 1, 1); err != nil {
				return nil, err
			}
			if _, err := s.Remove(args[0]); err != nil {
				return nil, argErr(line, "%v", err)
			}
			return nil, nil
		})
	case "union":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			out := newSet()
			for _, it := range s.Items() {
				if err := out.Add(it); err != nil {
					return nil, argErr(line, "%v", err)
				}
			}
			for _, a := range args {
				items, err := collect(ev, a, line)
				if err != nil {
					return nil, err
				}
				for _, it := range items {
					if err := out.Add(it); err != nil {
						return nil, argErr(line, "%v", err)
					}
				}
			}
			return out, nil
		})
	case "intersection":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("intersection", line, args, 1, 1); err != nil {
				return nil, err
			}
			other, err := builtinSet(ev, line, args, nil)
			if err != nil {
				return nil, err
			}
			os := other.(*pySet)
			out := newSet()
			for _, it := range s.Items() {
				has, err := os.Has(it)
				if err != nil {
					return nil, argErr(line, "%v", err)
				}
				if has {
					if err := out.Add(it); err != nil {
						return nil, argErr(line, "%v", err)
					}
				}
			}
			return out, nil
		})
	case "difference":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			if err := needArgs("difference", line, args, 1, 1); err != nil {
				return nil, err
			}
			other, err := builtinSet(ev, line, args, nil)
			if err != nil {
				return nil, err
			}
			os := other.(*pySet)
			out := newSet()
			for _, it := range s.Items() {
				has, err := os.Has(it)
				if err != nil {
					return nil, argErr(line, "%v", err)
				}
				if !has {
					if err := out.Add(it); err != nil {
						return nil, argErr(line, "%v", err)
					}
				}
			}
			return out, nil
		})
	case "clear":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			s.keys = nil
			s.elems = make(map[string]value)
			return nil, nil
		})
	case "copy":
		return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
			out := newSet()
			for _, it := range s.Items() {
				if err := out.Add(it); err != nil {
					return nil, argErr(line, "%v", err)
				}
			}
			return out, nil
		})
	}
	return nil
}
