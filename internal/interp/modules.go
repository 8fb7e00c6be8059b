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
	"math/rand"
	"regexp"
	"time"
)

// DefaultAuthorizedImports 默认允许导入的模块
var DefaultAuthorizedImports = []string{
	"collections", "datetime", "itertools", "math", "queue",
	"random", "re", "stat", "statistics", "time", "unicodedata",
}

// stdModule 返回内建模块实现；白名单内但未实现的模块由调用方给空占位
func stdModule(name string) *pyModule {
	switch name {
	case "math":
		return mathModule()
	case "random":
		return randomModule()
	case "statistics":
		return statisticsModule()
	case "time":
		return timeModule()
	case "re":
		return reModule()
	}
	return nil
}

func fn1(name string, f func(float64) float64) *builtinFunc {
	return bound(name, func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs(name, line, args, 1, 1); err != nil {
			return nil, err
		}
		x, ok := asFloat(args[0])
		if !ok {
			return nil, argErr(line, "must be real number, not %s", typeName(args[0]))
		}
		r := f(x)
		if math.IsNaN(r) && !math.IsNaN(x) {
			return nil, argErr(line, "math domain error")
		}
		return r, nil
	})
}

func mathModule() *pyModule {
	attrs := map[string]value{
		"pi":  math.Pi,
		"e":   math.E,
		"tau": 2 * math.Pi,
		"inf": math.Inf(1),
		"nan": math.NaN(),
	}
	attrs["sqrt"] = fn1("sqrt", math.Sqrt)
	attrs["sin"] = fn1("sin", math.Sin)
	attrs["cos"] = fn1("cos", math.Cos)
	attrs["tan"] = fn1("tan", math.Tan)
	attrs["asin"] = fn1("asin", math.Asin)
	attrs["acos"] = fn1("acos", math.Acos)
	attrs["atan"] = fn1("atan", math.Atan)
	attrs["exp"] = fn1("exp", math.Exp)
	attrs["log10"] = fn1("log10", math.Log10)
	attrs["log2"] = fn1("log2", math.Log2)
	attrs["fabs"] = fn1("fabs", math.Abs)
	attrs["log"] = bound("log", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("log", line, args, 1, 2); err != nil {
			return nil, err
		}
		x, ok := asFloat(args[0])
		if !ok {
			return nil, argErr(line, "must be real number, not %s", typeName(args[0]))
		}
		if x <= 0 {
			return nil, argErr(line, "math domain error")
		}
		if len(args) == 2 {
			b, ok := asFloat(args[1])
			if !ok || b <= 0 {
				return nil, argErr(line, "math domain error")
			}
			return math.Log(x) / math.Log(b), nil
		}
		return math.Log(x), nil
	})
	attrs["floor"] = bound("floor", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("floor", line, args, 1, 1); err != nil {
			return nil, err
		}
		x, ok := asFloat(args[0])
		if !ok {
			return nil, argErr(line, "must be real number, not %s", typeName(args[0]))
		}
		return int64(math.Floor(x)), nil
	})
	attrs["ceil"] = bound("ceil", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("ceil", line, args, 1, 1); err != nil {
			return nil, err
		}
		x, ok := asFloat(args[0])
		if !ok {
			return nil, argErr(line, "must be real number, not %s", typeName(args[0]))
		}
		return int64(math.Ceil(x)), nil
	})
	attrs["pow"] = bound("pow", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("pow", line, args, 2, 2); err != nil {
			return nil, err
		}
		x, ok1 := asFloat(args[0])
		y, ok2 := asFloat(args[1])
		if !ok1 || !ok2 {
			return nil, argErr(line, "must be real number")
		}
		return math.Pow(x, y), nil
	})
	attrs["gcd"] = bound("gcd", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("gcd", line, args, 2, 2); err != nil {
			return nil, err
		}
		a, ok1 := asInt(args[0])
		b, ok2 := asInt(args[1])
		if !ok1 || !ok2 {
			return nil, argErr(line, "gcd() requires integers")
		}
		if a < 0 {
			a = -a
		}
		if b < 0 {
			b = -b
		}
		for b != 0 {
			a, b = b, a%b
		}
		return a, nil
	})
	attrs["factorial"] = bound("factorial", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("factorial", line, args, 1, 1); err != nil {
			return nil, err
		}
		n, ok := asInt(args[0])
		if !ok || n < 0 {
			return nil, argErr(line, "factorial() only accepts non-negative integers")
		}
		if n > 20 {
			return nil, argErr(line, "factorial() result too large")
		}
		r := int64(1)
		for i := int64(2); i <= n; i++ {
			r *= i
		}
		return r, nil
	})
	return &pyModule{Name: "math", Attrs: attrs}
}

func randomModule() *pyModule {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attrs := map[string]value{}
	attrs["seed"] = bound("seed", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("seed", line, args, 1, 1); err != nil {
			return nil, err
		}
		n, ok := asInt(args[0])
		if !ok {
			return nil, argErr(line, "seed must be an integer")
		}
		rng = rand.New(rand.NewSource(n))
		return nil, nil
	})
	attrs["random"] = bound("random", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		return rng.Float64(), nil
	})
	attrs["randint"] = bound("randint", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("randint", line, args, 2, 2); err != nil {
			return nil, err
		}
		a, ok1 := asInt(args[0])
		b, ok2 := asInt(args[1])
		if !ok1 || !ok2 || b < a {
			return nil, argErr(line, "randint(a, b) requires integers with a <= b")
		}
		return a + rng.Int63n(b-a+1), nil
	})
	attrs["uniform"] = bound("uniform", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("uniform", line, args, 2, 2); err != nil {
			return nil, err
		}
		a, ok1 := asFloat(args[0])
		b, ok2 := asFloat(args[1])
		if !ok1 || !ok2 {
			return nil, argErr(line, "uniform() requires numbers")
		}
		return a + rng.Float64()*(b-a), nil
	})
	attrs["choice"] = bound("choice", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("choice", line, args, 1, 1); err != nil {
			return nil, err
		}
		items, err := collect(ev, args[0], line)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, argErr(line, "cannot choose from an empty sequence")
		}
		return items[rng.Intn(len(items))], nil
	})
	attrs["shuffle"] = bound("shuffle", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("shuffle", line, args, 1, 1); err != nil {
			return nil, err
		}
		l, ok := args[0].(*pyList)
		if !ok {
			return nil, argErr(line, "shuffle() argument must be a list")
		}
		rng.Shuffle(len(l.Items), func(i, j int) {
			l.Items[i], l.Items[j] = l.Items[j], l.Items[i]
		})
		return nil, nil
	})
	return &pyModule{Name: "random", Attrs: attrs}
}

func statisticsModule() *pyModule {
	nums := func(ev *evaluator, line int, v value) ([]float64, error) {
		items, err := collect(ev, v, line)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, argErr(line, "statistics function requires at least one data point")
		}
		out := make([]float64, len(items))
		for i, it := range items {
			f, ok := asFloat(it)
			if !ok {
				return nil, argErr(line, "can't convert %s to float", typeName(it))
			}
			out[i] = f
		}
		return out, nil
	}
	attrs := map[string]value{}
	attrs["mean"] = bound("mean", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("mean", line, args, 1, 1); err != nil {
			return nil, err
		}
		xs, err := nums(ev, line, args[0])
		if err != nil {
			return nil, err
		}
		sum := 0.0
		for _, x := range xs {
			sum += x
		}
		return sum / float64(len(xs)), nil
	})
	attrs["median"] = bound("median", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("median", line, args, 1, 1); err != nil {
			return nil, err
		}
		xs, err := nums(ev, line, args[0])
		if err != nil {
			return nil, err
		}
		sorted := append([]float64(nil), xs...)
		for i := 1; i < len(sorted); i++ {
			for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
				sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
			}
		}
		n := len(sorted)
		if n%2 == 1 {
			return sorted[n/2], nil
		}
		return (sorted[n/2-1] + sorted[n/2]) / 2, nil
	})
	attrs["stdev"] = bound("stdev", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("stdev", line, args, 1, 1); err != nil {
			return nil, err
		}
		xs, err := nums(ev, line, args[0])
		if err != nil {
			return nil, err
		}
		if len(xs) < 2 {
			return nil, argErr(line, "stdev requires at least two data points")
		}
		mean := 0.0
		for _, x := range xs {
			mean += x
		}
		mean /= float64(len(xs))
		sq := 0.0
		for _, x := range xs {
			sq += (x - mean) * (x - mean)
		}
		return math.Sqrt(sq / float64(len(xs)-1)), nil
	})
	attrs["variance"] = bound("variance", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("variance", line, args, 1, 1); err != nil {
			return nil, err
		}
		xs, err := nums(ev, line, args[0])
		if err != nil {
			return nil, err
		}
		if len(xs) < 2 {
			return nil, argErr(line, "variance requires at least two data points")
		}
		mean := 0.0
		for _, x := range xs {
			mean += x
		}
		mean /= float64(len(xs))
		sq := 0.0
		for _, x := range xs {
			sq += (x - mean) * (x - mean)
		}
		return sq / float64(len(xs)-1), nil
	})
	return &pyModule{Name: "statistics", Attrs: attrs}
}

func timeModule() *pyModule {
	attrs := map[string]value{}
	attrs["time"] = bound("time", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		return float64(time.Now().UnixNano()) / 1e9, nil
	})
	// sleep 受控：封顶 1s，防止代码块拖死执行器
	attrs["sleep"] = bound("sleep", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("sleep", line, args, 1, 1); err != nil {
			return nil, err
		}
		secs, ok := asFloat(args[0])
		if !ok || secs < 0 {
			return nil, argErr(line, "sleep() requires a non-negative number")
		}
		if secs > 1 {
			secs = 1
		}
		select {
		case <-time.After(time.Duration(secs * float64(time.Second))):
		case <-ev.ctx.Done():
		}
		return nil, nil
	})
	return &pyModule{Name: "time", Attrs: attrs}
}

// pyRegexToGo 处理 Python 与 Go 正则的少量写法差异
func pyRegexToGo(pat string) (*regexp.Regexp, error) {
	return regexp.Compile(pat)
}

func reModule() *pyModule {
	attrs := map[string]value{}
	attrs["search"] = bound("search", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("search", line, args, 2, 2); err != nil {
			return nil, err
		}
		pat, ok1 := args[0].(string)
		s, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, argErr(line, "re.search() requires string arguments")
		}
		re, err := pyRegexToGo(pat)
		if err != nil {
			return nil, argErr(line, "invalid regular expression: %v", err)
		}
		m := re.FindStringSubmatch(s)
		if m == nil {
			return nil, nil
		}
		return matchObject(m), nil
	})
	attrs["match"] = bound("match", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("match", line, args, 2, 2); err != nil {
			return nil, err
		}
		pat, ok1 := args[0].(string)
		s, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, argErr(line, "re.match() requires string arguments")
		}
		re, err := pyRegexToGo("^(?:" + pat + ")")
		if err != nil {
			return nil, argErr(line, "invalid regular expression: %v", err)
		}
		m := re.FindStringSubmatch(s)
		if m == nil {
			return nil, nil
		}
		return matchObject(m), nil
	})
	attrs["findall"] = bound("findall", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("findall", line, args, 2, 2); err != nil {
			return nil, err
		}
		pat, ok1 := args[0].(string)
		s, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, argErr(line, "re.findall() requires string arguments")
		}
		re, err := pyRegexToGo(pat)
		if err != nil {
			return nil, argErr(line, "invalid regular expression: %v", err)
		}
		ms := re.FindAllStringSubmatch(s, -1)
		out := make([]value, 0, len(ms))
		for _, m := range ms {
			switch {
			case len(m) == 1:
				out = append(out, m[0])
			case len(m) == 2:
				out = append(out, m[1])
			default:
				groups := make([]value, len(m)-1)
				for i, g := range m[1:] {
					groups[i] = g
				}
				out = append(out, &pyTuple{Items: groups})
			}
		}
		return &pyList{Items: out}, nil
	})
	attrs["sub"] = bound("sub", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("sub", line, args, 3, 3); err != nil {
			return nil, err
		}
		pat, ok1 := args[0].(string)
		repl, ok2 := args[1].(string)
		s, ok3 := args[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return nil, argErr(line, "re.sub() requires string arguments")
		}
		re, err := pyRegexToGo(pat)
		if err != nil {
			return nil, argErr(line, "invalid regular expression: %v", err)
		}
		return re.ReplaceAllString(s, repl), nil
	})
	attrs["split"] = bound("split", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		if err := needArgs("split", line, args, 2, 2); err != nil {
			return nil, err
		}
		pat, ok1 := args[0].(string)
		s, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, argErr(line, "re.split() requires string arguments")
		}
		re, err := pyRegexToGo(pat)
		if err != nil {
			return nil, argErr(line, "invalid regular expression: %v", err)
		}
		parts := re.Split(s, -1)
		out := make([]value, len(parts))
		for i, p := range parts {
			out[i] = p
		}
		return &pyList{Items: out}, nil
	})
	return &pyModule{Name: "re", Attrs: attrs}
}

// matchObject 近似 Match 对象：提供 group(n) 与 groups()
func matchObject(m []string) value {
	groupFn := bound("group", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		idx := int64(0)
		if len(args) == 1 {
			n, ok := asInt(args[0])
			if !ok {
				return nil, argErr(line, "group index must be an integer")
			}
			idx = n
		}
		if idx < 0 || idx >= int64(len(m)) {
			return nil, argErr(line, "no such group")
		}
		return m[idx], nil
	})
	groupsFn := bound("groups", func(ev *evaluator, line int, args []value, _ map[string]value) (value, error) {
		out := make([]value, len(m)-1)
		for i, g := range m[1:] {
			out[i] = g
		}
		return &pyTuple{Items: out}, nil
	})
	return &pyModule{Name: "re.Match", Attrs: map[string]value{
		"group":  groupFn,
		"groups": groupsFn,
	}}
}
