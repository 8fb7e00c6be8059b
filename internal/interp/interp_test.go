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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-platform/pkg/errors"
)

func run(t *testing.T, code string) *Result {
	t.Helper()
	res, err := New(Options{}).Execute(context.Background(), code)
	require.NoError(t, err)
	return res
}

func runErr(t *testing.T, code string) error {
	t.Helper()
	_, err := New(Options{}).Execute(context.Background(), code)
	require.Error(t, err)
	return err
}

func TestExecute_TrueDivisionReport(t *testing.T) {
	res := run(t, "(2 / 2) * 4")
	assert.Equal(t, "Stdout:\n\nOutput: 4.0", res.Report())
	assert.Equal(t, float64(4), res.Value)
}

func TestExecute_PrintCapture(t *testing.T) {
	res := run(t, "print('hello', 42)")
	assert.Equal(t, "hello 42\n", res.Stdout)
	assert.False(t, res.HasValue)
	assert.Equal(t, "Stdout:\nhello 42\n", res.Report())
}

func TestExecute_FinalAnswerShortCircuits(t *testing.T) {
	res := run(t, "print('before')\nfinal_answer(7)\nprint('after')")
	assert.True(t, res.FinalAnswer)
	assert.Equal(t, int64(7), res.Value)
	assert.Equal(t, "before\n", res.Stdout)
	assert.NotContains(t, res.Stdout, "after")
}

func TestExecute_NamespacePersists(t *testing.T) {
	it := New(Options{})
	_, err := it.Execute(context.Background(), "x = 10\ndef double(n):\n    return n * 2")
	require.NoError(t, err)
	res, err := it.Execute(context.Background(), "double(x) + 1")
	require.NoError(t, err)
	assert.Equal(t, int64(21), res.Value)
}

func TestExecute_ResetClearsNamespace(t *testing.T) {
	it := New(Options{})
	_, err := it.Execute(context.Background(), "x = 1")
	require.NoError(t, err)
	it.Reset()
	_, err = it.Execute(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not defined")
}

func TestImport_Unauthorized(t *testing.T) {
	err := runErr(t, "import os")
	assert.Equal(t, errors.KindUnauthorizedImport, errors.KindOf(err))
	assert.Contains(t, err.Error(), `"os"`)
	// 拒绝消息要报出当前放行集合
	assert.Contains(t, err.Error(), "authorized imports are:")
	assert.Contains(t, err.Error(), "math")
}

func TestImport_UnauthorizedNamesConfiguredSet(t *testing.T) {
	it := New(Options{AuthorizedImports: []string{"re", "math"}})
	_, err := it.Execute(context.Background(), "import os")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "math, re")
}

func TestImport_MathModule(t *testing.T) {
	res := run(t, "import math\nmath.sqrt(16)")
	assert.Equal(t, float64(4), res.Value)
}

func TestImport_FromClause(t *testing.T) {
	res := run(t, "from math import sqrt, pi\nsqrt(pi * 0 + 9)")
	assert.Equal(t, float64(3), res.Value)
}

func TestImport_AuthorizedButUnimplemented(t *testing.T) {
	// 白名单内无内建实现的模块：import 本身必须成功
	res, err := New(Options{}).Execute(context.Background(), "import itertools\n1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Value)
}

func TestImport_CustomAllowList(t *testing.T) {
	it := New(Options{AuthorizedImports: []string{"math"}})
	_, err := it.Execute(context.Background(), "import random")
	require.Error(t, err)
	assert.Equal(t, errors.KindUnauthorizedImport, errors.KindOf(err))
}

func TestUnsupportedConstruct_Try(t *testing.T) {
	err := runErr(t, "try:\n    pass\nexcept:\n    pass")
	assert.Equal(t, errors.KindUnsupportedConstruct, errors.KindOf(err))
	assert.Contains(t, err.Error(), "try/except")
}

func TestUnsupportedConstruct_Class(t *testing.T) {
	err := runErr(t, "class Foo:\n    pass")
	assert.Equal(t, errors.KindUnsupportedConstruct, errors.KindOf(err))
}

func TestLoopIterationCap(t *testing.T) {
	it := New(Options{MaxLoopIterations: 50})
	_, err := it.Execute(context.Background(), "i = 0\nwhile True:\n    i = i + 1")
	require.Error(t, err)
	assert.Equal(t, errors.KindResourceLimit, errors.KindOf(err))
}

func TestCallDepthCap(t *testing.T) {
	it := New(Options{MaxCallDepth: 10})
	_, err := it.Execute(context.Background(), "def f(n):\n    return f(n + 1)\nf(0)")
	require.Error(t, err)
	assert.Equal(t, errors.KindResourceLimit, errors.KindOf(err))
}

func TestUnderscoreAttributeForbidden(t *testing.T) {
	err := runErr(t, "x = 'abc'\nx.__class__")
	assert.Contains(t, err.Error(), "forbidden")
}

func TestFString(t *testing.T) {
	res := run(t, "name = 'world'\nn = 3\nf'hello {name} {n + 1}'")
	assert.Equal(t, "hello world 4", res.Value)
}

func TestFString_Escapes(t *testing.T) {
	res := run(t, "f'{{literal}} {1 + 1}'")
	assert.Equal(t, "{literal} 2", res.Value)
}

func TestComprehension_List(t *testing.T) {
	res := run(t, "[x * x for x in range(5) if x % 2 == 0]")
	assert.Equal(t, []any{int64(0), int64(4), int64(16)}, res.Value)
}

func TestComprehension_Dict(t *testing.T) {
	res := run(t, "{str(x): x * 2 for x in range(3)}")
	assert.Equal(t, map[string]any{"0": int64(0), "1": int64(2), "2": int64(4)}, res.Value)
}

func TestSlicing(t *testing.T) {
	res := run(t, "letters = ['a', 'b', 'c', 'd', 'e']\nletters[1:4]")
	assert.Equal(t, []any{"b", "c", "d"}, res.Value)

	res = run(t, "'hello'[::-1]")
	assert.Equal(t, "olleh", res.Value)
}

func TestNegativeIndex(t *testing.T) {
	res := run(t, "[1, 2, 3][-1]")
	assert.Equal(t, int64(3), res.Value)
}

func TestFloorDivAndMod(t *testing.T) {
	res := run(t, "(-7) // 2")
	assert.Equal(t, int64(-4), res.Value)

	res = run(t, "(-7) % 2")
	assert.Equal(t, int64(1), res.Value)
}

func TestDivisionByZero(t *testing.T) {
	err := runErr(t, "1 / 0")
	assert.Equal(t, errors.KindRuntime, errors.KindOf(err))
	assert.Contains(t, err.Error(), "division by zero")
}

func TestFunctionDefaultsAndKwargs(t *testing.T) {
	code := strings.Join([]string{
		"def greet(name, greeting='hi'):",
		"    return greeting + ', ' + name",
		"greet('bob') + ' / ' + greet('alice', greeting='yo')",
	}, "\n")
	res := run(t, code)
	assert.Equal(t, "hi, bob / yo, alice", res.Value)
}

func TestTupleUnpacking(t *testing.T) {
	res := run(t, "a, b = 1, 2\na + b")
	assert.Equal(t, int64(3), res.Value)

	res = run(t, "total = 0\nfor k, v in {'a': 1, 'b': 2}.items():\n    total += v\ntotal")
	assert.Equal(t, int64(3), res.Value)
}

func TestStringMethods(t *testing.T) {
	res := run(t, "'  Hello World  '.strip().lower().replace('world', 'there')")
	assert.Equal(t, "hello there", res.Value)

	res = run(t, "','.join(['a', 'b', 'c'])")
	assert.Equal(t, "a,b,c", res.Value)

	res = run(t, "'a,b,c'.split(',')")
	assert.Equal(t, []any{"a", "b", "c"}, res.Value)
}

func TestListMethods(t *testing.T) {
	res := run(t, "xs = [3, 1, 2]\nxs.append(0)\nxs.sort()\nxs")
	assert.Equal(t, []any{int64(0), int64(1), int64(2), int64(3)}, res.Value)
}

func TestDictMethods(t *testing.T) {
	res := run(t, "d = {'a': 1}\nd['b'] = 2\nd.get('c', 99)")
	assert.Equal(t, int64(99), res.Value)
}

func TestBuiltins(t *testing.T) {
	res := run(t, "sum(range(1, 11))")
	assert.Equal(t, int64(55), res.Value)

	res = run(t, "max([3, 1, 4, 1, 5], key=lambda x: -x)")
	assert.Equal(t, int64(1), res.Value)

	res = run(t, "sorted(['banana', 'apple'], reverse=True)")
	assert.Equal(t, []any{"banana", "apple"}, res.Value)

	res = run(t, "list(zip([1, 2], ['a', 'b']))")
	assert.Equal(t, []any{[]any{int64(1), "a"}, []any{int64(2), "b"}}, res.Value)
}

func TestChainedComparison(t *testing.T) {
	res := run(t, "1 < 2 < 3")
	assert.Equal(t, true, res.Value)

	res = run(t, "1 < 2 > 5")
	assert.Equal(t, false, res.Value)
}

func TestConditionalExpr(t *testing.T) {
	res := run(t, "'big' if 10 > 5 else 'small'")
	assert.Equal(t, "big", res.Value)
}

func TestWhileBreakContinue(t *testing.T) {
	code := strings.Join([]string{
		"total = 0",
		"i = 0",
		"while i < 10:",
		"    i += 1",
		"    if i % 2 == 0:",
		"        continue",
		"    if i > 7:",
		"        break",
		"    total += i",
		"total",
	}, "\n")
	res := run(t, code)
	assert.Equal(t, int64(16), res.Value) // 1 + 3 + 5 + 7
}

func TestRegisterFunc(t *testing.T) {
	it := New(Options{})
	it.RegisterFunc("lookup", func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return "value:" + args[0].(string), nil
	})
	res, err := it.Execute(context.Background(), "lookup('key')")
	require.NoError(t, err)
	assert.Equal(t, "value:key", res.Value)
}

func TestSetVariable(t *testing.T) {
	it := New(Options{})
	it.SetVariable("payload", map[string]any{"count": 5})
	res, err := it.Execute(context.Background(), "payload['count'] * 2")
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Value)
}

func TestStdoutPreservedOnError(t *testing.T) {
	res, err := New(Options{}).Execute(context.Background(), "print('partial')\n1 / 0")
	require.Error(t, err)
	assert.Equal(t, "partial\n", res.Stdout)
}

func TestParseError_Line(t *testing.T) {
	err := runErr(t, "x = 1\ny = = 2")
	var agentErr *errors.AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, errors.KindParse, agentErr.Kind)
	assert.Equal(t, 2, agentErr.Line)
}

func TestReModule(t *testing.T) {
	res := run(t, "import re\nre.findall('[0-9]+', 'a1 b22 c333')")
	assert.Equal(t, []any{"1", "22", "333"}, res.Value)
}

func TestStatisticsModule(t *testing.T) {
	res := run(t, "import statistics\nstatistics.mean([1, 2, 3, 4])")
	assert.Equal(t, float64(2.5), res.Value)
}

func TestFloatFormatting(t *testing.T) {
	assert.Equal(t, "4.0", pyStr(float64(4)))
	assert.Equal(t, "2.5", pyStr(2.5))
	assert.Equal(t, "True", pyStr(true))
	assert.Equal(t, "None", pyStr(nil))
	assert.Equal(t, "[1, 'a']", pyRepr(&pyList{Items: []value{int64(1), "a"}}))
}

func TestPowerRightAssociative(t *testing.T) {
	res := run(t, "2 ** 3 ** 2")
	assert.Equal(t, int64(512), res.Value)
}

func TestOutputLimit(t *testing.T) {
	it := New(Options{MaxOutputBytes: 100})
	_, err := it.Execute(context.Background(), "for i in range(1000):\n    print('xxxxxxxxxx')")
	require.Error(t, err)
	assert.Equal(t, errors.KindResourceLimit, errors.KindOf(err))
}
