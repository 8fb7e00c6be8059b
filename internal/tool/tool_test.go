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

package tool

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-platform/pkg/errors"
)

func validDef() Definition {
	return Definition{
		Name:        "echo",
		Description: "回显输入",
		Inputs: map[string]Input{
			"text": {Type: TypeString, Description: "要回显的文本"},
			"times": {
				Type: TypeNumber, Description: "重复次数",
				Nullable: true, Default: 1, HasDefault: true,
			},
		},
		OutputType: TypeString,
	}
}

func TestValidateDefinition_OK(t *testing.T) {
	require.NoError(t, ValidateDefinition(validDef()))
}

func TestValidateDefinition_BadInputType(t *testing.T) {
	def := validDef()
	def.Inputs["text"] = Input{Type: "varchar", Description: "x"}
	err := ValidateDefinition(def)
	require.Error(t, err)
	assert.Equal(t, errors.KindToolArgument, errors.KindOf(err))
	assert.Contains(t, err.Error(), "varchar")
}

func TestValidateDefinition_BadOutputType(t *testing.T) {
	def := validDef()
	def.OutputType = "blob"
	require.Error(t, ValidateDefinition(def))
}

func TestValidateDefinition_NullableDefaultMismatch(t *testing.T) {
	def := validDef()
	// nullable 为 true 但没有默认值
	def.Inputs["times"] = Input{Type: TypeNumber, Description: "x", Nullable: true}
	err := ValidateDefinition(def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nullable")

	// 有默认值但 nullable 为 false
	def.Inputs["times"] = Input{Type: TypeNumber, Description: "x", Default: 1, HasDefault: true}
	require.Error(t, ValidateDefinition(def))
}

func TestValidateArgs_MissingRequired(t *testing.T) {
	_, err := ValidateArgs(validDef(), map[string]any{"times": 2})
	require.Error(t, err)
	assert.Equal(t, errors.KindToolArgument, errors.KindOf(err))
	assert.Contains(t, err.Error(), `"text"`)
}

func TestValidateArgs_UnknownName(t *testing.T) {
	_, err := ValidateArgs(validDef(), map[string]any{"text": "hi", "volume": 11})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"volume"`)
}

func TestValidateArgs_TypeMismatch(t *testing.T) {
	_, err := ValidateArgs(validDef(), map[string]any{"text": 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects string")
}

func TestValidateArgs_DefaultsApplied(t *testing.T) {
	args, err := ValidateArgs(validDef(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", args["text"])
	assert.Equal(t, 1, args["times"])
}

func TestNew_RejectsInvalidDefinition(t *testing.T) {
	def := validDef()
	def.OutputType = "tensor"
	_, err := New(def, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
}

func TestCoerceOutput(t *testing.T) {
	out := CoerceOutput(TypeString, "hello")
	assert.Equal(t, "text", out.Type)
	assert.Equal(t, "hello", out.Text)

	out = CoerceOutput(TypeImage, "/tmp/chart.png")
	assert.Equal(t, "media", out.Type)
	require.NotNil(t, out.Media)
	assert.Equal(t, "/tmp/chart.png", out.Media.Path)
	assert.Equal(t, "image/png", out.Media.MIMEType)

	out = CoerceOutput(TypeObject, map[string]any{"k": "v"})
	assert.Equal(t, "text", out.Type)
	assert.JSONEq(t, `{"k":"v"}`, out.Text)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "None", Stringify(nil))
	assert.Equal(t, "True", Stringify(true))
	assert.Equal(t, "42", Stringify(42))
	assert.Equal(t, "hello", Stringify("hello"))
	// 浮点渲染与沙箱一致：整数值带 .0，科学计数法保持原样
	assert.Equal(t, "4.0", Stringify(4.0))
	assert.Equal(t, "2.5", Stringify(2.5))
	assert.Equal(t, "1e+21", Stringify(1e21))
	assert.Equal(t, "inf", Stringify(math.Inf(1)))
}
