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

package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-platform/internal/tool"
)

func mustTool(t *testing.T, name string) tool.Tool {
	t.Helper()
	tl, err := tool.New(tool.Definition{
		Name:        name,
		Description: "test tool " + name,
		Inputs: map[string]tool.Input{
			"q": {Type: tool.TypeString, Description: "query"},
		},
		OutputType: tool.TypeString,
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return args["q"], nil
	})
	require.NoError(t, err)
	return tl
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(mustTool(t, "search")))

	got, ok := r.Get("search")
	require.True(t, ok)
	assert.Equal(t, "search", got.Definition().Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegister_Duplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(mustTool(t, "search")))
	err := r.Register(mustTool(t, "search"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegister_InvalidDefinition(t *testing.T) {
	r := New()
	bad := &rawTool{def: tool.Definition{
		Name:        "bad",
		Description: "broken",
		Inputs: map[string]tool.Input{
			"x": {Type: "matrix", Description: "nope"},
		},
		OutputType: tool.TypeString,
	}}
	require.Error(t, r.Register(bad))
	_, ok := r.Get("bad")
	assert.False(t, ok)
}

type rawTool struct{ def tool.Definition }

func (r *rawTool) Definition() tool.Definition { return r.def }
func (r *rawTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return nil, nil
}

func TestList_Sorted(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(mustTool(t, "zeta")))
	require.NoError(t, r.Register(mustTool(t, "alpha")))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Definition().Name)
	assert.Equal(t, "zeta", list[1].Definition().Name)
}

func TestSchemasForLLM(t *testing.T) {
	r := New()
	tl, err := tool.New(tool.Definition{
		Name:        "weather",
		Description: "查天气",
		Inputs: map[string]tool.Input{
			"city": {Type: tool.TypeString, Description: "城市名"},
			"units": {
				Type: tool.TypeString, Description: "单位",
				Nullable: true, Default: "metric", HasDefault: true,
			},
		},
		OutputType: tool.TypeObject,
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)
	require.NoError(t, r.Register(tl))

	raw, err := r.SchemasForLLM()
	require.NoError(t, err)

	var schemas []ToolSchemaForLLM
	require.NoError(t, json.Unmarshal(raw, &schemas))
	require.Len(t, schemas, 1)
	assert.Equal(t, "weather", schemas[0].Name)

	params := schemas[0].Parameters
	assert.Equal(t, "object", params["type"])
	required, _ := params["required"].([]any)
	assert.Equal(t, []any{"city"}, required)
}
