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

package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-platform/internal/tool"
)

func TestHTTPTool_Definition(t *testing.T) {
	def := NewHTTPTool().Definition()
	require.NoError(t, tool.ValidateDefinition(def))
	assert.Equal(t, "http.request", def.Name)
	assert.True(t, def.Inputs["body"].Nullable)
	assert.False(t, def.Inputs["url"].Nullable)
}

func TestHTTPTool_Invoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "token-1", r.Header.Get("X-Auth"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	out, err := NewHTTPTool().Invoke(context.Background(), map[string]any{
		"method":  "post",
		"url":     srv.URL,
		"body":    `{"q":1}`,
		"headers": map[string]any{"X-Auth": "token-1"},
	})
	require.NoError(t, err)
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, http.StatusCreated, m["status_code"])
	assert.JSONEq(t, `{"ok":true}`, m["body"].(string))
}

func TestHTTPTool_EmptyURL(t *testing.T) {
	_, err := NewHTTPTool().Invoke(context.Background(), map[string]any{
		"method": "GET",
		"url":    "",
	})
	require.Error(t, err)
}

func TestCalcTool_Invoke(t *testing.T) {
	out, err := NewCalcTool().Invoke(context.Background(), map[string]any{
		"expression": "(2 + 3) * 4",
	})
	require.NoError(t, err)
	assert.Equal(t, "20", out)
}

func TestCalcTool_MathFunctions(t *testing.T) {
	out, err := NewCalcTool().Invoke(context.Background(), map[string]any{
		"expression": "math.sqrt(16)",
	})
	require.NoError(t, err)
	assert.Equal(t, "4.0", out)
}

func TestCalcTool_InvalidExpression(t *testing.T) {
	_, err := NewCalcTool().Invoke(context.Background(), map[string]any{
		"expression": "1 +",
	})
	require.Error(t, err)
}
