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
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"agent-platform/internal/tool"
	"agent-platform/pkg/errors"
)

// HTTPTool 实现 http.request：method、url 必填，body、headers 可选
type HTTPTool struct {
	client *resty.Client
}

// NewHTTPTool 创建 http.request 工具
func NewHTTPTool() *HTTPTool {
	return &HTTPTool{
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// Definition 实现 tool.Tool
func (t *HTTPTool) Definition() tool.Definition {
	return tool.Definition{
		Name:        "http.request",
		Description: "发送 HTTP 请求。传入 method、url，可选 body、headers。返回 status_code 与 body。",
		Inputs: map[string]tool.Input{
			"method": {Type: tool.TypeString, Description: "GET, POST, PUT, DELETE 等"},
			"url":    {Type: tool.TypeString, Description: "请求 URL"},
			"body": {
				Type: tool.TypeString, Description: "请求体（可选）",
				Nullable: true, Default: "", HasDefault: true,
			},
			"headers": {
				Type: tool.TypeObject, Description: "请求头（可选）",
				Nullable: true, Default: map[string]any(nil), HasDefault: true,
			},
		},
		OutputType: tool.TypeObject,
	}
}

// Invoke 实现 tool.Tool
func (t *HTTPTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	method, _ := args["method"].(string)
	urlStr, _ := args["url"].(string)
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" || urlStr == "" {
		return nil, errors.NewAgentError(errors.KindToolExecution, "method and url must not be empty")
	}

	req := t.client.R().SetContext(ctx)
	if body, ok := args["body"].(string); ok && body != "" {
		req.SetBody(body)
	}
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.SetHeader(k, s)
			}
		}
	}

	resp, err := req.Execute(method, urlStr)
	if err != nil {
		return nil, errors.Wrapf(err, "http.request %s %s", method, urlStr)
	}
	return map[string]any{
		"status_code": resp.StatusCode(),
		"body":        string(resp.Body()),
	}, nil
}
