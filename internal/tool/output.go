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
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MediaRef 媒体输出的结构化引用
type MediaRef struct {
	Path     string `json:"path"`
	MIMEType string `json:"mime_type"`
}

// Output 工具结果的规范表示：文本或媒体引用
type Output struct {
	Type  string    `json:"type"` // text / media
	Text  string    `json:"text,omitempty"`
	Media *MediaRef `json:"media,omitempty"`
}

// CoerceOutput 按声明的输出类型把原始返回值折叠为规范表示。
// image/audio 期望字符串路径；其余类型折叠为文本。
func CoerceOutput(outputType string, v any) Output {
	switch outputType {
	case TypeImage, TypeAudio:
		if path, ok := v.(string); ok {
			mime := "image/png"
			if outputType == TypeAudio {
				mime = "audio/wav"
			}
			return Output{Type: "media", Media: &MediaRef{Path: path, MIMEType: mime}}
		}
	}
	return Output{Type: "text", Text: Stringify(v)}
}

// Stringify 把任意工具返回值转为观察文本
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		// 与沙箱一致的浮点渲染：整数值带 .0 后缀
		if math.IsInf(t, 1) {
			return "inf"
		}
		if math.IsInf(t, -1) {
			return "-inf"
		}
		if math.IsNaN(t) {
			return "nan"
		}
		s := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case []any, map[string]any:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", t)
	}
}
