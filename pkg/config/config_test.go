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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api:
  port: 9000
  host: "127.0.0.1"
agent:
  max_steps: 6
sandbox:
  authorized_imports: ["statistics"]
  max_loop_iterations: 500
log:
  level: "debug"
`
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port: got %d", cfg.API.Port)
	}
	if cfg.Agent.MaxSteps != 6 {
		t.Errorf("Agent.MaxSteps: got %d", cfg.Agent.MaxSteps)
	}
	if len(cfg.Sandbox.AuthorizedImports) != 1 || cfg.Sandbox.AuthorizedImports[0] != "statistics" {
		t.Errorf("Sandbox.AuthorizedImports: got %v", cfg.Sandbox.AuthorizedImports)
	}
	if cfg.Sandbox.MaxLoopIterations != 500 {
		t.Errorf("Sandbox.MaxLoopIterations: got %d", cfg.Sandbox.MaxLoopIterations)
	}
	if !cfg.Sandbox.PersistNamespaceOrDefault() {
		t.Error("persist_namespace 未配置时应默认 true")
	}
}

func TestLoadConfig_EnvAPIKey(t *testing.T) {
	dir := t.TempDir()
	yaml := `
model:
  default: openai
  providers:
    openai:
      api_key: "${TEST_OPENAI_KEY}"
`
	path := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Model.Providers["openai"].APIKey != "sk-test" {
		t.Errorf("APIKey: got %q", cfg.Model.Providers["openai"].APIKey)
	}
}
