// Copyright 2026 fanjia1024

package secrets

import (
	"context"
	"testing"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "model/openai/api_key"); err == nil {
		t.Error("Get on empty store should fail")
	}
	if err := s.Set(ctx, "model/openai/api_key", "sk-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := s.Get(ctx, "model/openai/api_key")
	if err != nil || v != "sk-1" {
		t.Errorf("Get = %q, %v", v, err)
	}
	if err := s.Delete(ctx, "model/openai/api_key"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "model/openai/api_key"); err == nil {
		t.Error("Get after Delete should fail")
	}
}

func TestEnvStore_KeyMapping(t *testing.T) {
	ctx := context.Background()
	s := NewEnvStore()
	t.Setenv("MODEL_OPENAI_API_KEY", "sk-env")

	v, err := s.Get(ctx, "model/openai/api_key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "sk-env" {
		t.Errorf("Get = %q, want sk-env", v)
	}
}

func TestResolveAPIKey_Fallback(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if got := ResolveAPIKey(ctx, s, "openai", "configured"); got != "configured" {
		t.Errorf("fallback = %q", got)
	}
	_ = s.Set(ctx, "model/openai/api_key", "sk-store")
	if got := ResolveAPIKey(ctx, s, "openai", "configured"); got != "sk-store" {
		t.Errorf("store value = %q", got)
	}
}
