package provider

import (
	"testing"

	"github.com/mohammad-safakhou/headliner/config"
)

func TestNewProvider(t *testing.T) {
	for _, name := range []string{"openai", "anthropic"} {
		p, err := NewProvider(config.LLMConfig{Provider: name, APIKey: "k", Model: "m"})
		if err != nil || p == nil {
			t.Fatalf("%s: NewProvider = %v, %v", name, p, err)
		}
	}
	if _, err := NewProvider(config.LLMConfig{Provider: "gemini", APIKey: "k"}); err == nil {
		t.Fatalf("expected unsupported provider error")
	}
	if _, err := NewProvider(config.LLMConfig{Provider: "openai"}); err == nil {
		t.Fatalf("expected missing key error")
	}
}
