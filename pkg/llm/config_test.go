package llm

import (
	"os"
	"testing"
)

func TestLoadRankerConfig_LLMFallback(t *testing.T) {
	for _, key := range []string{"RANKER_LLM_PROVIDER", "RANKER_LLM_MODEL", "RANKER_LLM_API_KEY", "RANKER_LLM_API_URL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("LLM_MODEL", "llama3")
	t.Setenv("LLM_API_KEY", "sk-llm")
	t.Setenv("LLM_API_URL", "http://localhost:11434")

	cfg := LoadRankerConfig()

	if cfg.Provider != "ollama" {
		t.Errorf("Provider = %q, want %q", cfg.Provider, "ollama")
	}
	if cfg.Model != "llama3" {
		t.Errorf("Model = %q, want %q", cfg.Model, "llama3")
	}
	if cfg.APIKey != "sk-llm" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "sk-llm")
	}
}

func TestLoadRankerConfig_Override(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "openrouter")
	t.Setenv("LLM_MODEL", "meta-llama/llama-4-maverick")
	t.Setenv("LLM_API_KEY", "sk-or")
	t.Setenv("RANKER_LLM_PROVIDER", "gemini")
	t.Setenv("RANKER_LLM_MODEL", "gemini-2.0-flash")
	t.Setenv("RANKER_LLM_API_KEY", "g-key")

	cfg := LoadRankerConfig()

	if cfg.Provider != "gemini" || cfg.Model != "gemini-2.0-flash" || cfg.APIKey != "g-key" {
		t.Errorf("unexpected ranker config %+v", cfg)
	}
}

func TestNewProvider(t *testing.T) {
	cases := map[string]bool{
		"openai":     true,
		"OpenRouter": true,
		"anthropic":  true,
		"ollama":     true,
		"gemini":     true,
		"bard":       false,
	}
	for name, ok := range cases {
		p, err := NewProvider(Config{Provider: name})
		if ok && (err != nil || p == nil) {
			t.Errorf("%s: expected provider, got %v", name, err)
		}
		if !ok && err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
