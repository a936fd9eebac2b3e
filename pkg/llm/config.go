package llm

import (
	"fmt"
	"strings"

	"github.com/prashanttc/tweetAut/pkg/config"
)

type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}

// Configured reports whether enough is set to build a provider.
func (c Config) Configured() bool {
	switch strings.ToLower(c.Provider) {
	case "ollama":
		return c.Model != ""
	default:
		return c.APIKey != "" || c.APIURL != ""
	}
}

func LoadConfig() Config {
	return Config{
		Provider:  config.GetEnv("LLM_PROVIDER", "openai"),
		Model:     config.GetEnv("LLM_MODEL", ""),
		APIKey:    config.GetEnv("LLM_API_KEY", ""),
		APIURL:    config.GetEnv("LLM_API_URL", ""),
		MaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 0),
	}
}

// LoadRankerConfig loads the topic-ranking model from RANKER_LLM_* env vars,
// falling back to their LLM_* counterparts when unset.
func LoadRankerConfig() Config {
	base := LoadConfig()
	return Config{
		Provider:  config.GetEnv("RANKER_LLM_PROVIDER", base.Provider),
		Model:     config.GetEnv("RANKER_LLM_MODEL", base.Model),
		APIKey:    config.GetEnv("RANKER_LLM_API_KEY", base.APIKey),
		APIURL:    config.GetEnv("RANKER_LLM_API_URL", base.APIURL),
		MaxTokens: config.GetEnvInt("RANKER_LLM_MAX_TOKENS", base.MaxTokens),
	}
}

func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "openrouter", "groq":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
