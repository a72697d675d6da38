package llm

import "fmt"

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultDashScopeBaseURL  = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// OpenRouterProvider wraps OpenAIProvider with OpenRouter-specific defaults.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}

	inner, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: baseURL,
	})
	if err != nil {
		return nil, err
	}

	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}

// DashScopeProvider serves Qwen models through DashScope's compatible mode.
// DashScope accepts json_object but not strict json_schema formats, so
// schema conformance is enforced locally after the call.
type DashScopeProvider struct {
	*OpenAIProvider
}

// NewDashScopeProvider creates a provider targeting DashScope.
func NewDashScopeProvider(cfg DashScopeConfig) (*DashScopeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("dashscope API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultDashScopeBaseURL
	}

	inner, err := NewOpenAIProvider(OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: baseURL,
	})
	if err != nil {
		return nil, err
	}
	inner.strictSchema = false

	return &DashScopeProvider{OpenAIProvider: inner}, nil
}
