package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexschlessinger/jurisearch/messages"
)

// Provider prefixes accepted in model strings
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderXAI       = "xai"
	ProviderGrok      = "grok"
)

var _ LLM = (*MultiPass)(nil)

// MultiPass routes requests to different LLM providers based on model prefix
type MultiPass struct {
	apiKeys map[string]string
}

// getEnvVarNameForProvider returns the environment variable name for the given provider
func getEnvVarNameForProvider(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderXAI, ProviderGrok:
		return "XAI_API_KEY"
	default:
		return fmt.Sprintf("%s_API_KEY", strings.ToUpper(provider))
	}
}

// NewMultiPass creates a new multi-provider router
func NewMultiPass(apiKeys map[string]string) *MultiPass {
	return &MultiPass{
		apiKeys: apiKeys,
	}
}

// SplitModel separates "provider/model" into its parts
func SplitModel(model string) (provider, name string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("model must include provider prefix (e.g., 'anthropic/claude-sonnet-4-20250514', 'gemini/gemini-2.5-flash'), got: %s", model)
	}
	return strings.ToLower(parts[0]), parts[1], nil
}

// ChatCompletionStream routes the request to the appropriate provider
func (m *MultiPass) ChatCompletionStream(ctx context.Context, req *CompletionRequest) <-chan messages.Output {
	provider, model, err := SplitModel(req.Model)
	if err != nil {
		return closedWithError(err)
	}

	// the caller's request keeps its prefixed model for the next pass
	routed := *req
	routed.Model = model

	if routed.APIKey == "" {
		key := m.apiKeys[provider]
		if key == "" && provider == ProviderGrok {
			key = m.apiKeys[ProviderXAI]
		}
		if key == "" {
			return closedWithError(fmt.Errorf("missing API key for provider '%s'. Set the %s environment variable", provider, getEnvVarNameForProvider(provider)))
		}
		routed.APIKey = key
	}

	var llm LLM
	switch provider {
	case ProviderAnthropic:
		llm = NewAnthropicClient(routed.APIKey)
	case ProviderGemini:
		llm = NewGeminiClient(routed.APIKey)
	case ProviderXAI, ProviderGrok:
		baseURL := routed.BaseURL
		if baseURL == "" {
			baseURL = XAIBaseURL
		}
		llm = NewOpenAIClient(routed.APIKey, baseURL)
	default:
		return closedWithError(fmt.Errorf("unknown provider '%s'. Valid providers: anthropic, gemini, xai", provider))
	}

	return llm.ChatCompletionStream(ctx, &routed)
}
