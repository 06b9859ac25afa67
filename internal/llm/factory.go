package llm

import "fmt"

// New builds a provider by name. The model may be empty, in which case
// the provider's default is used.
func New(provider, apiKey, model string) (Provider, error) {
	switch provider {
	case ProviderOpenAI:
		var opts []OpenAIOption
		if model != "" {
			opts = append(opts, WithOpenAIModel(model))
		}
		return NewOpenAIProvider(apiKey, opts...)
	case ProviderAnthropic:
		var opts []AnthropicOption
		if model != "" {
			opts = append(opts, WithAnthropicModel(model))
		}
		return NewAnthropicProvider(apiKey, opts...)
	case "":
		return nil, ErrNoProviders
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", provider)
	}
}
