package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/stepwise-ai/stepwise/internal/config"
)

// ResolvePool builds the model pool from configuration, in configured order.
// Backends with a missing credential are skipped with a warning rather than
// failing the whole pool, so a partially configured install still works.
func ResolvePool(ctx context.Context, cfg *config.Config) (*Pool, error) {
	var backends []*Backend
	var skipped []string

	for _, bc := range cfg.Backends {
		client, err := resolveClient(ctx, cfg, bc)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s (%v)", bc.Name, err))
			continue
		}
		backends = append(backends, &Backend{
			Name:        bc.Name,
			Kind:        bc.Kind,
			ModelID:     bc.Model,
			QuotaPerMin: bc.QuotaPerMin,
			RichInput:   bc.RichInput,
			Client:      client,
		})
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no usable model backends (skipped: %s)", strings.Join(skipped, "; "))
	}
	return NewPool(backends)
}

func resolveClient(ctx context.Context, cfg *config.Config, bc config.BackendConfig) (Client, error) {
	switch strings.ToLower(bc.Kind) {
	case "openai":
		if cfg.Providers.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("missing OpenAI API key")
		}
		return NewOpenAIClient(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, bc.Model), nil
	case "anthropic":
		if cfg.Providers.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("missing Anthropic API key")
		}
		return NewAnthropicClient(cfg.Providers.Anthropic.APIKey, bc.Model), nil
	case "gemini":
		if cfg.Providers.Gemini.APIKey == "" {
			return nil, fmt.Errorf("missing Gemini API key")
		}
		return NewGeminiClient(ctx, cfg.Providers.Gemini.APIKey, bc.Model)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", bc.Kind)
	}
}
