package textgen

import (
	"context"
	"fmt"

	"github.com/vampirenirmal/storyarc/internal/config"
)

// New builds the Generator named by the config. The mock backend
// needs no credentials and is what a fresh install runs with.
func New(ctx context.Context, cfg *config.Config) (Generator, error) {
	opts := []Option{
		WithRetry(cfg.Limits.MaxRetries),
		WithTimeout(cfg.Limits.RequestTimeout),
		WithRateLimit(cfg.Limits.RateLimit.RequestsPerMinute, cfg.Limits.RateLimit.BurstSize),
	}

	switch cfg.Generation.Provider {
	case "openai":
		return NewClient(newOpenAIBackend(cfg.Generation.APIKey, cfg.Generation.Model), opts...), nil
	case "gemini":
		backend, err := newGeminiBackend(ctx, cfg.Generation.APIKey, cfg.Generation.Model)
		if err != nil {
			return nil, err
		}
		return NewClient(backend, opts...), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}
