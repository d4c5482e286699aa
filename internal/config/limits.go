package config

import (
	"time"
)

type Limits struct {
	EpilogueContext int             `yaml:"epilogue_context" validate:"required,min=1,max=200"`
	ResponseTokens  int             `yaml:"response_tokens" validate:"required,min=64,max=8192"`
	MaxRetries      int             `yaml:"max_retries" validate:"min=0,max=10"`
	RequestTimeout  time.Duration   `yaml:"request_timeout" validate:"required,min=1s,max=1h"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

func DefaultLimits() Limits {
	return Limits{
		EpilogueContext: 20,
		ResponseTokens:  1024,
		MaxRetries:      3,
		RequestTimeout:  2 * time.Minute,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         10,
		},
	}
}
