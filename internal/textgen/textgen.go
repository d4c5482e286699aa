// Package textgen performs the model calls behind post-arc epilogue
// and summary generation. A Backend talks to one provider; Client
// wraps a Backend with rate limiting, retries, and timeouts. The rest
// of the engine consumes either through the Generator interface.
package textgen

import (
	"context"
	"errors"
)

// Request carries one generation call.
type Request struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
}

// Generator produces prose for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Backend is a single provider binding. Client adds the operational
// envelope around it.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrEmptyResponse reports a call that succeeded at the transport
// level but carried no text.
var ErrEmptyResponse = errors.New("textgen: model returned no text")
