package textgen

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// openAIBackend generates through the OpenAI responses API.
type openAIBackend struct {
	cli   *openai.Client
	model string
}

func newOpenAIBackend(apiKey, model string) *openAIBackend {
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &openAIBackend{cli: &cli, model: model}
}

func (b *openAIBackend) Name() string { return "openai:" + b.model }

func (b *openAIBackend) Generate(ctx context.Context, req Request) (string, error) {
	params := responses.ResponseNewParams{
		Model: b.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.Prompt, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.SystemPrompt != "" {
		params.Instructions = openai.String(req.SystemPrompt)
	}

	resp, err := b.cli.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}

	text := resp.OutputText()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
