package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/kotae/internal/models"
)

// OpenAICompleter calls the OpenAI chat completions API.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a completer for the given chat model using apiKey.
func NewOpenAICompleter(apiKey, model string) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is not set", models.ErrCompletion)
	}
	return &OpenAICompleter{client: openai.NewClient(apiKey), model: model}, nil
}

// Complete sends the rendered prompt and returns the model's answer verbatim.
func (c *OpenAICompleter) Complete(ctx context.Context, contextBlock, question string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(contextBlock, question)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrCompletion, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", models.ErrCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}
