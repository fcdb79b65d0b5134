// Package genai wraps an OpenAI-compatible chat-completion API behind the
// narrow generation interface the AI badge needs. The upstream is treated
// as an expensive, unreliable collaborator: callers cache aggressively and
// substitute a fallback string on failure.
package genai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// systemPrompt bounds reply length so generated text fits a badge segment.
const systemPrompt = "You are a chatbot. Keep responses under 50 characters."

// Client generates short badge texts via chat completions.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a generation client. baseURL may be empty to use the
// default OpenAI endpoint, or point at any compatible gateway.
func NewClient(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Generate produces one short text for prompt, capped at maxTokens.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
