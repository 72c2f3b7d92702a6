package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIRestructurer asks a chat model to reorganize raw extracted text into
// structured JSON. It is one pluggable stage of the conversion pipeline and
// never a single point of failure: callers fall back to raw passthrough.
type OpenAIRestructurer struct {
	client *openai.Client
	model  string
}

// NewOpenAIRestructurer creates a chat-based restructurer.
func NewOpenAIRestructurer(client *openai.Client, model string) *OpenAIRestructurer {
	return &OpenAIRestructurer{client: client, model: model}
}

// Restructure sends raw text to the chat model and parses the JSON it returns.
func (r *OpenAIRestructurer) Restructure(ctx context.Context, instruction, raw string) (json.RawMessage, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: raw},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty chat completion response")
	}

	cleaned := StripCodeFence(resp.Choices[0].Message.Content)
	if !json.Valid([]byte(cleaned)) {
		return nil, fmt.Errorf("model returned non-JSON output")
	}
	return json.RawMessage(cleaned), nil
}

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")

// StripCodeFence extracts the body of a markdown code fence if the model
// wrapped its JSON in one; otherwise returns the trimmed input.
func StripCodeFence(s string) string {
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}
