package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = openai.GPT3Dot5Turbo

// ChatCompleter is the subset of *openai.Client used here; tests swap it out.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient wraps the go-openai SDK.
type OpenAIClient struct {
	api   ChatCompleter
	model string
}

func NewOpenAIClient(apiKey, model, baseURL string, timeout time.Duration) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return NewOpenAIClientWithAPI(openai.NewClientWithConfig(cfg), model)
}

// NewOpenAIClientWithAPI builds a client around an existing completer.
func NewOpenAIClientWithAPI(api ChatCompleter, model string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{api: api, model: model}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(req.Messages),
	})
	if err != nil {
		return nil, err
	}

	out := &Response{Choices: make([]Choice, 0, len(resp.Choices))}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{Message: Message{
			Role:    ch.Message.Role,
			Content: ch.Message.Content,
		}})
	}
	return out, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(msgs))
	for i, m := range msgs {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}
