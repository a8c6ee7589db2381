// Package llm provides a provider-agnostic interface for chat completion calls.
package llm

import (
	"context"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a single conversation turn sent to the provider.
type Message struct {
	Role    string
	Content string
}

// Request is one completion call: a model id and the ordered messages.
type Request struct {
	Model    string
	Messages []Message
}

// Choice is one candidate completion.
type Choice struct {
	Message Message
}

// Response carries the provider's candidates. Choices may be empty.
type Response struct {
	Choices []Choice
}

// FirstContent returns the text of the first choice. ok is false when there
// are no choices or the first one carries no text.
func (r *Response) FirstContent() (content string, ok bool) {
	if r == nil || len(r.Choices) == 0 {
		return "", false
	}
	content = r.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", false
	}
	return content, true
}

// UserRequest builds a request holding a single user message.
func UserRequest(model, content string) Request {
	return Request{
		Model:    model,
		Messages: []Message{{Role: RoleUser, Content: content}},
	}
}

// Client is the interface the requester uses to reach a completion service.
// Implementations exist for OpenAI, Anthropic, CLI tools and a scripted stub.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
