package llm

import (
	"context"
	"fmt"
	"sync"
)

// StubReply scripts one Complete call: either Err or Response is returned.
type StubReply struct {
	Response *Response
	Err      error
}

// TextReply is a StubReply with a single choice holding content.
func TextReply(content string) StubReply {
	return StubReply{Response: &Response{Choices: []Choice{{Message: Message{Role: RoleAssistant, Content: content}}}}}
}

// EmptyReply is a StubReply whose response has no choices.
func EmptyReply() StubReply {
	return StubReply{Response: &Response{}}
}

// ErrReply is a StubReply that fails with err.
func ErrReply(err error) StubReply {
	return StubReply{Err: err}
}

// StubClient replays scripted replies in order and records every request.
// Once the script runs out, Fallback is used when set; otherwise Complete
// returns an error.
type StubClient struct {
	mu       sync.Mutex
	replies  []StubReply
	requests []Request
	Fallback *StubReply
}

func NewStubClient(replies ...StubReply) *StubClient {
	return &StubClient{replies: replies}
}

func (s *StubClient) Complete(ctx context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	var reply StubReply
	switch {
	case len(s.replies) > 0:
		reply = s.replies[0]
		s.replies = s.replies[1:]
	case s.Fallback != nil:
		reply = *s.Fallback
	default:
		n := len(s.requests)
		s.mu.Unlock()
		return nil, fmt.Errorf("stub: no reply scripted for call %d", n)
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return reply.Response, reply.Err
}

// Requests returns a copy of the requests received so far.
func (s *StubClient) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}
