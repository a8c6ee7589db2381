package exchange

import (
	"context"
	"sync/atomic"

	"github.com/HexSleeves/topbot/internal/conversation"
)

// Session ties the transcript to the requester for one user. At most one
// exchange runs at a time; overlapping submissions are rejected.
type Session struct {
	history   *conversation.History
	requester *Requester
	busy      atomic.Bool
}

func NewSession(history *conversation.History, requester *Requester) *Session {
	return &Session{history: history, requester: requester}
}

// Submit appends text as a user message and then runs the exchange to
// completion. It blocks until both steps are done or one has failed.
func (s *Session) Submit(ctx context.Context, text string) (Outcome, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return Outcome{}, ErrExchangeInFlight
	}
	defer s.busy.Store(false)

	s.history.Append(conversation.NewUserMessage(text))
	return s.requester.Run(ctx, text), nil
}

func (s *Session) Busy() bool { return s.busy.Load() }

func (s *Session) History() *conversation.History { return s.history }

// Pending reports whether the bot is waiting for the user.
func (s *Session) Pending() bool { return s.history.Pending() }
