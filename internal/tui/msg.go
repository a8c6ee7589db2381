package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/HexSleeves/topbot/internal/bus"
	"github.com/HexSleeves/topbot/internal/conversation"
	"github.com/HexSleeves/topbot/internal/exchange"
)

// AppendedMsg tells the model a message was added to the history.
type AppendedMsg struct {
	Message conversation.Message
}

// ExchangeDoneMsg is returned by the submit command once Session.Submit
// returns.
type ExchangeDoneMsg struct {
	Outcome exchange.Outcome
	Err     error
}

// SystemErrorMsg reports a failure inside a bus subscriber.
type SystemErrorMsg struct {
	Reason string
}

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards history appends and system errors from the bus into the
// program.
func Bridge(b *bus.MessageBus, p Sender) *bus.Subscription {
	return b.SubscribeAll(func(msg bus.Message) {
		switch msg.Type {
		case bus.MsgConversationAppended:
			if m, ok := msg.Payload.(conversation.Message); ok {
				p.Send(AppendedMsg{Message: m})
			}
		case bus.MsgSystemError:
			if se, ok := msg.Payload.(bus.SystemError); ok {
				p.Send(SystemErrorMsg{Reason: se.Reason})
			}
		}
	})
}
