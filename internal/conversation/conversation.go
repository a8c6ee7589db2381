// Package conversation holds the in-memory, append-only chat transcript.
package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HexSleeves/topbot/internal/bus"
)

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

const (
	DefaultBotName = "ProductivityAI Bot"
	UserSender     = "You"
	SeedPrompt     = "What is your TOP task for today?"
)

// Message is one transcript entry. Values are copied out of History, so a
// Message held by a caller never changes.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage builds a message from the input box.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Sender:    UserSender,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAIMessage builds a reply attributed to sender.
func NewAIMessage(sender, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAI,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// History is the ordered transcript. It starts with the seed question and only
// ever grows.
type History struct {
	mu       sync.RWMutex
	messages []Message
	bus      *bus.MessageBus
}

// NewHistory returns a History seeded with the opening question from botName.
// b may be nil.
func NewHistory(botName string, b *bus.MessageBus) *History {
	if botName == "" {
		botName = DefaultBotName
	}
	return &History{
		messages: []Message{NewAIMessage(botName, SeedPrompt)},
		bus:      b,
	}
}

// Append adds m at the end. Empty content is kept as-is.
func (h *History) Append(m Message) Message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	h.mu.Lock()
	h.messages = append(h.messages, m)
	h.mu.Unlock()

	if h.bus != nil {
		h.bus.Publish(bus.Message{
			Type:    bus.MsgConversationAppended,
			Payload: m,
			Time:    m.CreatedAt,
		})
	}
	return m
}

// All returns a copy of every message, oldest first.
func (h *History) All() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

func (h *History) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}

// Pending reports whether the transcript is waiting on the user, which is the
// case whenever the newest message came from the bot.
func (h *History) Pending() bool {
	last, ok := h.Last()
	return ok && last.Role == RoleAI
}
