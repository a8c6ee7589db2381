// Package bus is a small in-process publish/subscribe hub. The conversation
// store and the requester publish on it; the TUI subscribes to redraw.
package bus

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type MsgType string

const (
	MsgConversationAppended MsgType = "conversation.appended"
	MsgExchangeStarted      MsgType = "exchange.started"
	MsgExchangeStep         MsgType = "exchange.step"
	MsgExchangeFinished     MsgType = "exchange.finished"
	MsgSystemError          MsgType = "system.error"
)

const wildcard MsgType = "*"

type Message struct {
	Type       MsgType     `json:"type"`
	ExchangeID string      `json:"exchange_id,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Time       time.Time   `json:"time"`
}

type Handler func(msg Message)

// SystemError is the payload of MsgSystemError.
type SystemError struct {
	Source MsgType `json:"source"`
	Reason string  `json:"reason"`
}

type entry struct {
	id uint64
	h  Handler
}

// Subscription is returned by Subscribe and SubscribeAll.
type Subscription struct {
	bus     *MessageBus
	msgType MsgType
	id      uint64
	once    sync.Once
}

// Unsubscribe removes the handler. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.msgType, s.id)
	})
}

type MessageBus struct {
	mu       sync.RWMutex
	handlers map[MsgType][]entry
	nextID   uint64
	history  []Message
	maxHist  int
	logger   *zap.Logger
}

func New(maxHistory int) *MessageBus {
	if maxHistory <= 0 {
		maxHistory = 10000
	}
	return &MessageBus{
		handlers: make(map[MsgType][]entry),
		maxHist:  maxHistory,
		logger:   zap.NewNop(),
	}
}

// WithLogger sets the logger used to report panicking handlers.
func (b *MessageBus) WithLogger(l *zap.Logger) *MessageBus {
	if l != nil {
		b.logger = l
	}
	return b
}

func (b *MessageBus) Subscribe(msgType MsgType, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[msgType] = append(b.handlers[msgType], entry{id: b.nextID, h: h})
	return &Subscription{bus: b, msgType: msgType, id: b.nextID}
}

func (b *MessageBus) SubscribeAll(h Handler) *Subscription {
	return b.Subscribe(wildcard, h)
}

func (b *MessageBus) remove(msgType MsgType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.handlers[msgType]
	for i, e := range entries {
		if e.id == id {
			b.handlers[msgType] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Publish records msg and calls handlers synchronously, specific handlers
// first, then wildcard ones. A panicking handler does not stop the others.
func (b *MessageBus) Publish(msg Message) {
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > b.maxHist {
		// Copy to a new slice to release the old backing array
		trimmed := make([]Message, b.maxHist)
		copy(trimmed, b.history[len(b.history)-b.maxHist:])
		b.history = trimmed
	}
	specific := make([]entry, len(b.handlers[msg.Type]))
	copy(specific, b.handlers[msg.Type])
	all := make([]entry, len(b.handlers[wildcard]))
	copy(all, b.handlers[wildcard])
	b.mu.Unlock()

	for _, e := range specific {
		b.dispatch(e.h, msg, false)
	}
	for _, e := range all {
		b.dispatch(e.h, msg, true)
	}
}

// dispatch calls h and turns a panic into a MsgSystemError. A panic while
// handling a MsgSystemError is only logged.
func (b *MessageBus) dispatch(h Handler, msg Message, wild bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked",
				zap.String("type", string(msg.Type)),
				zap.Bool("wildcard", wild),
				zap.Any("panic", r))
			if msg.Type != MsgSystemError {
				b.Publish(Message{
					Type:       MsgSystemError,
					ExchangeID: msg.ExchangeID,
					Payload:    SystemError{Source: msg.Type, Reason: fmt.Sprint(r)},
				})
			}
		}
	}()
	h(msg)
}

func (b *MessageBus) History(n int) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	start := len(b.history) - n
	result := make([]Message, n)
	copy(result, b.history[start:])
	return result
}
