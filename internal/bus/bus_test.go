package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMsgTypeConstants(t *testing.T) {
	tests := []struct {
		name     string
		msgType  MsgType
		expected string
	}{
		{"ConversationAppended", MsgConversationAppended, "conversation.appended"},
		{"ExchangeStarted", MsgExchangeStarted, "exchange.started"},
		{"ExchangeStep", MsgExchangeStep, "exchange.step"},
		{"ExchangeFinished", MsgExchangeFinished, "exchange.finished"},
		{"SystemError", MsgSystemError, "system.error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.msgType) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.msgType)
			}
		})
	}
}

func TestNew(t *testing.T) {
	b := New(100)
	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.maxHist != 100 {
		t.Errorf("Expected maxHist 100, got %d", b.maxHist)
	}

	if New(0).maxHist != 10000 {
		t.Error("Expected default maxHist 10000 for zero")
	}
	if New(-1).maxHist != 10000 {
		t.Error("Expected default maxHist 10000 for negative")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New(100)

	var count atomic.Int32
	sub := b.Subscribe(MsgConversationAppended, func(msg Message) {
		count.Add(1)
	})

	b.Publish(Message{Type: MsgConversationAppended})
	if count.Load() != 1 {
		t.Fatalf("Expected 1 call before unsubscribe, got %d", count.Load())
	}

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent

	b.Publish(Message{Type: MsgConversationAppended})
	if count.Load() != 1 {
		t.Errorf("Expected no new calls after unsubscribe, got %d", count.Load())
	}
}

func TestUnsubscribeKeepsOtherHandlers(t *testing.T) {
	b := New(100)

	var first, second atomic.Int32
	sub := b.Subscribe(MsgExchangeStep, func(Message) { first.Add(1) })
	b.Subscribe(MsgExchangeStep, func(Message) { second.Add(1) })

	sub.Unsubscribe()
	b.Publish(Message{Type: MsgExchangeStep})

	if first.Load() != 0 || second.Load() != 1 {
		t.Errorf("first=%d second=%d, want 0 and 1", first.Load(), second.Load())
	}
}

func TestSubscribeAll(t *testing.T) {
	b := New(100)

	var types []MsgType
	b.SubscribeAll(func(msg Message) {
		types = append(types, msg.Type)
	})

	b.Publish(Message{Type: MsgExchangeStarted})
	b.Publish(Message{Type: MsgExchangeFinished})

	if len(types) != 2 || types[0] != MsgExchangeStarted || types[1] != MsgExchangeFinished {
		t.Errorf("unexpected wildcard deliveries: %v", types)
	}
}

func TestPublishSetsTime(t *testing.T) {
	b := New(10)
	b.Publish(Message{Type: MsgSystemError})

	h := b.History(1)
	if len(h) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(h))
	}
	if h[0].Time.IsZero() {
		t.Error("Publish should stamp a zero Time")
	}

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.Publish(Message{Type: MsgSystemError, Time: fixed})
	if got := b.History(1)[0].Time; !got.Equal(fixed) {
		t.Errorf("Publish overwrote explicit time: %v", got)
	}
}

func TestPublishOrder(t *testing.T) {
	b := New(100)

	var order []string
	b.SubscribeAll(func(Message) { order = append(order, "wildcard") })
	b.Subscribe(MsgConversationAppended, func(Message) { order = append(order, "specific") })

	b.Publish(Message{Type: MsgConversationAppended})

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("expected specific before wildcard, got %v", order)
	}
}

func TestHistory(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Publish(Message{Type: MsgExchangeStep, ExchangeID: string(rune('a' + i))})
	}

	all := b.History(0)
	if len(all) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(all))
	}
	if all[0].ExchangeID != "c" || all[2].ExchangeID != "e" {
		t.Errorf("expected oldest entries trimmed, got %q..%q", all[0].ExchangeID, all[2].ExchangeID)
	}

	last := b.History(1)
	if len(last) != 1 || last[0].ExchangeID != "e" {
		t.Errorf("History(1) = %v", last)
	}

	if len(b.History(99)) != 3 {
		t.Error("History(n > len) should return everything")
	}
}

func TestPanicRecovery(t *testing.T) {
	b := New(100)

	var after atomic.Bool
	b.Subscribe(MsgSystemError, func(Message) { panic("boom") })
	b.Subscribe(MsgSystemError, func(Message) { after.Store(true) })
	b.SubscribeAll(func(Message) { panic("wildcard boom") })

	b.Publish(Message{Type: MsgSystemError})

	if !after.Load() {
		t.Error("handler after a panicking handler was not called")
	}
	if len(b.History(0)) != 1 {
		t.Error("history should survive a panicking handler")
	}

	// bus remains usable
	b.Publish(Message{Type: MsgSystemError})
	if len(b.History(0)) != 2 {
		t.Error("bus unusable after panic")
	}
}

func TestPanicPublishesSystemError(t *testing.T) {
	b := New(100)

	var got []Message
	b.Subscribe(MsgExchangeStep, func(Message) { panic("boom") })
	b.Subscribe(MsgSystemError, func(m Message) { got = append(got, m) })

	b.Publish(Message{Type: MsgExchangeStep, ExchangeID: "ex-1"})

	if len(got) != 1 {
		t.Fatalf("expected 1 system error, got %d", len(got))
	}
	if got[0].ExchangeID != "ex-1" {
		t.Errorf("ExchangeID = %q, want ex-1", got[0].ExchangeID)
	}
	se, ok := got[0].Payload.(SystemError)
	if !ok {
		t.Fatalf("payload is %T, want SystemError", got[0].Payload)
	}
	if se.Source != MsgExchangeStep || se.Reason != "boom" {
		t.Errorf("unexpected payload %+v", se)
	}
}

func TestPanickingSystemErrorHandlerDoesNotLoop(t *testing.T) {
	b := New(100)

	var calls atomic.Int32
	b.Subscribe(MsgExchangeStep, func(Message) { panic("step") })
	b.Subscribe(MsgSystemError, func(Message) {
		calls.Add(1)
		panic("again")
	})

	b.Publish(Message{Type: MsgExchangeStep})

	if calls.Load() != 1 {
		t.Errorf("system error handler called %d times, want 1", calls.Load())
	}
	if len(b.History(0)) != 2 {
		t.Errorf("history = %d, want step plus one system error", len(b.History(0)))
	}
}

func TestBusConcurrency(t *testing.T) {
	b := New(1000)

	var count atomic.Int64
	b.SubscribeAll(func(Message) { count.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				b.Publish(Message{Type: MsgExchangeStep})
				_ = b.History(5)
			}
		}()
	}
	wg.Wait()

	if count.Load() != 500 {
		t.Errorf("expected 500 deliveries, got %d", count.Load())
	}
}
