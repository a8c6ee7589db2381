// Package exchange runs the two-step clarification exchange against the
// completion service and writes every outcome into the conversation.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HexSleeves/topbot/internal/bus"
	"github.com/HexSleeves/topbot/internal/conversation"
	"github.com/HexSleeves/topbot/internal/journal"
	"github.com/HexSleeves/topbot/internal/llm"
)

const (
	StepRephrase = "rephrase"
	StepClarify  = "clarify"
)

const (
	rephraseTemplate = "My task for the day is %s. Please ask one insightful question to help me change the task description to be more helpful or productive"

	// ClarifyPrompt is sent verbatim as the second request. It does not
	// include the first reply.
	ClarifyPrompt = "Could you provide more details about your task?"

	EmptyRephraseText = "Error: Empty response from OpenAI"
	EmptyClarifyText  = "Error: Empty response for clarifying question"
)

// RephrasePrompt is the first request's instruction for task.
func RephrasePrompt(task string) string {
	return fmt.Sprintf(rephraseTemplate, task)
}

// StepEvent is the payload of bus.MsgExchangeStep.
type StepEvent struct {
	Step    string
	Status  journal.Status
	Latency time.Duration
	Err     string
}

// Outcome summarises one Run.
type Outcome struct {
	ExchangeID string
	Appended   int   // ai messages appended
	Err        error // first failure, nil when both steps produced text
}

// Requester sends the two completion requests of an exchange in order.
type Requester struct {
	client  llm.Client
	history *conversation.History
	model   string
	sender  string
	bus     *bus.MessageBus
	journal journal.Recorder
	logger  *zap.Logger
}

type Option func(*Requester)

func WithModel(model string) Option { return func(r *Requester) { r.model = model } }
func WithSender(name string) Option { return func(r *Requester) { r.sender = name } }
func WithBus(b *bus.MessageBus) Option { return func(r *Requester) { r.bus = b } }
func WithJournal(j journal.Recorder) Option { return func(r *Requester) { r.journal = j } }

func WithLogger(l *zap.Logger) Option {
	return func(r *Requester) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRequester(client llm.Client, history *conversation.History, opts ...Option) *Requester {
	r := &Requester{
		client:  client,
		history: history,
		sender:  conversation.DefaultBotName,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run performs the exchange for submittedTask. The first request asks the
// service to question the task; the second asks the fixed ClarifyPrompt and
// only runs if the first produced text. Failures are appended as ai messages
// and end the exchange. Nothing is retried.
func (r *Requester) Run(ctx context.Context, submittedTask string) Outcome {
	out := Outcome{ExchangeID: uuid.NewString()}
	log := r.logger.With(zap.String("exchange_id", out.ExchangeID))
	log.Info("exchange started", zap.Int("task_len", len(submittedTask)))
	r.publish(bus.MsgExchangeStarted, out.ExchangeID, nil)

	defer func() {
		status := "ok"
		if out.Err != nil {
			status = "failed"
		}
		log.Info("exchange finished", zap.String("status", status), zap.Int("appended", out.Appended))
		r.publish(bus.MsgExchangeFinished, out.ExchangeID, out)
	}()

	first, err := r.step(ctx, out.ExchangeID, StepRephrase, RephrasePrompt(submittedTask))
	if err != nil {
		r.report(err, EmptyRephraseText)
		out.Appended++
		out.Err = err
		return out
	}
	r.appendAI(first)
	out.Appended++

	second, err := r.step(ctx, out.ExchangeID, StepClarify, ClarifyPrompt)
	if err != nil {
		r.report(err, EmptyClarifyText)
		out.Appended++
		out.Err = err
		return out
	}
	r.appendAI(second)
	out.Appended++
	return out
}

// step sends one request and returns the first choice's text, a
// *TransportError, or an error matching ErrEmptyResponse.
func (r *Requester) step(ctx context.Context, exchangeID, step, prompt string) (string, error) {
	log := r.logger.With(zap.String("exchange_id", exchangeID), zap.String("step", step))
	log.Debug("sending completion request", zap.String("model", r.model))

	start := time.Now()
	resp, err := r.client.Complete(ctx, llm.UserRequest(r.model, prompt))
	latency := time.Since(start)

	if err != nil {
		log.Warn("completion request failed", zap.Duration("latency", latency), zap.Error(err))
		r.record(ctx, exchangeID, step, journal.StatusError, latency, err)
		return "", &TransportError{Step: step, Err: err}
	}

	// whitespace-only content counts as empty, so a blank reply is never
	// appended as a bot message
	content, ok := resp.FirstContent()
	if !ok {
		err := &emptyStepError{step: step}
		log.Warn("completion response had no content", zap.Duration("latency", latency))
		r.record(ctx, exchangeID, step, journal.StatusEmpty, latency, err)
		return "", err
	}

	log.Debug("completion received", zap.Duration("latency", latency), zap.Int("content_len", len(content)))
	r.record(ctx, exchangeID, step, journal.StatusOK, latency, nil)
	return content, nil
}

// report appends the chat-visible form of err.
func (r *Requester) report(err error, emptyText string) {
	if errors.Is(err, ErrEmptyResponse) {
		r.appendAI(emptyText)
		return
	}
	var te *TransportError
	if errors.As(err, &te) {
		r.appendAI("Error: " + te.Err.Error())
		return
	}
	r.appendAI("Error: " + err.Error())
}

func (r *Requester) appendAI(content string) {
	r.history.Append(conversation.NewAIMessage(r.sender, content))
}

func (r *Requester) record(ctx context.Context, exchangeID, step string, status journal.Status, latency time.Duration, stepErr error) {
	ev := StepEvent{Step: step, Status: status, Latency: latency}
	if stepErr != nil {
		ev.Err = stepErr.Error()
	}
	r.publish(bus.MsgExchangeStep, exchangeID, ev)

	if r.journal == nil {
		return
	}
	// journal writes outlive the exchange context
	if err := r.journal.Record(context.WithoutCancel(ctx), journal.Entry{
		ExchangeID: exchangeID,
		Step:       step,
		Status:     status,
		Latency:    latency,
		Error:      ev.Err,
	}); err != nil {
		r.logger.Warn("journal write failed", zap.Error(err))
	}
}

func (r *Requester) publish(t bus.MsgType, exchangeID string, payload interface{}) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(bus.Message{Type: t, ExchangeID: exchangeID, Payload: payload, Time: time.Now()})
}
