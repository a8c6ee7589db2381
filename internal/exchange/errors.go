package exchange

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse means the service answered but the first choice had no text.
var ErrEmptyResponse = errors.New("empty response")

// ErrExchangeInFlight is returned by Session.Submit while a previous exchange
// is still running. Nothing is appended in that case.
var ErrExchangeInFlight = errors.New("an exchange is already in progress")

// TransportError wraps a failed call to the completion service (network,
// auth, timeout, non-2xx).
type TransportError struct {
	Step string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Step, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type emptyStepError struct {
	step string
}

func (e *emptyStepError) Error() string {
	return fmt.Sprintf("%s: %v", e.step, ErrEmptyResponse)
}

func (e *emptyStepError) Is(target error) bool { return target == ErrEmptyResponse }
