package services

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// LLMClient executes one text completion per call. Retry policy lives in the
// generation engine, not here: billed usage of every attempt has to reach the
// call log, and only the caller knows the attempt number.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

type CompletionRequest struct {
	Prompt    string
	Model     string
	MaxTokens int
}

type Completion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// TransientLLMError covers timeouts, rate limits and 5xx responses; the
// engine retries these with backoff.
type TransientLLMError struct {
	Status int
	Err    error
}

func (e *TransientLLMError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transient llm error (http %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient llm error: %v", e.Err)
}

func (e *TransientLLMError) Unwrap() error { return e.Err }

// PermanentLLMError covers malformed requests, refusals and other 4xx
// responses; the engine fails the item immediately.
type PermanentLLMError struct {
	Status int
	Err    error
}

func (e *PermanentLLMError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("permanent llm error (http %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("permanent llm error: %v", e.Err)
}

func (e *PermanentLLMError) Unwrap() error { return e.Err }

// IsTransientLLMError reports whether err should be retried.
func IsTransientLLMError(err error) bool {
	var t *TransientLLMError
	return errors.As(err, &t)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	if code >= 500 && code <= 599 {
		return true
	}
	return false
}

// classifyCallError wraps a raw transport or HTTP error into the taxonomy.
// Caller cancellation passes through unwrapped.
func classifyCallError(ctx context.Context, err error, status int) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientLLMError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransientLLMError{Err: err}
	}
	if status > 0 {
		if isRetryableHTTP(status) {
			return &TransientLLMError{Status: status, Err: err}
		}
		return &PermanentLLMError{Status: status, Err: err}
	}
	// Connection-level failures with no status are worth one more try.
	return &TransientLLMError{Err: err}
}
