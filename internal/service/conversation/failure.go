package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/nutrigraph/nutribot/backend/internal/service/ai"
)

// FailureKind classifies why a remote answer was replaced by a fallback.
type FailureKind string

const (
	FailureNone      FailureKind = "none"
	FailureTimeout   FailureKind = "timeout"
	FailureTransport FailureKind = "transport_error"
	FailureMalformed FailureKind = "malformed_response"
)

var (
	// ErrEmptyInput is returned for blank submissions; nothing is recorded.
	ErrEmptyInput = errors.New("empty input")
	// ErrBusy is returned when a submission is running and another is already queued.
	ErrBusy = errors.New("a submission is already pending")
	// ErrUnavailable is the transport failure used when no model is configured.
	ErrUnavailable = errors.New("remote model unavailable")
	// ErrEmptyAnswer is a successful call that produced no text.
	ErrEmptyAnswer = fmt.Errorf("%w: empty answer", ai.ErrMalformedResponse)

	errRaceTimeout = errors.New("remote call exceeded timeout")
)

// classify maps a race error to its failure kind.
func classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, errRaceTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ai.ErrMalformedResponse):
		return FailureMalformed
	default:
		return FailureTransport
	}
}
