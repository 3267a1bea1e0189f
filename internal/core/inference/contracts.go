// Package inference holds the black-box capabilities the pipeline calls for
// abstractive summaries and extractive question answering.
package inference

import (
	"context"
	"errors"
	"fmt"
)

// Summarizer produces an abstractive summary of text. maxLen is the input
// budget the caller already cut text to.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxLen int) (string, error)
}

// QuestionAnswerer returns the answer span for question found in passage.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question, passage string) (string, error)
}

// Backend provides both capabilities from a single provider.
type Backend interface {
	Summarizer
	QuestionAnswerer
	Name() string
}

type Capability string

const (
	CapabilitySummarize Capability = "summarize"
	CapabilityAnswer    Capability = "answer"
)

// ErrorKind names the failure class of a capability call.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindTimeout     ErrorKind = "timeout"
	KindMalformed   ErrorKind = "malformed"
	KindFailed      ErrorKind = "failed"
)

// CapabilityError is returned by every backend call that did not produce a
// usable result.
type CapabilityError struct {
	Capability Capability
	Kind       ErrorKind
	Err        error
}

func (e *CapabilityError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s", e.Capability, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v", e.Capability, e.Kind, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// ErrUnavailable is wrapped when no backend is configured.
var ErrUnavailable = errors.New("inference backend not configured")

// Classify wraps err as a CapabilityError. Existing CapabilityErrors pass
// through; deadline and cancellation become KindTimeout.
func Classify(c Capability, err error) *CapabilityError {
	if err == nil {
		return nil
	}
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return ce
	}
	kind := KindFailed
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindTimeout
	case errors.Is(err, ErrUnavailable):
		kind = KindUnavailable
	}
	return &CapabilityError{Capability: c, Kind: kind, Err: err}
}

func malformed(c Capability, format string, args ...any) *CapabilityError {
	return &CapabilityError{Capability: c, Kind: KindMalformed, Err: fmt.Errorf(format, args...)}
}
