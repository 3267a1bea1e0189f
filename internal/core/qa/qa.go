// Package qa answers free-form questions against the QA context of the last
// completed batch.
package qa

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/docscan/internal/core/inference"
)

const (
	NoQuestionText   = "No question provided."
	NoContextText    = "Unable to generate answer. Try re-uploading the document."
	AnswerFailedText = "An error occurred while generating the answer."
)

// Outcome classifies an Answer.
type Outcome string

const (
	OutcomeAnswered   Outcome = "answered"
	OutcomeNoQuestion Outcome = "no_question"
	OutcomeNoContext  Outcome = "no_context"
	OutcomeFailed     Outcome = "failed"
)

type Answer struct {
	Text    string
	Outcome Outcome
	// Failure is set when Outcome is OutcomeFailed.
	Failure inference.ErrorKind
	// ContextVersion is the context version the answer was computed from.
	ContextVersion uint64
}

// Source is read by the adapter; *Context implements it.
type Source interface {
	Snapshot() Snapshot
}

type Adapter struct {
	qactx      Source
	capability inference.QuestionAnswerer
	timeout    time.Duration
	logger     *slog.Logger
}

func NewAdapter(qactx Source, capability inference.QuestionAnswerer, timeout time.Duration, logger *slog.Logger) *Adapter {
	if qactx == nil {
		qactx = NewContext()
	}
	if capability == nil {
		capability = inference.Unavailable{}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{qactx: qactx, capability: capability, timeout: timeout, logger: logger}
}

// Ask never returns an error. An empty question is answered without reading
// the context; a blank context without calling the capability. Any other
// question, whitespace included, is passed to the capability as given.
func (a *Adapter) Ask(ctx context.Context, question string) Answer {
	if question == "" {
		return Answer{Text: NoQuestionText, Outcome: OutcomeNoQuestion}
	}

	snap := a.qactx.Snapshot()
	if strings.TrimSpace(snap.Text) == "" {
		a.logger.Info("qa.no_context")
		return Answer{Text: NoContextText, Outcome: OutcomeNoContext, ContextVersion: snap.Version}
	}

	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.capability.Answer(cctx, question, snap.Text)
	if err != nil {
		ce := inference.Classify(inference.CapabilityAnswer, err)
		a.logger.Warn("qa.failed",
			"kind", ce.Kind,
			"error", ce.Err,
			"batch_id", snap.BatchID,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Answer{Text: AnswerFailedText, Outcome: OutcomeFailed, Failure: ce.Kind, ContextVersion: snap.Version}
	}

	a.logger.Info("qa.ok",
		"batch_id", snap.BatchID,
		"context_len", len(snap.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Answer{Text: strings.TrimSpace(out), Outcome: OutcomeAnswered, ContextVersion: snap.Version}
}
