// Package summarize cuts text to a character budget and asks the summarizer
// capability for an abstractive summary. Failures come back as values.
package summarize

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/docscan/internal/core/inference"
)

const (
	// ShortBudget bounds the input of a per-document summary.
	ShortBudget = 1024
	// LongBudget bounds the input of the merged batch summary.
	LongBudget = 2048

	DocumentFallback = "Summary could not be generated."
	MergedFallback   = "Merged summary could not be generated."
)

// Result is either a summary or the reason there is none.
type Result struct {
	Text    string
	Failure inference.ErrorKind
	Err     error
}

func (r Result) OK() bool { return r.Failure == "" }

// OrFallback returns the summary, or fallback when the call failed.
func (r Result) OrFallback(fallback string) string {
	if !r.OK() {
		return fallback
	}
	return r.Text
}

type Adapter struct {
	capability inference.Summarizer
	timeout    time.Duration
	logger     *slog.Logger
}

func NewAdapter(capability inference.Summarizer, timeout time.Duration, logger *slog.Logger) *Adapter {
	if capability == nil {
		capability = inference.Unavailable{}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{capability: capability, timeout: timeout, logger: logger}
}

// Truncate cuts text to at most budget runes. Words may be split.
func Truncate(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	n := 0
	for i := range text {
		if n == budget {
			return text[:i]
		}
		n++
	}
	return text
}

// Summarize never returns an error; inspect Result.Failure instead.
func (a *Adapter) Summarize(ctx context.Context, text string, budget int) Result {
	start := time.Now()
	input := Truncate(text, budget)

	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	out, err := a.capability.Summarize(cctx, input, budget)
	if err == nil && strings.TrimSpace(out) == "" {
		err = &inference.CapabilityError{
			Capability: inference.CapabilitySummarize,
			Kind:       inference.KindMalformed,
			Err:        errors.New("empty summary"),
		}
	}
	if err != nil {
		ce := inference.Classify(inference.CapabilitySummarize, err)
		a.logger.Warn("summarize.failed",
			"kind", ce.Kind,
			"error", ce.Err,
			"input_len", len(input),
			"budget", budget,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{Failure: ce.Kind, Err: ce}
	}

	a.logger.Debug("summarize.ok",
		"input_len", len(input),
		"budget", budget,
		"summary_len", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Text: strings.TrimSpace(out)}
}
