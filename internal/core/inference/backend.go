package inference

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/docscan/internal/common"
)

// NewBackend builds the backend selected by cfg.Backend and applies the
// configured rate limit.
func NewBackend(cfg common.InferenceConfig, logger *slog.Logger) (Backend, error) {
	var b Backend
	switch cfg.Backend {
	case "http":
		b = NewHTTPBackend(HTTPConfig{
			URL:          cfg.URL,
			SummaryModel: cfg.SummaryModel,
			QAModel:      cfg.QAModel,
			Token:        cfg.APIKey,
			Timeout:      cfg.Timeout,
		}, logger)
	case "openai":
		b = NewOpenAIBackend(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger)
	case "none", "":
		b = Unavailable{}
	default:
		return nil, fmt.Errorf("unknown inference backend %q", cfg.Backend)
	}
	return WithRateLimit(b, cfg.RPS), nil
}

// Unavailable fails every call with KindUnavailable.
type Unavailable struct{}

func (Unavailable) Name() string { return "none" }

func (Unavailable) Summarize(context.Context, string, int) (string, error) {
	return "", &CapabilityError{Capability: CapabilitySummarize, Kind: KindUnavailable, Err: ErrUnavailable}
}

func (Unavailable) Answer(context.Context, string, string) (string, error) {
	return "", &CapabilityError{Capability: CapabilityAnswer, Kind: KindUnavailable, Err: ErrUnavailable}
}

type limited struct {
	Backend
	limiter *rate.Limiter
}

// WithRateLimit wraps b so calls wait for a token. rps <= 0 returns b unchanged.
func WithRateLimit(b Backend, rps float64) Backend {
	if rps <= 0 {
		return b
	}
	return &limited{Backend: b, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (l *limited) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", Classify(CapabilitySummarize, err)
	}
	return l.Backend.Summarize(ctx, text, maxLen)
}

func (l *limited) Answer(ctx context.Context, question, passage string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", Classify(CapabilityAnswer, err)
	}
	return l.Backend.Answer(ctx, question, passage)
}
