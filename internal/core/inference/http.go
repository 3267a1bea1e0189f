package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StatusError carries a non-2xx response from an inference endpoint.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx status: %d", e.Status)
}

// SendJSON posts body as JSON to url and returns the raw response body.
// It does not assume any provider; callers decide the URL and headers.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	reqID := uuid.New().String()
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("inference.http.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		logger.Error("inference.http.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("inference.http.request",
		"req_id", reqID,
		"url", url,
		"content_length", len(bs),
	)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("inference.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("inference.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	logger.Debug("inference.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, &StatusError{Status: resp.StatusCode, Body: string(raw)}
	}
	return raw, resp.StatusCode, nil
}

// HTTPConfig points the backend at a Hugging Face style inference server:
// POST {URL}/models/{model}.
type HTTPConfig struct {
	URL          string
	SummaryModel string
	QAModel      string
	Token        string
	Timeout      time.Duration
}

// HTTPBackend calls a summarization and an extractive QA model over HTTP.
type HTTPBackend struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger
}

func NewHTTPBackend(cfg HTTPConfig, logger *slog.Logger) *HTTPBackend {
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = "facebook/bart-large-cnn"
	}
	if cfg.QAModel == "" {
		cfg.QAModel = "distilbert-base-cased-distilled-squad"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (b *HTTPBackend) Name() string { return "http" }

func (b *HTTPBackend) endpoint(model string) string {
	return strings.TrimRight(b.cfg.URL, "/") + "/models/" + model
}

func (b *HTTPBackend) headers() map[string]string {
	if b.cfg.Token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + b.cfg.Token}
}

func (b *HTTPBackend) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	body := map[string]any{
		"inputs":     text,
		"parameters": map[string]any{"truncation": true},
	}
	raw, _, err := SendJSON(ctx, b.client, b.endpoint(b.cfg.SummaryModel), body, b.headers(), b.logger)
	if err != nil {
		return "", Classify(CapabilitySummarize, err)
	}
	if err := validateResponse(summarySchema, raw); err != nil {
		return "", malformed(CapabilitySummarize, "%w", err)
	}
	var out []struct {
		SummaryText string `json:"summary_text"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", malformed(CapabilitySummarize, "decode summary: %w", err)
	}
	return out[0].SummaryText, nil
}

func (b *HTTPBackend) Answer(ctx context.Context, question, passage string) (string, error) {
	body := map[string]any{
		"inputs": map[string]any{
			"question": question,
			"context":  passage,
		},
	}
	raw, _, err := SendJSON(ctx, b.client, b.endpoint(b.cfg.QAModel), body, b.headers(), b.logger)
	if err != nil {
		return "", Classify(CapabilityAnswer, err)
	}
	if err := validateResponse(answerSchema, raw); err != nil {
		return "", malformed(CapabilityAnswer, "%w", err)
	}
	var out struct {
		Answer string  `json:"answer"`
		Score  float64 `json:"score"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", malformed(CapabilityAnswer, "decode answer: %w", err)
	}
	b.logger.Debug("inference.answer.ok", "score", out.Score, "answer_len", len(out.Answer))
	return out.Answer, nil
}
