package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIConfig for any OpenAI compatible chat completions endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // empty keeps the SDK default
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAIBackend answers both capabilities with chat completions. Answers are
// requested as JSON and validated like the HTTP backend's responses.
type OpenAIBackend struct {
	cfg    OpenAIConfig
	client openai.Client
	log    *slog.Logger
}

func NewOpenAIBackend(cfg OpenAIConfig, logger *slog.Logger) *OpenAIBackend {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIBackend{
		cfg:    cfg,
		client: openai.NewClient(opts...),
		log:    logger,
	}
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) complete(ctx context.Context, c Capability, system, user string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(b.cfg.Temperature),
	})
	if err != nil {
		b.log.Error("inference.openai.error",
			"req_id", rid, "capability", c, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", Classify(c, err)
	}
	if len(resp.Choices) == 0 {
		return "", malformed(c, "no choices in response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", malformed(c, "empty completion")
	}
	b.log.Debug("inference.openai.ok",
		"req_id", rid,
		"capability", c,
		"model", b.cfg.Model,
		"total_tokens", resp.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (b *OpenAIBackend) Summarize(ctx context.Context, text string, maxLen int) (string, error) {
	system := "You write short abstractive summaries of scanned business documents. " +
		"Reply with the summary only, in plain prose, no preamble."
	user := fmt.Sprintf("Summarize the following OCR text (at most %d characters were kept):\n\n%s", maxLen, text)
	return b.complete(ctx, CapabilitySummarize, system, user)
}

func (b *OpenAIBackend) Answer(ctx context.Context, question, passage string) (string, error) {
	system := "You answer questions by quoting the shortest span of the given context that answers them. " +
		`Return ONLY JSON of the form {"answer": "<span>"}. If the context has no answer, return {"answer": ""}.`
	user := "Context:\n" + passage + "\n\nQuestion: " + question
	content, err := b.complete(ctx, CapabilityAnswer, system, user)
	if err != nil {
		return "", err
	}
	raw := []byte(stripFences(content))
	if err := validateResponse(answerSchema, raw); err != nil {
		return "", malformed(CapabilityAnswer, "%w", err)
	}
	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", malformed(CapabilityAnswer, "decode answer: %w", err)
	}
	return out.Answer, nil
}

// stripFences removes a surrounding ```json ... ``` block if the model added one.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
