package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docscan/internal/common"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPBackend_Summarize(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`[{"summary_text":"An invoice for 5000."}]`))
	})

	b := NewHTTPBackend(HTTPConfig{URL: srv.URL + "/", SummaryModel: "sum"}, nil)
	out, err := b.Summarize(context.Background(), "Invoice No: INV-001", 1024)
	require.NoError(t, err)
	assert.Equal(t, "An invoice for 5000.", out)
	assert.Equal(t, "/models/sum", gotPath)
	assert.Equal(t, "Invoice No: INV-001", gotBody["inputs"])
}

func TestHTTPBackend_Answer(t *testing.T) {
	var gotBody struct {
		Inputs struct {
			Question string `json:"question"`
			Context  string `json:"context"`
		} `json:"inputs"`
	}
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"answer":"INV-001","score":0.93,"start":12,"end":19}`))
	})

	b := NewHTTPBackend(HTTPConfig{URL: srv.URL, QAModel: "qa", Token: "tok"}, nil)
	out, err := b.Answer(context.Background(), "What is the invoice number?", "Invoice No: INV-001")
	require.NoError(t, err)
	assert.Equal(t, "INV-001", out)
	assert.Equal(t, "What is the invoice number?", gotBody.Inputs.Question)
	assert.Equal(t, "Invoice No: INV-001", gotBody.Inputs.Context)
}

func TestHTTPBackend_ErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
		kind ErrorKind
	}{
		{
			name: "server error",
			h:    func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			kind: KindFailed,
		},
		{
			name: "wrong shape",
			h:    func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"generated_text":"x"}`)) },
			kind: KindMalformed,
		},
		{
			name: "empty list",
			h:    func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`[]`)) },
			kind: KindMalformed,
		},
		{
			name: "not json",
			h:    func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`<html>`)) },
			kind: KindMalformed,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, tc.h)
			_, err := NewHTTPBackend(HTTPConfig{URL: srv.URL}, nil).Summarize(context.Background(), "x", 10)
			var ce *CapabilityError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, CapabilitySummarize, ce.Capability)
			assert.Equal(t, tc.kind, ce.Kind)
		})
	}
}

func TestHTTPBackend_StatusErrorKeepsBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad input"}`))
	})
	_, err := NewHTTPBackend(HTTPConfig{URL: srv.URL}, nil).Answer(context.Background(), "q", "c")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Contains(t, se.Body, "bad input")
}

func TestHTTPBackend_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewHTTPBackend(HTTPConfig{URL: srv.URL}, nil).Answer(ctx, "q", "c")

	var ce *CapabilityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindTimeout, ce.Kind)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(CapabilityAnswer, nil))
	assert.Equal(t, KindTimeout, Classify(CapabilityAnswer, context.DeadlineExceeded).Kind)
	assert.Equal(t, KindUnavailable, Classify(CapabilityAnswer, ErrUnavailable).Kind)
	assert.Equal(t, KindFailed, Classify(CapabilityAnswer, errors.New("boom")).Kind)

	orig := &CapabilityError{Capability: CapabilitySummarize, Kind: KindMalformed}
	assert.Same(t, orig, Classify(CapabilityAnswer, orig))
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(common.InferenceConfig{Backend: "none"}, nil)
	require.NoError(t, err)
	_, err = b.Summarize(context.Background(), "x", 1)
	var ce *CapabilityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindUnavailable, ce.Kind)

	b, err = NewBackend(common.InferenceConfig{Backend: "http", URL: "http://localhost:1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http", b.Name())

	b, err = NewBackend(common.InferenceConfig{Backend: "openai", APIKey: "k", RPS: 5}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", b.Name())

	_, err = NewBackend(common.InferenceConfig{Backend: "grpc"}, nil)
	require.Error(t, err)
}

func TestOpenAIBackend_Answer(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "c1", "object": "chat.completion", "created": 1, "model": "m",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "` + "```json\\n{\\\"answer\\\": \\\"INV-001\\\"}\\n```" + `"}}],
			"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
		}`))
	})

	b := NewOpenAIBackend(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"}, nil)
	out, err := b.Answer(context.Background(), "Invoice number?", "Invoice No: INV-001")
	require.NoError(t, err)
	assert.Equal(t, "INV-001", out)
}

func TestOpenAIBackend_EmptyCompletionIsMalformed(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  "}}]}`))
	})

	b := NewOpenAIBackend(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := b.Summarize(context.Background(), "text", 1024)
	var ce *CapabilityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, KindMalformed, ce.Kind)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"answer":"x"}`, stripFences("```json\n{\"answer\":\"x\"}\n```"))
	assert.Equal(t, `{"answer":"x"}`, stripFences(` {"answer":"x"} `))
}

type countingBackend struct {
	Unavailable
	calls int
}

func (c *countingBackend) Summarize(context.Context, string, int) (string, error) {
	c.calls++
	return "ok", nil
}

func TestWithRateLimit(t *testing.T) {
	inner := &countingBackend{}
	assert.Same(t, Backend(inner), WithRateLimit(inner, 0))

	b := WithRateLimit(inner, 1000)
	for i := 0; i < 3; i++ {
		out, err := b.Summarize(context.Background(), "x", 1)
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}
	assert.Equal(t, 3, inner.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WithRateLimit(inner, 0.001).Summarize(ctx, "x", 1)
	require.Error(t, err)
}
