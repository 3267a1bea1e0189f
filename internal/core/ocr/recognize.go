package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/docscan/internal/entity"
)

// Engine recognizes the text on a single page image.
type Engine interface {
	Name() string
	RecognizePage(ctx context.Context, page entity.PageImage) (string, error)
}

// Recognizer runs an Engine over every page of a document in order.
type Recognizer struct {
	engine    Engine
	normalize bool
	logger    *slog.Logger
}

func NewRecognizer(engine Engine, normalize bool, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{engine: engine, normalize: normalize, logger: logger}
}

// Recognize concatenates each page's text followed by a newline, in page
// order. An empty page still contributes its newline. The first failing page
// aborts with a *RecognitionError.
func (r *Recognizer) Recognize(ctx context.Context, filename string, pages []entity.PageImage) (string, error) {
	start := time.Now()
	var b strings.Builder
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return "", &RecognitionError{Filename: filename, Page: p.Index, Err: err}
		}
		txt, err := r.engine.RecognizePage(ctx, p)
		if err != nil {
			r.logger.Error("ocr page failed", "filename", filename, "page", p.Index+1, "engine", r.engine.Name(), "error", err)
			return "", &RecognitionError{Filename: filename, Page: p.Index, Err: err}
		}
		if r.normalize {
			txt = Normalize(txt)
		}
		b.WriteString(txt)
		b.WriteString("\n")
	}

	r.logger.Debug("ocr ok",
		"filename", filename,
		"engine", r.engine.Name(),
		"pages", len(pages),
		"text_len", b.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b.String(), nil
}
