package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/core/ocr"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

// OCRAdapter chains the rasterizer and recognizer into a TextExtractor.
// Page images are dropped as soon as their text has been read.
type OCRAdapter struct {
	rasterizer *ocr.Rasterizer
	recognizer *ocr.Recognizer
	engine     string
	logger     *slog.Logger
}

func NewOCRAdapter(r *ocr.Rasterizer, rec *ocr.Recognizer, engine ocr.Engine, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	name := ""
	if engine != nil {
		name = engine.Name()
	}
	return &OCRAdapter{rasterizer: r, recognizer: rec, engine: name, logger: logger}
}

func (a *OCRAdapter) ExtractText(ctx context.Context, doc entity.Document) (TextExtractionResult, error) {
	start := time.Now()
	source := constants.MapExtToFormat(doc.Ext)
	if source == "" {
		source = constants.IMAGE
	}

	pages, err := a.rasterizer.Rasterize(ctx, doc)
	if err != nil {
		return TextExtractionResult{SourceType: source}, err
	}
	text, err := a.recognizer.Recognize(ctx, doc.Filename, pages)
	if err != nil {
		return TextExtractionResult{SourceType: source, Pages: len(pages)}, err
	}

	res := TextExtractionResult{
		Text:       text,
		Pages:      len(pages),
		SourceType: source,
		Engine:     a.engine,
		Duration:   time.Since(start),
	}
	a.logger.Debug("text extracted",
		"filename", doc.Filename,
		"source", res.SourceType,
		"pages", res.Pages,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
