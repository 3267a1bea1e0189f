// Package extract holds both pipeline stages that produce document data:
// file -> text (TextExtractor) and text -> fields (FieldExtractor).
package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

// TextExtractor is Stage 1: document -> recognized text.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc entity.Document) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Engine     string
	Duration   time.Duration
}

// FieldExtractor is Stage 2: text -> labelled fields.
type FieldExtractor interface {
	ExtractFields(text string, docType constants.DocumentType) entity.FieldRecord
}
