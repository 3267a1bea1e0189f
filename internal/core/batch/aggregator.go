// Package batch runs every document of a submission through OCR, field
// extraction and summarization, then merges the results.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/core/async"
	"github.com/joseph-ayodele/docscan/internal/core/extract"
	"github.com/joseph-ayodele/docscan/internal/core/ocr"
	"github.com/joseph-ayodele/docscan/internal/core/qa"
	"github.com/joseph-ayodele/docscan/internal/core/summarize"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

// Summarizer is satisfied by *summarize.Adapter.
type Summarizer interface {
	Summarize(ctx context.Context, text string, budget int) summarize.Result
}

// Exporter is satisfied by *export.Service.
type Exporter interface {
	Export(ctx context.Context, records []entity.FieldRecord) error
}

// Aggregator owns the QA context; nothing else writes it.
type Aggregator struct {
	logger     *slog.Logger
	text       extract.TextExtractor
	fields     extract.FieldExtractor
	summarizer Summarizer
	exporter   Exporter
	qactx      *qa.Context
	queue      async.Queue

	// completeMu serializes the end of a batch: context write, export and
	// last-result swap happen as one step.
	completeMu sync.Mutex
	last       *entity.BatchResult
}

func NewAggregator(
	logger *slog.Logger,
	text extract.TextExtractor,
	fields extract.FieldExtractor,
	summarizer Summarizer,
	exporter Exporter,
	qactx *qa.Context,
	queue async.Queue,
) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if qactx == nil {
		qactx = qa.NewContext()
	}
	if queue == nil {
		queue = async.NewProcessorQueue(logger)
	}
	return &Aggregator{
		logger:     logger,
		text:       text,
		fields:     fields,
		summarizer: summarizer,
		exporter:   exporter,
		qactx:      qactx,
		queue:      queue,
	}
}

// Context is the QA context this aggregator replaces after each batch.
func (a *Aggregator) Context() *qa.Context { return a.qactx }

// Last returns the most recently completed batch, or nil.
func (a *Aggregator) Last() *entity.BatchResult {
	a.completeMu.Lock()
	defer a.completeMu.Unlock()
	return a.last
}

// Process runs docs as one batch. It only errors on a malformed request;
// per-document failures are reported in BatchResult.Failures.
func (a *Aggregator) Process(ctx context.Context, docType constants.DocumentType, docs []entity.Document) (*entity.BatchResult, error) {
	if len(docs) == 0 {
		return nil, common.ErrNoDocuments
	}
	start := time.Now()
	batchID := uuid.NewString()
	ctx = common.WithBatchID(ctx, batchID)

	n := len(docs)
	res := &entity.BatchResult{
		ID:           batchID,
		DocumentType: docType,
		Filenames:    make([]string, n),
		Records:      make([]entity.FieldRecord, n),
		Summaries:    make([]string, n),
		Texts:        make([]string, n),
		StartedAt:    start,
	}
	errs := make([]error, n)

	a.logger.Info("batch.start", "batch_id", batchID, "document_type", docType, "documents", n)

	var wg sync.WaitGroup
	for i, doc := range docs {
		res.Filenames[i] = doc.Filename
		wg.Add(1)
		job := async.Job{
			BatchID:  batchID,
			Index:    i,
			Filename: doc.Filename,
			Ctx:      ctx,
			Run: func(jctx context.Context) error {
				return a.processDocument(jctx, res, i, doc)
			},
			Done: func(err error) {
				errs[i] = err
				wg.Done()
			},
		}
		if err := a.queue.Enqueue(ctx, job); err != nil {
			errs[i] = err
			wg.Done()
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err == nil {
			continue
		}
		res.Records[i] = entity.FieldRecord{}
		res.Texts[i] = ""
		res.Summaries[i] = summarize.DocumentFallback
		f := entity.DocumentFailure{
			Index:    i,
			Filename: docs[i].Filename,
			Status:   failureStatus(err),
			Message:  err.Error(),
		}
		res.Failures = append(res.Failures, f)
		a.logger.Warn("batch.document.failed",
			"batch_id", batchID,
			"doc_index", i,
			"filename", f.Filename,
			"status", f.Status,
			"error", err,
		)
	}

	res.MergedText = strings.Join(res.Texts, "\n")
	if res.Succeeded() > 0 {
		res.MergedSummary = a.summarizer.Summarize(ctx, res.MergedText, summarize.LongBudget).
			OrFallback(summarize.MergedFallback)
	} else {
		res.MergedSummary = summarize.MergedFallback
	}

	a.complete(ctx, res)

	a.logger.Info("batch.done",
		"batch_id", batchID,
		"documents", n,
		"failed", len(res.Failures),
		"context_kept", res.ContextKept,
		"export_error", res.ExportErr != "",
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// processDocument fills slot i of res. Only text extraction failures are
// returned; summary failures degrade to the fallback text.
func (a *Aggregator) processDocument(ctx context.Context, res *entity.BatchResult, i int, doc entity.Document) error {
	start := time.Now()
	tr, err := a.text.ExtractText(ctx, doc)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return err
	}

	res.Texts[i] = tr.Text
	res.Records[i] = a.fields.ExtractFields(tr.Text, res.DocumentType)
	res.Summaries[i] = a.summarizer.Summarize(ctx, tr.Text, summarize.ShortBudget).
		OrFallback(summarize.DocumentFallback)

	a.logger.Debug("batch.document.ok",
		"batch_id", res.ID,
		"doc_index", i,
		"filename", doc.Filename,
		"pages", tr.Pages,
		"fields", res.Records[i].Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// complete replaces the QA context and regenerates the exports. A batch in
// which every document failed leaves the previous context in place.
func (a *Aggregator) complete(ctx context.Context, res *entity.BatchResult) {
	a.completeMu.Lock()
	defer a.completeMu.Unlock()

	if res.Succeeded() > 0 {
		a.qactx.Replace(res.ID, res.MergedText)
	} else {
		res.ContextKept = true
		a.logger.Warn("batch.context.kept", "batch_id", res.ID, "reason", "no document produced text")
	}

	if a.exporter != nil {
		if err := a.exporter.Export(ctx, res.Records); err != nil {
			res.ExportErr = err.Error()
			a.logger.Error("batch.export.failed", "batch_id", res.ID, "error", err)
		}
	}

	res.FinishedAt = time.Now()
	a.last = res
}

func failureStatus(err error) constants.DocumentStatus {
	var rerr *ocr.RasterizationError
	var cerr *ocr.RecognitionError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return constants.DocumentStatusTimedOut
	case errors.Is(err, context.Canceled):
		return constants.DocumentStatusCancelled
	case errors.Is(err, async.ErrQueueClosed):
		return constants.DocumentStatusRejected
	case errors.As(err, &rerr):
		return constants.DocumentStatusRasterizeFailed
	case errors.As(err, &cerr):
		return constants.DocumentStatusRecognizeFailed
	}
	return constants.DocumentStatusRecognizeFailed
}
