package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/core/async"
	"github.com/joseph-ayodele/docscan/internal/core/extract"
	"github.com/joseph-ayodele/docscan/internal/core/ocr"
	"github.com/joseph-ayodele/docscan/internal/core/qa"
	"github.com/joseph-ayodele/docscan/internal/core/summarize"
	"github.com/joseph-ayodele/docscan/internal/entity"
	"github.com/joseph-ayodele/docscan/internal/export"
)

// fakeText returns the text registered for a filename, or its error.
type fakeText struct {
	texts map[string]string
	errs  map[string]error
	delay map[string]time.Duration
}

func (f *fakeText) ExtractText(ctx context.Context, doc entity.Document) (extract.TextExtractionResult, error) {
	if d := f.delay[doc.Filename]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return extract.TextExtractionResult{}, ctx.Err()
		}
	}
	if err := f.errs[doc.Filename]; err != nil {
		return extract.TextExtractionResult{}, err
	}
	return extract.TextExtractionResult{Text: f.texts[doc.Filename], Pages: 1, SourceType: constants.IMAGE}, nil
}

type fakeSummarizer struct {
	mu     sync.Mutex
	inputs []string
	fail   bool
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, text)
	if f.fail {
		return "", errors.New("summarizer down")
	}
	return fmt.Sprintf("summary(%d)", len(text)), nil
}

type recordingAnswerer struct {
	passage string
}

func (r *recordingAnswerer) Answer(_ context.Context, _, passage string) (string, error) {
	r.passage = passage
	return "ok", nil
}

type failingExporter struct{}

func (failingExporter) Export(context.Context, []entity.FieldRecord) error {
	return errors.New("disk full")
}

type fixture struct {
	agg      *Aggregator
	text     *fakeText
	sum      *fakeSummarizer
	exporter *export.Service
	qactx    *qa.Context
	queue    *async.ProcessorQueue
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()
	ft := &fakeText{texts: map[string]string{}, errs: map[string]error{}, delay: map[string]time.Duration{}}
	fs := &fakeSummarizer{}
	exp := export.NewService(t.TempDir(), nil)
	qc := qa.NewContext()
	q := async.NewProcessorQueue(nil, async.WithWorkers(workers), async.WithProcessTimeout(time.Second))
	t.Cleanup(func() { q.Shutdown(context.Background()) })

	agg := NewAggregator(nil, ft, extract.NewExtractor(nil, nil), summarize.NewAdapter(fs, time.Second, nil), exp, qc, q)
	return &fixture{agg: agg, text: ft, sum: fs, exporter: exp, qactx: qc, queue: q}
}

func docs(names ...string) []entity.Document {
	out := make([]entity.Document, len(names))
	for i, n := range names {
		out[i] = entity.NewDocument(n, []byte("bytes of "+n))
	}
	return out
}

func TestProcess_NoDocuments(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.agg.Process(context.Background(), constants.Invoice, nil)
	assert.ErrorIs(t, err, common.ErrNoDocuments)
	assert.Nil(t, f.agg.Last())
}

func TestProcess_InvoiceScenario(t *testing.T) {
	f := newFixture(t, 2)
	f.text.texts["invoice.png"] = "Invoice No: INV-001\nDate: 12/05/2024\nTotal: Rs. 5000\n"

	res, err := f.agg.Process(context.Background(), constants.Invoice, docs("invoice.png"))
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	assert.Equal(t, map[string]string{
		"Invoice No":   "INV-001",
		"Date":         "12/05/2024",
		"Total Amount": "5000",
	}, res.Records[0].Map())
	assert.False(t, res.Records[0].Has("Party Name"))
	assert.False(t, res.Records[0].Has("HS Code"))
	assert.Empty(t, res.Failures)
	assert.Empty(t, res.ExportErr)

	data, _, err := f.exporter.ReadAll("txt")
	require.NoError(t, err)
	assert.Equal(t, "\n--- Document 1 ---\nInvoice No: INV-001\nDate: 12/05/2024\nTotal Amount: 5000\n", string(data))
}

func TestProcess_OrderingMatchesSubmission(t *testing.T) {
	f := newFixture(t, 4)
	const n = 12
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("doc-%02d.png", i)
		f.text.texts[names[i]] = fmt.Sprintf("Invoice No: INV-%03d\n", i)
		// later documents finish first
		f.text.delay[names[i]] = time.Duration(n-i) * 3 * time.Millisecond
	}

	res, err := f.agg.Process(context.Background(), constants.Invoice, docs(names...))
	require.NoError(t, err)

	require.Len(t, res.Records, n)
	require.Len(t, res.Summaries, n)
	require.Len(t, res.Texts, n)
	for i := 0; i < n; i++ {
		v, _ := res.Records[i].Get("Invoice No")
		assert.Equal(t, fmt.Sprintf("INV-%03d", i), v)
		assert.Equal(t, f.text.texts[names[i]], res.Texts[i])
		assert.Equal(t, names[i], res.Filenames[i])
		assert.Equal(t, fmt.Sprintf("summary(%d)", len(res.Texts[i])), res.Summaries[i])
	}
}

func TestProcess_FailureIsIsolated(t *testing.T) {
	f := newFixture(t, 2)
	f.text.texts["a.png"] = "Invoice No: A-1\n"
	f.text.errs["b.pdf"] = &ocr.RasterizationError{Filename: "b.pdf", Err: errors.New("corrupt")}
	f.text.errs["c.png"] = &ocr.RecognitionError{Filename: "c.png", Page: 0, Err: errors.New("engine crashed")}
	f.text.texts["d.png"] = "Invoice No: D-4\n"
	f.text.delay["e.png"] = 5 * time.Second

	res, err := f.agg.Process(context.Background(), constants.Invoice, docs("a.png", "b.pdf", "c.png", "d.png", "e.png"))
	require.NoError(t, err)

	require.Len(t, res.Records, 5)
	require.Len(t, res.Failures, 3)
	assert.Equal(t, 2, res.Succeeded())

	byIndex := map[int]entity.DocumentFailure{}
	for _, fl := range res.Failures {
		byIndex[fl.Index] = fl
	}
	assert.Equal(t, constants.DocumentStatusRasterizeFailed, byIndex[1].Status)
	assert.Equal(t, constants.DocumentStatusRecognizeFailed, byIndex[2].Status)
	assert.Equal(t, constants.DocumentStatusTimedOut, byIndex[4].Status)
	assert.Equal(t, "b.pdf", byIndex[1].Filename)

	for _, i := range []int{1, 2, 4} {
		assert.Equal(t, 0, res.Records[i].Len())
		assert.Equal(t, "", res.Texts[i])
		assert.Equal(t, summarize.DocumentFallback, res.Summaries[i])
	}
	v, _ := res.Records[3].Get("Invoice No")
	assert.Equal(t, "D-4", v)
	assert.Equal(t, "Invoice No: A-1\n\n\n\nInvoice No: D-4\n\n", res.MergedText)
	assert.Equal(t, res.MergedText, f.qactx.Snapshot().Text)
}

func TestProcess_CancelledCallerMarksDocuments(t *testing.T) {
	f := newFixture(t, 2)
	f.text.texts["a.png"] = "Invoice No: A-1\n"
	f.text.delay["a.png"] = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res, err := f.agg.Process(ctx, constants.Invoice, docs("a.png"))
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, constants.DocumentStatusCancelled, res.Failures[0].Status)
	assert.Equal(t, summarize.DocumentFallback, res.Summaries[0])
}

func TestProcess_ClosedQueueRejectsDocuments(t *testing.T) {
	f := newFixture(t, 1)
	f.text.texts["a.png"] = "Invoice No: A-1\n"
	f.queue.Shutdown(context.Background())

	res, err := f.agg.Process(context.Background(), constants.Invoice, docs("a.png", "b.png"))
	require.NoError(t, err)
	require.Len(t, res.Failures, 2)
	for _, fl := range res.Failures {
		assert.Equal(t, constants.DocumentStatusRejected, fl.Status)
		assert.Contains(t, fl.Message, async.ErrQueueClosed.Error())
	}
	assert.True(t, res.ContextKept)
}

func TestProcess_QAUsesBothDocuments(t *testing.T) {
	f := newFixture(t, 2)
	f.text.texts["one.png"] = "Invoice No: INV-001\n"
	f.text.texts["two.png"] = "Party Name: Acme Traders\n"

	res, err := f.agg.Process(context.Background(), constants.Invoice, docs("one.png", "two.png"))
	require.NoError(t, err)
	assert.Equal(t, "Invoice No: INV-001\n\nParty Name: Acme Traders\n", res.MergedText)

	ans := &recordingAnswerer{}
	adapter := qa.NewAdapter(f.agg.Context(), ans, time.Second, nil)
	out := adapter.Ask(context.Background(), "Who is the party?")
	assert.Equal(t, qa.OutcomeAnswered, out.Outcome)
	assert.Contains(t, ans.passage, "INV-001")
	assert.Contains(t, ans.passage, "Acme Traders")
	assert.Equal(t, res.MergedText, ans.passage)
}

func TestProcess_TotalFailureKeepsPreviousContext(t *testing.T) {
	f := newFixture(t, 2)
	f.text.texts["good.png"] = "Invoice No: OLD-1\n"
	_, err := f.agg.Process(context.Background(), constants.Invoice, docs("good.png"))
	require.NoError(t, err)
	before := f.qactx.Snapshot()

	f.text.errs["bad1.png"] = &ocr.RasterizationError{Filename: "bad1.png", Err: errors.New("x")}
	f.text.errs["bad2.png"] = &ocr.RasterizationError{Filename: "bad2.png", Err: errors.New("y")}
	res, err := f.agg.Process(context.Background(), constants.Invoice, docs("bad1.png", "bad2.png"))
	require.NoError(t, err)

	assert.True(t, res.ContextKept)
	assert.Equal(t, summarize.MergedFallback, res.MergedSummary)
	after := f.qactx.Snapshot()
	assert.Equal(t, before.Text, after.Text)
	assert.Equal(t, before.Version, after.Version)
	assert.Same(t, res, f.agg.Last())
}

func TestProcess_PartialFailureReplacesContext(t *testing.T) {
	f := newFixture(t, 2)
	f.text.texts["old.png"] = "old text\n"
	_, err := f.agg.Process(context.Background(), constants.Invoice, docs("old.png"))
	require.NoError(t, err)

	f.text.texts["new.png"] = "new text\n"
	f.text.errs["bad.png"] = errors.New("unreadable")
	res, err := f.agg.Process(context.Background(), constants.Invoice, docs("new.png", "bad.png"))
	require.NoError(t, err)

	assert.False(t, res.ContextKept)
	assert.Equal(t, "new text\n\n", f.qactx.Snapshot().Text)
	assert.Equal(t, res.ID, f.qactx.Snapshot().BatchID)
}

func TestProcess_SummaryBudgets(t *testing.T) {
	f := newFixture(t, 1)
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'x'
	}
	f.text.texts["big.png"] = string(long)

	res, err := f.agg.Process(context.Background(), constants.Invoice, docs("big.png"))
	require.NoError(t, err)

	require.Len(t, f.sum.inputs, 2)
	assert.Len(t, f.sum.inputs[0], summarize.ShortBudget)
	assert.Len(t, f.sum.inputs[1], summarize.LongBudget)
	assert.Equal(t, fmt.Sprintf("summary(%d)", summarize.LongBudget), res.MergedSummary)
}

func TestProcess_SummarizerFailureFallsBack(t *testing.T) {
	f := newFixture(t, 1)
	f.sum.fail = true
	f.text.texts["a.png"] = "Invoice No: A-1\n"

	res, err := f.agg.Process(context.Background(), constants.Invoice, docs("a.png"))
	require.NoError(t, err)
	assert.Equal(t, []string{summarize.DocumentFallback}, res.Summaries)
	assert.Equal(t, summarize.MergedFallback, res.MergedSummary)
	assert.Empty(t, res.Failures)
}

func TestProcess_UnknownTypeYieldsEmptyRecords(t *testing.T) {
	f := newFixture(t, 1)
	f.text.texts["a.png"] = "Invoice No: A-1\n"

	res, err := f.agg.Process(context.Background(), constants.Unknown, docs("a.png"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Records[0].Len())
	assert.Equal(t, "Invoice No: A-1\n", f.qactx.Snapshot().Text)
}

func TestProcess_ExportFailureStillReturnsResults(t *testing.T) {
	ft := &fakeText{texts: map[string]string{"a.png": "Invoice No: A-1\n"}}
	q := async.NewProcessorQueue(nil, async.WithWorkers(1))
	defer q.Shutdown(context.Background())
	agg := NewAggregator(nil, ft, extract.NewExtractor(nil, nil),
		summarize.NewAdapter(&fakeSummarizer{}, time.Second, nil), failingExporter{}, nil, q)

	res, err := agg.Process(context.Background(), constants.Invoice, docs("a.png"))
	require.NoError(t, err)
	assert.Equal(t, "disk full", res.ExportErr)
	v, _ := res.Records[0].Get("Invoice No")
	assert.Equal(t, "A-1", v)
	assert.Equal(t, "Invoice No: A-1\n", agg.Context().Snapshot().Text)
}

func TestProcess_ConcurrentBatchesLeaveWholeContext(t *testing.T) {
	f := newFixture(t, 4)
	texts := map[string]string{}
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("b%d.png", i)
		f.text.texts[name] = fmt.Sprintf("batch %d text\n", i)
		texts[fmt.Sprintf("batch %d text\n", i)] = name
	}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.agg.Process(context.Background(), constants.Invoice, docs(fmt.Sprintf("b%d.png", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	snap := f.qactx.Snapshot()
	assert.Contains(t, texts, snap.Text)
	assert.Equal(t, uint64(6), snap.Version)
	assert.Equal(t, f.agg.Last().ID, snap.BatchID)
}
