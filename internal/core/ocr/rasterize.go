package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

var disablePdfcpuConfig sync.Once

// PageCounter reports how many pages a PDF has, failing on unreadable input.
type PageCounter func(content []byte) (int, error)

// CountPDFPages validates the PDF with pdfcpu in relaxed mode and returns its page count.
func CountPDFPages(content []byte) (int, error) {
	disablePdfcpuConfig.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(content), conf)
}

// Rasterizer converts a document into an ordered sequence of page images.
type Rasterizer struct {
	cfg        Config
	runner     Runner
	countPages PageCounter
	logger     *slog.Logger
}

func NewRasterizer(cfg Config, runner Runner, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &Rasterizer{cfg: cfg.withDefaults(), runner: runner, countPages: CountPDFPages, logger: logger}
}

// WithPageCounter swaps the PDF page counter; used by tests.
func (r *Rasterizer) WithPageCounter(pc PageCounter) *Rasterizer {
	r.countPages = pc
	return r
}

// Rasterize renders PDFs page by page at the configured DPI. Every other
// extension is treated as one image. Errors are *RasterizationError.
func (r *Rasterizer) Rasterize(ctx context.Context, doc entity.Document) ([]entity.PageImage, error) {
	start := time.Now()
	if len(doc.Content) == 0 {
		return nil, &RasterizationError{Filename: doc.Filename, Err: errors.New("empty document")}
	}

	var (
		pages []entity.PageImage
		err   error
	)
	switch {
	case constants.MapExtToFormat(doc.Ext) == constants.PDF:
		pages, err = r.rasterizePDF(ctx, doc)
	case constants.IsHEICExt(doc.Ext):
		pages, err = r.rasterizeHEIC(ctx, doc)
	default:
		pages, err = r.rasterizeImage(doc)
	}
	if err != nil {
		r.logger.Error("rasterize failed", "filename", doc.Filename, "ext", doc.Ext, "error", err)
		return nil, &RasterizationError{Filename: doc.Filename, Err: err}
	}

	r.logger.Debug("rasterize ok",
		"filename", doc.Filename,
		"pages", len(pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}

func (r *Rasterizer) rasterizeImage(doc entity.Document) ([]entity.PageImage, error) {
	if err := checkImage(doc.Content); err != nil {
		return nil, err
	}
	return []entity.PageImage{{Index: 0, Data: doc.Content}}, nil
}

func checkImage(data []byte) error {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return nil
}

func (r *Rasterizer) rasterizePDF(ctx context.Context, doc entity.Document) ([]entity.PageImage, error) {
	count, err := r.countPages(doc.Content)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if count == 0 {
		return nil, errors.New("pdf has no pages")
	}

	tmpDir, err := os.MkdirTemp("", "ds-pp-*")
	if err != nil {
		return nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png [-l N] - <tmp/page>   (PDF read from stdin)
	args := []string{"-r", strconv.Itoa(r.cfg.DPI), "-png"}
	if r.cfg.MaxPages > 0 && count > r.cfg.MaxPages {
		args = append(args, "-l", strconv.Itoa(r.cfg.MaxPages))
	}
	args = append(args, "-", prefix)
	if _, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, doc.Content, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	// pdftoppm writes prefix-1.png, prefix-2.png, ... (zero padded for long documents)
	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return nil, errors.New("pdftoppm produced no images")
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(prefix, matches[i]) < pageNumber(prefix, matches[j])
	})
	if r.cfg.MaxPages > 0 && len(matches) > r.cfg.MaxPages {
		matches = matches[:r.cfg.MaxPages]
	}

	pages := make([]entity.PageImage, 0, len(matches))
	for i, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i+1, err)
		}
		pages = append(pages, entity.PageImage{Index: i, Data: data})
	}
	if len(pages) != count && (r.cfg.MaxPages == 0 || len(pages) < r.cfg.MaxPages) {
		r.logger.Warn("rendered page count differs from pdf page count",
			"filename", doc.Filename, "pdf_pages", count, "rendered", len(pages))
	}
	return pages, nil
}

func pageNumber(prefix, path string) int {
	s := strings.TrimSuffix(strings.TrimPrefix(path, prefix+"-"), ".png")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 1 << 30
	}
	return n
}
