package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/docscan/internal/entity"
)

// TesseractCLI shells out to the tesseract binary, feeding the page on stdin.
type TesseractCLI struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseractCLI(cfg Config, runner Runner, logger *slog.Logger) *TesseractCLI {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &TesseractCLI{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

func (t *TesseractCLI) Name() string { return "tesseract" }

func (t *TesseractCLI) args() []string {
	// tesseract stdin stdout -l <lang> --dpi <dpi> -c page_separator=
	args := []string{"stdin", "stdout", "-l", t.cfg.Lang, "--dpi", strconv.Itoa(t.cfg.DPI)}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return append(args, "-c", "page_separator=")
}

func (t *TesseractCLI) RecognizePage(ctx context.Context, page entity.PageImage) (string, error) {
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, page.Data, t.args()...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return string(out), nil
}
