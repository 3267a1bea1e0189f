//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/docscan/internal/entity"
)

// gosseractEngine runs libtesseract in-process. A fresh client per page keeps
// the engine safe for concurrent documents.
type gosseractEngine struct {
	cfg           Config
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

func newGosseractEngine(cfg Config, logger *slog.Logger) (Engine, error) {
	return &gosseractEngine{cfg: cfg, clientFactory: gosseract.NewClient, logger: logger}, nil
}

func (e *gosseractEngine) Name() string { return "gosseract" }

func (e *gosseractEngine) RecognizePage(ctx context.Context, page entity.PageImage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := e.clientFactory()
	defer func() {
		if err := c.Close(); err != nil {
			e.logger.Warn("gosseract close failed", "error", err)
		}
	}()

	if e.cfg.TessdataDir != "" {
		c.TessdataPrefix = e.cfg.TessdataDir
	}
	if err := c.SetLanguage(e.cfg.Lang); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if e.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return "", fmt.Errorf("set psm: %w", err)
		}
	}
	if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(e.cfg.DPI)); err != nil {
		return "", fmt.Errorf("set dpi: %w", err)
	}
	if err := c.SetImageFromBytes(page.Data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
