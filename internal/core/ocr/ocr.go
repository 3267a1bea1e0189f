// Package ocr turns document bytes into page images and page images into text.
package ocr

import (
	"log/slog"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Engine    string // "tesseract" (CLI) | "gosseract" (in-process)

	Lang     string // default "eng"
	DPI      int    // rasterization DPI for PDFs, default 300
	MaxPages int    // 0 = no limit

	TessdataDir   string
	HeicConverter string // "heif-convert" | "magick" | "sips"

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	ArtifactCacheDir string
	Normalize        bool
}

func (c Config) withDefaults() Config {
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.Engine == "" {
		c.Engine = "tesseract"
	}
	if c.Lang == "" {
		c.Lang = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	return c
}

// NewEngine picks the OCR engine named by cfg.Engine.
func NewEngine(cfg Config, runner Runner, logger *slog.Logger) (Engine, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Engine {
	case "gosseract":
		return newGosseractEngine(cfg, logger)
	default:
		return NewTesseractCLI(cfg, runner, logger), nil
	}
}
