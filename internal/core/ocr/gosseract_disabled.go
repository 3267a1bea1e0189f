//go:build !gosseract

package ocr

import (
	"errors"
	"log/slog"
)

func newGosseractEngine(Config, *slog.Logger) (Engine, error) {
	return nil, errors.New("gosseract engine unavailable: rebuild with -tags gosseract")
}
