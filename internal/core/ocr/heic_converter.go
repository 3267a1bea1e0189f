package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/docscan/internal/entity"
)

// rasterizeHEIC converts a HEIC/HEIF document to a single PNG page.
// If ArtifactCacheDir is set the PNG is persisted (and reused) at
//
//	{ArtifactCacheDir}/{sha256(content)}.png
func (r *Rasterizer) rasterizeHEIC(ctx context.Context, doc entity.Document) ([]entity.PageImage, error) {
	sum := sha256.Sum256(doc.Content)
	hashHex := hex.EncodeToString(sum[:])

	var cached string
	if r.cfg.ArtifactCacheDir != "" {
		cached = filepath.Join(r.cfg.ArtifactCacheDir, hashHex+".png")
		if data, err := os.ReadFile(cached); err == nil && len(data) > 0 {
			r.logger.Debug("using cached heic->png", "cache", cached)
			return []entity.PageImage{{Index: 0, Data: data}}, nil
		}
	}

	tmpDir, err := os.MkdirTemp("", "ds-heic-*")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "in."+doc.Ext)
	if err := os.WriteFile(in, doc.Content, 0o600); err != nil {
		return nil, err
	}
	out := filepath.Join(tmpDir, "page.png")

	switch r.cfg.HeicConverter {
	case "heif-convert":
		if _, errb, err := r.runner.Run(ctx, "heif-convert", nil, in, out); err != nil {
			return nil, fmt.Errorf("heif-convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	case "magick":
		if _, errb, err := r.runner.Run(ctx, "magick", nil, in, out); err != nil {
			return nil, fmt.Errorf("magick convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	case "sips":
		if _, errb, err := r.runner.Run(ctx, "sips", nil, "-s", "format", "png", in, "--out", out); err != nil {
			return nil, fmt.Errorf("sips convert failed: %w: %s", err, truncate(string(errb), 512))
		}
	default:
		return nil, fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}

	if cached != "" {
		if err := writeCache(r.cfg.ArtifactCacheDir, cached, data); err != nil {
			r.logger.Warn("failed to cache heic->png", "cache", cached, "error", err)
		} else {
			r.logger.Debug("cached heic->png", "cache", cached)
		}
	}
	return []entity.PageImage{{Index: 0, Data: data}}, nil
}

// writeCache writes through a temp file in the cache dir and renames it into place.
func writeCache(dir, target string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".heic-*.png")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
