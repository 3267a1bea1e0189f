package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

// DefaultMaxBytes caps a single document read from disk.
const DefaultMaxBytes = 50 << 20

// FSIngestor reads documents from the local filesystem.
type FSIngestor struct {
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> constants.AllowedExtensions
	MaxBytes    int64
	Logger      *slog.Logger
}

func NewFSIngestor(logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{MaxBytes: DefaultMaxBytes, Logger: logger}
}

func (i *FSIngestor) allowed(ext string) bool {
	if i.AllowedExts == nil {
		return AllowedExt(ext)
	}
	_, ok := i.AllowedExts[constants.NormalizeExt(ext)]
	return ok
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (entity.Document, IngestionResult, error) {
	out := IngestionResult{SourcePath: path}
	if err := ctx.Err(); err != nil {
		return entity.Document{}, out, err
	}

	ext := constants.NormalizeExt(filepath.Ext(path))
	out.FileExt = ext
	if ext == "" || !i.allowed(ext) {
		return entity.Document{}, out, fmt.Errorf("unsupported or missing extension %q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return entity.Document{}, out, err
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.Logger.Warn("close file error", "path", path, "error", err)
		}
	}(f)

	limit := i.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return entity.Document{}, out, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > limit {
		return entity.Document{}, out, fmt.Errorf("file exceeds %d bytes", limit)
	}

	sum := sha256.Sum256(data)
	out.Bytes = int64(len(data))
	out.HashHex = hex.EncodeToString(sum[:])
	return entity.NewDocument(filepath.Base(path), data), out, nil
}

// IngestDirectory walks root, skips hidden entries if requested and loads
// every allowed file. Unreadable files are reported and skipped.
func (i *FSIngestor) IngestDirectory(
	ctx context.Context,
	root string,
	skipHidden bool,
) ([]entity.Document, []IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root_path is required")
	}

	var docs []entity.Document
	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !i.allowed(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		doc, r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			i.Logger.Warn("ingest.file.failed", "path", path, "error", err)
			return nil
		}
		docs = append(docs, doc)
		results = append(results, r)
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return docs, results, stats, fmt.Errorf("walk: %w", err)
	}

	i.Logger.Info("ingest.directory.ok",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"loaded", stats.Succeeded,
		"failed", stats.Failed,
	)
	return docs, results, stats, nil
}
