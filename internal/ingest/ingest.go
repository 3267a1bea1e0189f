package ingest

import (
	"context"

	"github.com/joseph-ayodele/docscan/internal/entity"
)

// IngestionResult is the per-file outcome of loading a document.
type IngestionResult struct {
	SourcePath string
	FileExt    string
	Bytes      int64
	HashHex    string
	Err        string
}

// DirStats summarizes a directory load.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// Ingestor turns paths on disk into in-memory documents for one batch.
type Ingestor interface {
	// IngestPath loads a single file.
	IngestPath(ctx context.Context, path string) (entity.Document, IngestionResult, error)
	// IngestDirectory loads every matching file under root in lexical order.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]entity.Document, []IngestionResult, DirStats, error)
}
