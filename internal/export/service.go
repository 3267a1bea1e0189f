package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

// Kind names an export artifact.
type Kind string

const (
	KindText        Kind = "text"
	KindSpreadsheet Kind = "spreadsheet"
	KindDelimited   Kind = "delimited"
)

// Kinds lists every artifact in a stable order.
func Kinds() []Kind { return []Kind{KindText, KindSpreadsheet, KindDelimited} }

// Artifact describes where a kind is written and how it is served.
type Artifact struct {
	Kind        Kind
	Filename    string
	ContentType string
}

var artifacts = map[Kind]Artifact{
	KindText:        {Kind: KindText, Filename: "output.txt", ContentType: "text/plain; charset=utf-8"},
	KindSpreadsheet: {Kind: KindSpreadsheet, Filename: "output.xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	KindDelimited:   {Kind: KindDelimited, Filename: "output.csv", ContentType: "text/csv; charset=utf-8"},
}

// ParseKind accepts the kind names and the download aliases txt, excel,
// xlsx and csv.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "txt":
		return KindText, nil
	case "spreadsheet", "excel", "xlsx":
		return KindSpreadsheet, nil
	case "delimited", "csv":
		return KindDelimited, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownExportKind, s)
}

// Service writes the export artifacts of the latest batch into one directory.
type Service struct {
	dir    string
	logger *slog.Logger

	// rename is os.Rename outside tests.
	rename func(oldpath, newpath string) error

	mu        sync.Mutex
	completed bool
	batchID   string
	updatedAt time.Time
}

func NewService(dir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{dir: dir, logger: logger, rename: os.Rename}
}

func (s *Service) Dir() string { return s.dir }

// Export regenerates all artifacts from records as one set. Every artifact is
// rendered and staged in a temp file first; the targets are only replaced once
// all of them are staged. A failed replacement rolls the earlier ones back, so
// readers never see artifacts from two different batches.
func (s *Service) Export(ctx context.Context, records []entity.FieldRecord) error {
	start := time.Now()
	batchID := common.BatchIDFromContext(ctx)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Error("export.mkdir_error", "dir", s.dir, "error", err)
		return fmt.Errorf("create export dir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := Kinds()
	staged := make([]stagedFile, len(kinds))
	defer func() {
		for _, sf := range staged {
			sf.discard()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			kstart := time.Now()
			data, err := s.render(kind, records)
			if err != nil {
				return fmt.Errorf("render %s: %w", kind, err)
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(s.dir, artifacts[kind].Filename)
			sf, err := stage(path, data)
			if err != nil {
				return fmt.Errorf("stage %s: %w", kind, err)
			}
			staged[i] = sf
			s.logger.Debug("export."+string(kind)+".staged",
				"batch_id", batchID,
				"path", path,
				"bytes", len(data),
				"elapsed_ms", time.Since(kstart).Milliseconds(),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("export.failed", "batch_id", batchID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return err
	}

	if err := s.commit(staged); err != nil {
		s.logger.Error("export.failed", "batch_id", batchID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return err
	}

	s.completed = true
	s.batchID = batchID
	s.updatedAt = time.Now()
	s.logger.Info("export.ok",
		"batch_id", batchID,
		"records", len(records),
		"dir", s.dir,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// commit renames every staged file over its target. The current targets are
// hard-linked aside first so a failed rename can be undone. If the undo
// fails too, the set is marked incomplete and Open reports ErrNotFound.
func (s *Service) commit(staged []stagedFile) error {
	for i := range staged {
		if err := staged[i].backup(); err != nil {
			return fmt.Errorf("backup %s: %w", filepath.Base(staged[i].target), err)
		}
	}

	for i := range staged {
		if err := s.rename(staged[i].tmp, staged[i].target); err != nil {
			cerr := fmt.Errorf("replace %s: %w", filepath.Base(staged[i].target), err)
			for j := i - 1; j >= 0; j-- {
				if rerr := staged[j].restore(s.rename); rerr != nil {
					s.completed = false
					s.logger.Error("export.rollback_failed", "path", staged[j].target, "error", rerr)
					return fmt.Errorf("%w (rollback failed: %v)", cerr, rerr)
				}
			}
			return cerr
		}
		staged[i].tmp = ""
	}
	return nil
}

// stagedFile is a fully written temp file waiting to replace target.
type stagedFile struct {
	target string
	tmp    string
	bak    string // hard link to the previous target; empty if there was none
}

func stage(target string, data []byte) (stagedFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return stagedFile{}, err
	}
	sf := stagedFile{target: target, tmp: tmp.Name()}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		sf.discard()
		return stagedFile{}, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		sf.discard()
		return stagedFile{}, err
	}
	if err := tmp.Close(); err != nil {
		sf.discard()
		return stagedFile{}, err
	}
	if err := os.Chmod(sf.tmp, 0o644); err != nil {
		sf.discard()
		return stagedFile{}, err
	}
	return sf, nil
}

func (sf *stagedFile) backup() error {
	info, err := os.Lstat(sf.target)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", sf.target)
	}
	bak := sf.tmp + ".bak"
	if err := os.Link(sf.target, bak); err != nil {
		return err
	}
	sf.bak = bak
	return nil
}

// restore puts the previous target back, or removes the new one if there
// was no previous target.
func (sf *stagedFile) restore(rename func(string, string) error) error {
	if sf.bak == "" {
		return os.Remove(sf.target)
	}
	if err := rename(sf.bak, sf.target); err != nil {
		return err
	}
	sf.bak = ""
	return nil
}

func (sf stagedFile) discard() {
	if sf.tmp != "" {
		_ = os.Remove(sf.tmp)
	}
	if sf.bak != "" {
		_ = os.Remove(sf.bak)
	}
}

func (s *Service) render(kind Kind, records []entity.FieldRecord) ([]byte, error) {
	switch kind {
	case KindText:
		return RenderText(records), nil
	case KindSpreadsheet:
		return RenderSpreadsheet(records)
	case KindDelimited:
		return RenderDelimited(records)
	}
	return nil, fmt.Errorf("%w: %q", common.ErrUnknownExportKind, kind)
}

// Open returns the latest artifact of kind. Before any export has completed
// it fails with common.ErrNotFound.
func (s *Service) Open(kind string) (io.ReadCloser, Artifact, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, Artifact{}, err
	}
	art := artifacts[k]

	s.mu.Lock()
	completed := s.completed
	s.mu.Unlock()
	if !completed {
		return nil, art, fmt.Errorf("%w: no export has completed yet", common.ErrNotFound)
	}

	f, err := os.Open(filepath.Join(s.dir, art.Filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, art, fmt.Errorf("%w: %s", common.ErrNotFound, art.Filename)
		}
		return nil, art, fmt.Errorf("open %s: %w", art.Filename, err)
	}
	return f, art, nil
}

// ReadAll is Open followed by a full read.
func (s *Service) ReadAll(kind string) ([]byte, Artifact, error) {
	rc, art, err := s.Open(kind)
	if err != nil {
		return nil, art, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, art, fmt.Errorf("read %s: %w", art.Filename, err)
	}
	return data, art, nil
}
