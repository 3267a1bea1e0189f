// Package app wires the pipeline components from configuration. Both the
// gRPC daemon and the batch CLI build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/core/async"
	"github.com/joseph-ayodele/docscan/internal/core/batch"
	"github.com/joseph-ayodele/docscan/internal/core/extract"
	"github.com/joseph-ayodele/docscan/internal/core/inference"
	"github.com/joseph-ayodele/docscan/internal/core/ocr"
	"github.com/joseph-ayodele/docscan/internal/core/qa"
	"github.com/joseph-ayodele/docscan/internal/core/summarize"
	"github.com/joseph-ayodele/docscan/internal/export"
	"github.com/joseph-ayodele/docscan/internal/ingest"
	"github.com/joseph-ayodele/docscan/internal/server"
)

type App struct {
	Config     *common.Config
	Logger     *slog.Logger
	Text       *extract.OCRAdapter
	Rules      *extract.Registry
	Backend    inference.Backend
	Queue      *async.ProcessorQueue
	Aggregator *batch.Aggregator
	Answers    *qa.Adapter
	Exports    *export.Service
	Ingestor   *ingest.FSIngestor
}

// NewLogger returns a JSON logger at level and installs it as the default.
func NewLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// OCRConfig maps the environment config onto the ocr package config.
func OCRConfig(c common.OCRConfig) ocr.Config {
	return ocr.Config{
		Pdftoppm:         c.Pdftoppm,
		Tesseract:        c.Tesseract,
		Engine:           c.Engine,
		Lang:             c.Lang,
		DPI:              c.DPI,
		MaxPages:         c.MaxPages,
		TessdataDir:      c.TessdataDir,
		HeicConverter:    c.HeicConverter,
		PSM:              c.PSM,
		OEM:              c.OEM,
		ArtifactCacheDir: c.ArtifactCacheDir,
		Normalize:        c.Normalize,
	}
}

// NewTextExtractor builds the rasterize + recognize stage.
func NewTextExtractor(c common.OCRConfig, logger *slog.Logger) (*extract.OCRAdapter, error) {
	cfg := OCRConfig(c)
	runner := ocr.ExecRunner{Logger: logger}
	engine, err := ocr.NewEngine(cfg, runner, logger)
	if err != nil {
		return nil, fmt.Errorf("ocr engine: %w", err)
	}
	rasterizer := ocr.NewRasterizer(cfg, runner, logger)
	recognizer := ocr.NewRecognizer(engine, cfg.Normalize, logger)
	return extract.NewOCRAdapter(rasterizer, recognizer, engine, logger), nil
}

// New builds every component. Call Close to drain the worker queue.
func New(cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	text, err := NewTextExtractor(cfg.OCR, logger)
	if err != nil {
		return nil, err
	}

	rules := extract.NewRegistry()
	if path := strings.TrimSpace(cfg.Batch.RulesFile); path != "" {
		if err := rules.LoadRulesFile(path); err != nil {
			return nil, fmt.Errorf("rules file: %w", err)
		}
		logger.Info("rules file loaded", "path", path)
	}

	backend, err := inference.NewBackend(cfg.Inference, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("inference backend ready", "backend", backend.Name(), "rps", cfg.Inference.RPS)

	queue := async.NewProcessorQueue(logger,
		async.WithWorkers(cfg.Batch.Workers),
		async.WithQueueSize(512),
		async.WithProcessTimeout(cfg.Batch.DocumentTimeout),
	)

	qactx := qa.NewContext()
	exports := export.NewService(cfg.Export.Dir, logger)
	agg := batch.NewAggregator(logger,
		text,
		extract.NewExtractor(rules, logger),
		summarize.NewAdapter(backend, cfg.Inference.Timeout, logger),
		exports,
		qactx,
		queue,
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Text:       text,
		Rules:      rules,
		Backend:    backend,
		Queue:      queue,
		Aggregator: agg,
		Answers:    qa.NewAdapter(qactx, backend, cfg.Inference.Timeout, logger),
		Exports:    exports,
		Ingestor:   ingest.NewFSIngestor(logger),
	}, nil
}

// DocumentService exposes the app over gRPC.
func (a *App) DocumentService() *server.DocumentService {
	return server.NewDocumentService(a.Aggregator, a.Answers, a.Exports, a.Ingestor, a.Logger)
}

func (a *App) Close(ctx context.Context) {
	a.Queue.Shutdown(ctx)
}
