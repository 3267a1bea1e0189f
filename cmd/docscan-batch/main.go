package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/app"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/entity"
	"github.com/joseph-ayodele/docscan/internal/ingest"
	"github.com/joseph-ayodele/docscan/internal/server"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "docscan-batch",
		Usage: "run document batches locally or against docscand",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before the environment is read"},
		},
		Before: func(c *cli.Context) error {
			return common.LoadDotEnv(c.String("env-file"))
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "process every document under a directory as one batch",
				ArgsUsage: "DIR",
				Flags: []cli.Flag{
					typeFlag(),
					skipHiddenFlag(),
					&cli.StringSliceFlag{Name: "ask", Usage: "question answered against the batch (repeatable)"},
				},
				Action: runBatch,
			},
			{
				Name:      "watch",
				Usage:     "process new documents as they appear",
				ArgsUsage: "DIR...",
				Flags: []cli.Flag{
					typeFlag(),
					skipHiddenFlag(),
					&cli.DurationFlag{Name: "debounce", Value: 2 * time.Second, Usage: "group files arriving within this window"},
					&cli.BoolFlag{Name: "initial-scan", Usage: "process files already present"},
				},
				Action: watch,
			},
			{
				Name:      "ocr",
				Usage:     "print the recognized text of one file",
				ArgsUsage: "FILE",
				Action:    ocrFile,
			},
			{
				Name:      "ask",
				Usage:     "ask docscand a question about its last batch",
				ArgsUsage: "QUESTION",
				Flags:     []cli.Flag{addrFlag(), maxMsgFlag()},
				Action:    askRemote,
			},
			{
				Name:      "export",
				Usage:     "download an export artifact from docscand",
				ArgsUsage: "KIND",
				Flags: []cli.Flag{
					addrFlag(),
					maxMsgFlag(),
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output path (defaults to the served filename)"},
				},
				Action: exportRemote,
			},
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
}

func typeFlag() cli.Flag {
	return &cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: string(constants.DefaultDocumentType), Usage: "document type: invoice, passport or medical"}
}

func skipHiddenFlag() cli.Flag {
	return &cli.BoolFlag{Name: "skip-hidden", Value: true, Usage: "ignore dot files and directories"}
}

func addrFlag() cli.Flag {
	return &cli.StringFlag{Name: "addr", Value: "localhost:8080", EnvVars: []string{"DOCSCAN_ADDR"}, Usage: "docscand address"}
}

func maxMsgFlag() cli.Flag {
	return &cli.IntFlag{Name: "max-msg-bytes", Value: server.DefaultMaxMsgBytes, EnvVars: []string{"GRPC_MAX_MSG_BYTES"}, Usage: "gRPC message size limit"}
}

func build() (*app.App, error) {
	cfg := common.LoadConfig()
	return app.New(cfg, app.NewLogger(cfg.Server.LogLevel))
}

func parseType(c *cli.Context) constants.DocumentType {
	dt, ok := constants.ParseDocumentType(c.String("type"))
	if !ok {
		slog.Warn("unsupported document type, fields will be empty", "document_type", c.String("type"))
	}
	return dt
}

func runBatch(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" {
		return errors.New("DIR is required")
	}
	a, err := build()
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	docs, _, stats, err := a.Ingestor.IngestDirectory(c.Context, dir, c.Bool("skip-hidden"))
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents found under %s (scanned %d)", dir, stats.Scanned)
	}

	res, err := a.Aggregator.Process(c.Context, parseType(c), docs)
	if err != nil {
		return err
	}
	if err := printJSON(res); err != nil {
		return err
	}

	for _, q := range c.StringSlice("ask") {
		ans := a.Answers.Ask(c.Context, q)
		fmt.Printf("Q: %s\nA: %s\n", q, ans.Text)
	}
	fmt.Printf("exports written to %s\n", a.Exports.Dir())
	return nil
}

func watch(c *cli.Context) error {
	roots := c.Args().Slice()
	if len(roots) == 0 {
		return errors.New("at least one DIR is required")
	}
	a, err := build()
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	events, errs, err := ingest.StartWatcher(c.Context, ingest.WatchConfig{
		Roots:       roots,
		SkipHidden:  c.Bool("skip-hidden"),
		InitialScan: c.Bool("initial-scan"),
		Debounce:    c.Duration("debounce"),
		Logger:      a.Logger,
	})
	if err != nil {
		return err
	}
	docType := parseType(c)
	a.Logger.Info("watching", "roots", roots, "document_type", docType)

	for {
		select {
		case <-c.Context.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.Logger.Warn("watch error", "error", err)
		case paths, ok := <-events:
			if !ok {
				return nil
			}
			docs := loadPaths(c.Context, a.Ingestor, a.Logger, paths)
			if len(docs) == 0 {
				continue
			}
			res, err := a.Aggregator.Process(c.Context, docType, docs)
			if err != nil {
				a.Logger.Error("batch failed", "error", err)
				continue
			}
			if err := printJSON(res); err != nil {
				return err
			}
		}
	}
}

func loadPaths(ctx context.Context, ing ingest.Ingestor, logger *slog.Logger, paths []string) []entity.Document {
	docs := make([]entity.Document, 0, len(paths))
	for _, p := range paths {
		doc, _, err := ing.IngestPath(ctx, p)
		if err != nil {
			// files still being written show up here and come back on the next event
			logger.Warn("skipping file", "path", p, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func ocrFile(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("FILE is required")
	}
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.Server.LogLevel)
	text, err := app.NewTextExtractor(cfg.OCR, logger)
	if err != nil {
		return err
	}
	doc, _, err := ingest.NewFSIngestor(logger).IngestPath(c.Context, path)
	if err != nil {
		return err
	}
	res, err := text.ExtractText(c.Context, doc)
	if err != nil {
		return err
	}
	fmt.Println(res.Text)
	logger.Info("ocr.ok", "file", path, "pages", res.Pages, "engine", res.Engine, "elapsed_ms", res.Duration.Milliseconds())
	return nil
}

func dial(c *cli.Context) (*server.DocumentServiceClient, func(), error) {
	conn, err := grpc.NewClient(c.String("addr"),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		server.CallOptions(c.Int("max-msg-bytes")),
	)
	if err != nil {
		return nil, nil, err
	}
	return server.NewDocumentServiceClient(conn), func() { _ = conn.Close() }, nil
}

func askRemote(c *cli.Context) error {
	client, closeFn, err := dial(c)
	if err != nil {
		return err
	}
	defer closeFn()

	ans, err := client.Ask(c.Context, wrapperspb.String(c.Args().First()))
	if err != nil {
		return err
	}
	fmt.Println(ans.GetValue())
	return nil
}

func exportRemote(c *cli.Context) error {
	kind := c.Args().First()
	if kind == "" {
		return errors.New("KIND is required (txt, excel or csv)")
	}
	client, closeFn, err := dial(c)
	if err != nil {
		return err
	}
	defer closeFn()

	var header metadata.MD
	data, err := client.GetExport(c.Context, wrapperspb.String(kind), grpc.Header(&header))
	if err != nil {
		return err
	}
	out := c.String("out")
	if out == "" {
		if names := header.Get(server.HeaderExportFilename); len(names) > 0 {
			out = filepath.Base(names[0])
		} else {
			out = "output." + kind
		}
	}
	if err := os.WriteFile(out, data.GetValue(), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %d bytes to %s\n", len(data.GetValue()), out)
	return nil
}

func printJSON(res *entity.BatchResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
