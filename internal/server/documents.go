package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/core/batch"
	"github.com/joseph-ayodele/docscan/internal/core/qa"
	"github.com/joseph-ayodele/docscan/internal/entity"
	"github.com/joseph-ayodele/docscan/internal/export"
	"github.com/joseph-ayodele/docscan/internal/ingest"
)

// Header metadata keys set by Ask and GetExport.
const (
	HeaderAnswerOutcome     = "x-answer-outcome"
	HeaderContextVersion    = "x-context-version"
	HeaderExportFilename    = "x-export-filename"
	HeaderExportContentType = "x-export-content-type"
)

// DocumentService implements DocumentServiceServer on top of the batch
// aggregator, the QA adapter and the export service.
type DocumentService struct {
	aggregator *batch.Aggregator
	answers    *qa.Adapter
	exports    *export.Service
	ingestor   ingest.Ingestor
	maxBytes   int
	logger     *slog.Logger
}

func NewDocumentService(
	agg *batch.Aggregator,
	answers *qa.Adapter,
	exports *export.Service,
	ing ingest.Ingestor,
	logger *slog.Logger,
) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{
		aggregator: agg,
		answers:    answers,
		exports:    exports,
		ingestor:   ing,
		maxBytes:   ingest.DefaultMaxBytes,
		logger:     logger,
	}
}

// IngestBatch accepts
//
//	{"document_type": "invoice",
//	 "documents": [{"filename": "a.png", "content": "<base64>"}],
//	 "paths": ["/srv/in/b.pdf"], "root_path": "/srv/in", "skip_hidden": true,
//	 "request_id": "<uuid>"}
//
// Inline documents come first, then paths, then the directory listing.
func (s *DocumentService) IngestBatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	start := time.Now()
	fields := req.GetFields()

	v := common.NewValidator()
	if rid := stringField(fields, "request_id"); rid != "" {
		v.Field("request_id", rid, common.UUID)
		ctx = common.WithRequestID(ctx, rid)
	}

	docs, err := s.decodeDocuments(fields["documents"], v)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	if err := v.Error(); err != nil {
		s.logger.Error("ingest batch request invalid", "error", err)
		return nil, common.ToStatus(err)
	}

	loaded, err := s.loadPaths(ctx, fields)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	docs = append(docs, loaded...)
	if len(docs) == 0 {
		s.logger.Error("ingest batch request has no documents")
		return nil, common.ToStatus(common.ErrNoDocuments)
	}

	raw := stringField(fields, "document_type")
	docType, known := constants.ParseDocumentType(raw)
	if !known {
		s.logger.Warn("unsupported document type, fields will be empty", "document_type", raw)
	}

	s.logger.Info("starting batch ingest",
		"request_id", common.RequestIDFromContext(ctx),
		"document_type", docType,
		"documents", len(docs),
	)
	res, err := s.aggregator.Process(ctx, docType, docs)
	if err != nil {
		return nil, common.ToStatus(err)
	}

	out, err := batchToStruct(res)
	if err != nil {
		s.logger.Error("encode batch response failed", "batch_id", res.ID, "error", err)
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	s.logger.Info("batch ingest completed",
		"batch_id", res.ID,
		"failed", len(res.Failures),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (s *DocumentService) decodeDocuments(val *structpb.Value, v *common.Validator) ([]entity.Document, error) {
	if val == nil {
		return nil, nil
	}
	list := val.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: documents must be a list", common.ErrInvalidInput)
	}
	docs := make([]entity.Document, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		obj := item.GetStructValue()
		if obj == nil {
			return nil, fmt.Errorf("%w: documents[%d] must be an object", common.ErrInvalidInput, i)
		}
		name := stringField(obj.GetFields(), "filename")
		content, err := base64.StdEncoding.DecodeString(stringField(obj.GetFields(), "content"))
		if err != nil {
			return nil, fmt.Errorf("%w: documents[%d].content is not base64: %v", common.ErrInvalidInput, i, err)
		}
		v.Field(fmt.Sprintf("documents[%d].filename", i), name, common.Required, common.MaxLength(255))
		v.Field(fmt.Sprintf("documents[%d].content", i), content, common.Required, common.MaxBytes(s.maxBytes))
		docs = append(docs, entity.NewDocument(name, content))
	}
	return docs, nil
}

func (s *DocumentService) loadPaths(ctx context.Context, fields map[string]*structpb.Value) ([]entity.Document, error) {
	var paths []string
	if val := fields["paths"]; val != nil {
		for _, p := range val.GetListValue().GetValues() {
			if str := strings.TrimSpace(p.GetStringValue()); str != "" {
				paths = append(paths, str)
			}
		}
	}
	root := stringField(fields, "root_path")
	if len(paths) == 0 && root == "" {
		return nil, nil
	}
	if s.ingestor == nil {
		return nil, fmt.Errorf("%w: server-side paths are not enabled", common.ErrInvalidInput)
	}

	var docs []entity.Document
	for _, p := range paths {
		doc, _, err := s.ingestor.IngestPath(ctx, p)
		if err != nil {
			s.logger.Error("ingest path failed", "path", p, "error", err)
			return nil, fmt.Errorf("%w: %s: %v", common.ErrInvalidInput, p, err)
		}
		docs = append(docs, doc)
	}
	if root != "" {
		skipHidden := true
		if val, ok := fields["skip_hidden"]; ok {
			skipHidden = val.GetBoolValue()
		}
		found, _, stats, err := s.ingestor.IngestDirectory(ctx, root, skipHidden)
		if err != nil {
			s.logger.Error("ingest directory failed", "root", root, "error", err)
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
		}
		s.logger.Info("directory ingest completed", "root", root, "matched", stats.Matched, "failed", stats.Failed)
		docs = append(docs, found...)
	}
	return docs, nil
}

// Ask answers a question against the last batch. Outcome and context
// version are returned as header metadata.
func (s *DocumentService) Ask(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	ans := s.answers.Ask(ctx, req.GetValue())
	md := metadata.Pairs(
		HeaderAnswerOutcome, string(ans.Outcome),
		HeaderContextVersion, fmt.Sprint(ans.ContextVersion),
	)
	if err := grpc.SetHeader(ctx, md); err != nil {
		s.logger.Debug("set header failed", "error", err)
	}
	return wrapperspb.String(ans.Text), nil
}

// GetExport returns the latest artifact of the requested kind.
func (s *DocumentService) GetExport(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	data, art, err := s.exports.ReadAll(req.GetValue())
	if err != nil {
		s.logger.Warn("export fetch failed", "kind", req.GetValue(), "error", err)
		return nil, common.ToStatus(err)
	}
	md := metadata.Pairs(
		HeaderExportFilename, art.Filename,
		HeaderExportContentType, art.ContentType,
	)
	if err := grpc.SetHeader(ctx, md); err != nil {
		s.logger.Debug("set header failed", "error", err)
	}
	return wrapperspb.Bytes(data), nil
}

func stringField(fields map[string]*structpb.Value, key string) string {
	if v, ok := fields[key]; ok && v != nil {
		return strings.TrimSpace(v.GetStringValue())
	}
	return ""
}

// batchToStruct keeps field order by encoding each record as a list of
// label/value pairs.
func batchToStruct(res *entity.BatchResult) (*structpb.Struct, error) {
	documents := make([]interface{}, len(res.Records))
	for i, rec := range res.Records {
		pairs := make([]interface{}, 0, rec.Len())
		for _, f := range rec.Fields() {
			pairs = append(pairs, map[string]interface{}{"label": f.Label, "value": f.Value})
		}
		documents[i] = map[string]interface{}{
			"index":    i,
			"filename": res.Filenames[i],
			"fields":   pairs,
			"summary":  res.Summaries[i],
			"status":   string(constants.DocumentStatusOK),
		}
	}
	failures := make([]interface{}, len(res.Failures))
	for i, f := range res.Failures {
		failures[i] = map[string]interface{}{
			"index":    f.Index,
			"filename": f.Filename,
			"status":   string(f.Status),
			"message":  f.Message,
		}
	}
	return structpb.NewStruct(map[string]interface{}{
		"batch_id":       res.ID,
		"document_type":  string(res.DocumentType),
		"documents":      documents,
		"merged_summary": res.MergedSummary,
		"failures":       failures,
		"context_kept":   res.ContextKept,
		"export_error":   res.ExportErr,
	})
}
