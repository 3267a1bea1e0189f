package entity

import (
	"time"

	"github.com/joseph-ayodele/docscan/constants"
)

// DocumentFailure reports why a single document of a batch produced no text.
type DocumentFailure struct {
	Index    int                      `json:"index"`
	Filename string                   `json:"filename"`
	Status   constants.DocumentStatus `json:"status"`
	Message  string                   `json:"message"`
}

// BatchResult is everything produced for one submission. Records, Summaries
// and Texts are indexed by submission order.
type BatchResult struct {
	ID            string                 `json:"id"`
	DocumentType  constants.DocumentType `json:"document_type"`
	Filenames     []string               `json:"filenames"`
	Records       []FieldRecord          `json:"records"`
	Summaries     []string               `json:"summaries"`
	Texts         []string               `json:"-"`
	Failures      []DocumentFailure      `json:"failures,omitempty"`
	MergedText    string                 `json:"-"`
	MergedSummary string                 `json:"merged_summary"`
	ContextKept   bool                   `json:"context_kept,omitempty"`
	ExportErr     string                 `json:"export_error,omitempty"`
	StartedAt     time.Time              `json:"started_at"`
	FinishedAt    time.Time              `json:"finished_at"`
}

// Succeeded counts documents that produced recognized text.
func (b *BatchResult) Succeeded() int {
	return len(b.Records) - len(b.Failures)
}
