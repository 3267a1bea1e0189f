package constants

// DocumentStatus is the outcome of one document inside a batch.
type DocumentStatus string

const (
	DocumentStatusOK              DocumentStatus = "OK"
	DocumentStatusRasterizeFailed DocumentStatus = "RASTERIZE_FAILED"
	DocumentStatusRecognizeFailed DocumentStatus = "RECOGNIZE_FAILED"
	DocumentStatusTimedOut        DocumentStatus = "TIMED_OUT"
	// DocumentStatusCancelled means the caller went away before the document finished.
	DocumentStatusCancelled DocumentStatus = "CANCELLED"
	// DocumentStatusRejected means the worker queue was shutting down.
	DocumentStatusRejected DocumentStatus = "REJECTED"
)
