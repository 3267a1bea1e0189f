package ocr

import "fmt"

// RasterizationError means the document bytes could not be turned into page images.
type RasterizationError struct {
	Filename string
	Err      error
}

func (e *RasterizationError) Error() string {
	return fmt.Sprintf("rasterize %q: %v", e.Filename, e.Err)
}

func (e *RasterizationError) Unwrap() error { return e.Err }

// RecognitionError means the OCR engine failed on one page of a document.
type RecognitionError struct {
	Filename string
	Page     int
	Err      error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognize %q page %d: %v", e.Filename, e.Page+1, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }
