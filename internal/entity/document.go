package entity

import (
	"path/filepath"

	"github.com/joseph-ayodele/docscan/constants"
)

// Document is one submitted file. It only lives for the duration of a batch.
type Document struct {
	Filename string `json:"filename"`
	Content  []byte `json:"-"`
	Ext      string `json:"ext"`
}

// NewDocument detects the extension from the filename.
func NewDocument(filename string, content []byte) Document {
	return Document{
		Filename: filename,
		Content:  content,
		Ext:      constants.NormalizeExt(filepath.Ext(filename)),
	}
}

// PageImage is a single rasterized page, encoded as PNG/JPEG/etc bytes.
type PageImage struct {
	Index int
	Data  []byte
}
