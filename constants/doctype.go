package constants

import (
	"strings"
)

// DocumentType selects the field-extraction rule set applied to a batch.
type DocumentType string

const (
	Invoice  DocumentType = "invoice"
	Passport DocumentType = "passport"
	Medical  DocumentType = "medical"
	// Unknown has no rules; extraction yields empty records.
	Unknown DocumentType = "unknown"
)

// DefaultDocumentType is used when a batch omits the selector.
const DefaultDocumentType = Invoice

var allDocumentTypes = []DocumentType{
	Invoice,
	Passport,
	Medical,
}

func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(allDocumentTypes))
	copy(out, allDocumentTypes)
	return out
}

func DocumentTypeStrings() []string {
	result := make([]string, len(allDocumentTypes))
	for i, dt := range allDocumentTypes {
		result[i] = string(dt)
	}
	return result
}

func (d DocumentType) String() string { return string(d) }

// ParseDocumentType maps a selector to a known type. Empty input yields the
// default type; anything unrecognized yields Unknown and false.
func ParseDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return DefaultDocumentType, true
	}

	synonyms := map[string]DocumentType{
		"bill":           Invoice,
		"tax invoice":    Invoice,
		"prescription":   Medical,
		"medical report": Medical,
	}
	if dt, ok := synonyms[normalized]; ok {
		return dt, true
	}

	for _, dt := range allDocumentTypes {
		if normalized == string(dt) {
			return dt, true
		}
	}
	return Unknown, false
}
