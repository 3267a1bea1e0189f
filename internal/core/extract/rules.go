package extract

import (
	"fmt"
	"regexp"

	"github.com/joseph-ayodele/docscan/constants"
)

// Rule pairs a pattern with the label its first capture group is stored under.
type Rule struct {
	Pattern *regexp.Regexp
	Label   string
}

// NewRule compiles pattern case-insensitively. The pattern must have at
// least one capture group.
func NewRule(pattern, label string) (Rule, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", label, err)
	}
	if re.NumSubexp() < 1 {
		return Rule{}, fmt.Errorf("rule %q: pattern has no capture group", label)
	}
	return Rule{Pattern: re, Label: label}, nil
}

func MustRule(pattern, label string) Rule {
	r, err := NewRule(pattern, label)
	if err != nil {
		panic(err)
	}
	return r
}

var invoiceRules = []Rule{
	MustRule(`Invoice\s*No[:\s]*([\w\-/]+)`, "Invoice No"),
	MustRule(`Date[:\s]*([0-9]{1,2}[-/][0-9]{1,2}[-/][0-9]{2,4})`, "Date"),
	MustRule(`Party\s*Name[:\s]*(.*)`, "Party Name"),
	MustRule(`Total[:\s]*Rs\.?\s*([0-9,.]+)`, "Total Amount"),
	MustRule(`HS\s*Code[:\s]*([\d.]+)`, "HS Code"),
}

var passportRules = []Rule{
	MustRule(`Name[:\s]*([A-Za-z ]+)`, "Name"),
	MustRule(`Date\s*of\s*Birth[:\s]*([0-9]{2}[-/][0-9]{2}[-/][0-9]{4})`, "DOB"),
	MustRule(`Nationality[:\s]*([A-Za-z]+)`, "Nationality"),
	MustRule(`Passport\s*No[:\s]*([A-Z0-9]+)`, "Passport No"),
	MustRule(`Place\s*of\s*Issue[:\s]*([A-Za-z ]+)`, "Place of Issue"),
	MustRule(`Date\s*of\s*Issue[:\s]*([0-9]{2}[-/][0-9]{2}[-/][0-9]{4})`, "Date of Issue"),
	MustRule(`Date\s*of\s*Expiry[:\s]*([0-9]{2}[-/][0-9]{2}[-/][0-9]{4})`, "Date of Expiry"),
}

var medicalRules = []Rule{
	MustRule(`Patient\s*Name[:\s]*([A-Za-z ]+)`, "Patient Name"),
	MustRule(`Doctor's\s*Name[:\s]*([A-Za-z. ]+)`, "Doctor Name"),
	MustRule(`Date[:\s]*([0-9]{2}[-/][0-9]{2}[-/][0-9]{4})`, "Date"),
	MustRule(`Diagnosis[:\s]*([A-Za-z0-9 ,\-]+)`, "Diagnosis"),
	MustRule(`Prescription[:\s]*([A-Za-z0-9 ,\-]+)`, "Prescription"),
	MustRule(`Next\s*Visit[:\s]*([0-9]{2}[-/][0-9]{2}[-/][0-9]{4})`, "Next Visit"),
	MustRule(`Hospital[:\s]*([A-Za-z ]+)`, "Hospital"),
}

// DefaultRules returns a copy of the built-in rule tables.
func DefaultRules() map[constants.DocumentType][]Rule {
	return map[constants.DocumentType][]Rule{
		constants.Invoice:  append([]Rule(nil), invoiceRules...),
		constants.Passport: append([]Rule(nil), passportRules...),
		constants.Medical:  append([]Rule(nil), medicalRules...),
	}
}
