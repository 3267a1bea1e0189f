package extract

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

// Registry maps each DocumentType to its ordered rule list.
// Unknown types resolve to an empty list.
type Registry struct {
	mu    sync.RWMutex
	rules map[constants.DocumentType][]Rule
}

// NewRegistry returns a registry seeded with the built-in tables.
func NewRegistry() *Registry {
	return &Registry{rules: DefaultRules()}
}

// Register replaces the rule set for docType.
func (r *Registry) Register(docType constants.DocumentType, rules ...Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[docType] = append([]Rule(nil), rules...)
}

// Append adds rules after the existing ones for docType.
func (r *Registry) Append(docType constants.DocumentType, rules ...Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[docType] = append(r.rules[docType], rules...)
}

// Rules returns a copy of the ordered rules for docType.
func (r *Registry) Rules(docType constants.DocumentType) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rule(nil), r.rules[docType]...)
}

// Labels lists the labels of docType in declaration order.
func (r *Registry) Labels(docType constants.DocumentType) []string {
	rules := r.Rules(docType)
	out := make([]string, len(rules))
	for i, rule := range rules {
		out[i] = rule.Label
	}
	return out
}

// Extractor applies the registry's rules to recognized text.
type Extractor struct {
	registry *Registry
	logger   *slog.Logger
}

func NewExtractor(registry *Registry, logger *slog.Logger) *Extractor {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{registry: registry, logger: logger}
}

// ExtractFields runs each rule once against text. The first match wins; its
// first capture group, trimmed, is stored under the rule's label. Rules
// that do not match leave their label absent.
func (e *Extractor) ExtractFields(text string, docType constants.DocumentType) entity.FieldRecord {
	rules := e.registry.Rules(docType)
	var rec entity.FieldRecord
	for _, rule := range rules {
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		rec.Set(rule.Label, strings.TrimSpace(m[1]))
	}
	e.logger.Debug("fields extracted",
		"document_type", docType,
		"rules", len(rules),
		"matched", rec.Len(),
	)
	return rec
}
