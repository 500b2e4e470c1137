package detect

import (
	"context"

	"github.com/veil-sh/veil/internal/pii"
	"github.com/veil-sh/veil/internal/semantic"
)

// semanticQueries are the fixed natural-language probes issued per type.
var semanticQueries = map[pii.Type][]string{
	pii.TypeSSN:           {"social security number or taxpayer identification"},
	pii.TypeAccountNumber: {"bank account number or financial account identifier"},
	pii.TypeCreditCard:    {"credit card or payment card number"},
	pii.TypePhone:         {"phone number or contact number"},
	pii.TypeEmail:         {"email address"},
	pii.TypeDOB:           {"date of birth or birthday"},
}

const semanticTopK = 5

// SemanticExtractor queries an external semantic index scoped to a document,
// re-applies the pattern expressions to returned passages, and re-anchors
// extracted literals into the original text.
type SemanticExtractor struct {
	index   semantic.Searcher
	matcher *PatternMatcher
}

// NewSemanticExtractor creates an extractor over the given index.
func NewSemanticExtractor(index semantic.Searcher, matcher *PatternMatcher) *SemanticExtractor {
	return &SemanticExtractor{index: index, matcher: matcher}
}

// Extract runs the fixed queries for each requested type against the index
// scoped to documentID. Individual query failures are skipped; the caller
// treats a fully failed pass as empty.
func (s *SemanticExtractor) Extract(ctx context.Context, text, documentID string, alreadyFound []pii.Entity, types []pii.Type) ([]pii.Entity, error) {
	wanted := typeSet(types)

	var out []pii.Entity
	known := make([]pii.Entity, len(alreadyFound))
	copy(known, alreadyFound)

	var lastErr error
	for _, t := range pii.AllTypes() {
		queries, ok := semanticQueries[t]
		if !ok || (wanted != nil && !wanted[t]) {
			continue
		}
		for _, q := range queries {
			passages, err := s.index.Search(ctx, semantic.Query{
				Text:       q,
				Method:     "semantic",
				TopK:       semanticTopK,
				DocumentID: documentID,
			})
			if err != nil {
				// Skip the failed query; remaining queries still run.
				lastErr = &ExternalServiceError{Service: "semantic index", Err: err}
				continue
			}
			for _, passage := range passages {
				for _, value := range s.matcher.ExtractValues(passage.Text, t) {
					// Anchor every occurrence in the original text,
					// not just the first.
					for _, start := range indexAll(text, value, false) {
						span := pii.Span{Start: start, End: start + len(value)}
						if overlapsAny(span, known) {
							continue
						}
						ent := pii.Entity{
							ID:           pii.NewID(),
							Type:         t,
							Value:        value,
							MaskedValue:  pii.Mask(t, value),
							Span:         span,
							Confidence:   ruleConfidence(s.matcher.rules, t),
							Method:       pii.MethodSemantic,
							Context:      "extracted from indexed passage",
							ShouldRedact: true,
						}
						out = append(out, ent)
						known = append(known, ent)
					}
				}
			}
		}
	}

	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}

func ruleConfidence(rules []Rule, t pii.Type) float64 {
	for _, r := range rules {
		if r.Type == t {
			return r.Confidence
		}
	}
	return 0.5
}
