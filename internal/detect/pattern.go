package detect

import (
	"github.com/veil-sh/veil/internal/pii"
)

// PatternMatcher is the deterministic, regular-expression detection pass.
// It is pure and infallible: no I/O, no failure modes beyond malformed input.
type PatternMatcher struct {
	rules []Rule
}

// NewPatternMatcher creates a matcher with the built-in rules plus any
// extra (custom) rules.
func NewPatternMatcher(extra ...Rule) *PatternMatcher {
	rules := DefaultRules()
	rules = append(rules, extra...)
	return &PatternMatcher{rules: rules}
}

// Detect scans text and returns validated candidates for the requested
// types. A nil or empty type filter requests all types. Overlaps produced
// within this pass are pre-merged, keeping the higher-confidence hit.
func (m *PatternMatcher) Detect(text string, types []pii.Type) []pii.Entity {
	wanted := typeSet(types)

	var candidates []pii.Entity
	for _, rule := range m.rules {
		if wanted != nil && !wanted[rule.Type] {
			continue
		}
		candidates = append(candidates, m.applyRule(text, rule)...)
	}
	return Merge(candidates)
}

// ExtractValues applies the extraction expressions for one type to an
// arbitrary passage and returns the validated literal values found. Used by
// the semantic pass to pull concrete values out of retrieved passages.
func (m *PatternMatcher) ExtractValues(passage string, t pii.Type) []string {
	var values []string
	seen := make(map[string]bool)
	for _, rule := range m.rules {
		if rule.Type != t {
			continue
		}
		for _, ent := range m.applyRule(passage, rule) {
			if !seen[ent.Value] {
				seen[ent.Value] = true
				values = append(values, ent.Value)
			}
		}
	}
	return values
}

func (m *PatternMatcher) applyRule(text string, rule Rule) []pii.Entity {
	var out []pii.Entity
	for _, pat := range rule.Patterns {
		matches := pat.RE.FindAllStringSubmatchIndex(text, -1)
		for _, idx := range matches {
			g := pat.Group * 2
			if g+1 >= len(idx) || idx[g] < 0 {
				continue
			}
			start, end := idx[g], idx[g+1]
			value := text[start:end]
			if rule.Validate != nil && !rule.Validate(value) {
				continue
			}
			masked := rule.MaskWith
			if masked == "" {
				masked = pii.Mask(rule.Type, value)
			}
			context := "matched " + rule.Name + " pattern"
			out = append(out, pii.Entity{
				ID:           pii.NewID(),
				Type:         rule.Type,
				Value:        value,
				MaskedValue:  masked,
				Span:         pii.Span{Start: start, End: end},
				Confidence:   rule.Confidence,
				Method:       pii.MethodPattern,
				Context:      context,
				ShouldRedact: true,
			})
		}
	}
	return out
}

func typeSet(types []pii.Type) map[pii.Type]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[pii.Type]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}
