package detect

import (
	"context"
	"sort"
	"strings"

	"github.com/veil-sh/veil/internal/pii"
	"github.com/veil-sh/veil/internal/providers"
)

const additionalOccurrenceContext = "additional occurrence"

// RetrospectiveExpander re-scans the document for values the earlier passes
// already confirmed: every case-insensitive repeat of a found value, and
// generative-model variations of found names and addresses. A discovered
// value is almost always repeated through a document; every occurrence must
// be redacted, not just the first.
type RetrospectiveExpander struct {
	completer providers.Completer
}

// NewRetrospectiveExpander creates an expander. completer may be nil, which
// disables variation discovery.
func NewRetrospectiveExpander(c providers.Completer) *RetrospectiveExpander {
	return &RetrospectiveExpander{completer: c}
}

// ExpandOccurrences scans the entire text for every case-insensitive exact
// occurrence of each distinct found value and emits the occurrences whose
// spans are not already known. Pure; O(distinct entities x text length).
func (e *RetrospectiveExpander) ExpandOccurrences(text string, found []pii.Entity) []pii.Entity {
	// One canonical entity per distinct value, keeping the
	// highest-confidence variant per case-insensitive key.
	canonical := make(map[string]pii.Entity)
	var keys []string
	for _, ent := range found {
		key := strings.ToLower(ent.Value)
		if key == "" {
			continue
		}
		if prev, ok := canonical[key]; !ok {
			canonical[key] = ent
			keys = append(keys, key)
		} else if ent.Confidence > prev.Confidence {
			canonical[key] = ent
		}
	}
	sort.Strings(keys)

	known := make([]pii.Entity, len(found))
	copy(known, found)

	var out []pii.Entity
	for _, key := range keys {
		ent := canonical[key]
		for _, start := range indexAll(text, ent.Value, true) {
			span := pii.Span{Start: start, End: start + len(ent.Value)}
			if overlapsAny(span, known) {
				continue
			}
			value := text[span.Start:span.End]
			occ := pii.Entity{
				ID:           pii.NewID(),
				Type:         ent.Type,
				Value:        value,
				MaskedValue:  pii.Mask(ent.Type, value),
				Span:         span,
				Confidence:   ent.Confidence,
				Method:       pii.MethodRetrospective,
				Context:      additionalOccurrenceContext,
				ShouldRedact: true,
				VariantOf:    ent.ID,
			}
			out = append(out, occ)
			known = append(known, occ)
		}
	}
	return out
}

// DiscoverVariations issues one generative call listing the found names and
// addresses and requesting aliases, honorifics, initials, abbreviations,
// and partial references. Each result back-references the canonical entity
// it varies from.
func (e *RetrospectiveExpander) DiscoverVariations(ctx context.Context, text string, found []pii.Entity) ([]pii.Entity, error) {
	if e.completer == nil {
		return nil, nil
	}

	var canonical []pii.Entity
	for _, ent := range found {
		if ent.Type == pii.TypeName || ent.Type == pii.TypeAddress {
			canonical = append(canonical, ent)
		}
	}
	if len(canonical) == 0 {
		return nil, nil
	}

	resp, err := e.completer.Complete(ctx, providers.CompletionRequest{
		SystemPrompt: variationSystemPrompt,
		UserPrompt:   buildVariationPrompt(text, canonical),
		MaxTokens:    detectionMaxTokens,
	})
	if err != nil {
		return nil, &ExternalServiceError{Service: e.completer.Name(), Err: err}
	}

	findings, err := parseModelFindings(resp.Content)
	if err != nil {
		return nil, err
	}

	byValue := make(map[string]pii.Entity, len(canonical))
	for _, ent := range canonical {
		byValue[strings.ToLower(ent.Value)] = ent
	}

	var out []pii.Entity
	known := found
	for _, f := range findings {
		t := pii.Type(f.Type)
		if t != pii.TypeName && t != pii.TypeAddress {
			continue
		}
		parent, ok := byValue[strings.ToLower(f.VariantOf)]
		if !ok {
			continue
		}
		span, okSpan := anchorSpan(text, f.Value, known)
		if !okSpan {
			continue
		}
		ent := pii.Entity{
			ID:           pii.NewID(),
			Type:         t,
			Value:        f.Value,
			MaskedValue:  pii.Mask(t, f.Value),
			Span:         span,
			Confidence:   parent.Confidence,
			Method:       pii.MethodRetrospective,
			Context:      f.Context,
			ShouldRedact: true,
			VariantOf:    parent.ID,
		}
		out = append(out, ent)
		known = append(known, ent)
	}
	return out, nil
}
