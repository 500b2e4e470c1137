package detect

import (
	"strings"

	"github.com/veil-sh/veil/internal/pii"
)

// indexAll returns the start offset of every occurrence of value in text.
// Occurrences may not overlap each other. Offsets always index the original
// text: the case-insensitive scan folds each window in place rather than
// searching a lowered copy, whose byte offsets can differ from the
// original's. Occurrences whose byte length differs from value's under case
// folding are not matched.
func indexAll(text, value string, caseInsensitive bool) []int {
	if value == "" {
		return nil
	}

	var offsets []int
	if !caseInsensitive {
		from := 0
		for {
			i := strings.Index(text[from:], value)
			if i < 0 {
				return offsets
			}
			offsets = append(offsets, from+i)
			from += i + len(value)
		}
	}

	for i := 0; i+len(value) <= len(text); i++ {
		if strings.EqualFold(text[i:i+len(value)], value) {
			offsets = append(offsets, i)
			i += len(value) - 1
		}
	}
	return offsets
}

// anchorSpan locates the first occurrence of value whose span does not
// overlap any known span. Returns false when the value is not present
// verbatim or every occurrence is already covered.
func anchorSpan(text, value string, known []pii.Entity) (pii.Span, bool) {
	for _, start := range indexAll(text, value, false) {
		span := pii.Span{Start: start, End: start + len(value)}
		if !overlapsAny(span, known) {
			return span, true
		}
	}
	return pii.Span{}, false
}

func overlapsAny(span pii.Span, entities []pii.Entity) bool {
	for _, ent := range entities {
		if span.Overlaps(ent.Span) {
			return true
		}
	}
	return false
}
