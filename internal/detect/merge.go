package detect

import (
	"sort"

	"github.com/veil-sh/veil/internal/pii"
)

// Merge resolves overlapping candidate spans into a disjoint set. Candidates
// are sorted by span start; each is tested against the most recently
// accepted entity and on overlap the higher-confidence entity is retained,
// replacing the accepted one in place when the candidate wins. Merging an
// already-merged set is a no-op.
//
// The comparator uses confidence alone: a less specific but higher-
// confidence detection suppresses a more specific lower-confidence one.
// Documented trade-off, not resolved by type preference.
func Merge(entities []pii.Entity) []pii.Entity {
	if len(entities) == 0 {
		return nil
	}

	sorted := make([]pii.Entity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Span.Start < sorted[j].Span.Start
	})

	accepted := make([]pii.Entity, 0, len(sorted))
	accepted = append(accepted, sorted[0])
	for _, cand := range sorted[1:] {
		last := &accepted[len(accepted)-1]
		if cand.Span.Overlaps(last.Span) {
			if cand.Confidence > last.Confidence {
				*last = cand
			}
			continue
		}
		accepted = append(accepted, cand)
	}
	return accepted
}
