package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veil-sh/veil/internal/pii"
)

// DefaultMaxEntries bounds the cache when no explicit limit is given.
const DefaultMaxEntries = 200

// CachedRedaction records a previously produced masking without retaining
// the raw value. ValueHash is a one-way composite signature, never mapped
// back to the original value.
type CachedRedaction struct {
	ID          string    `json:"id"`
	ValueHash   string    `json:"valueHash"`
	MaskedValue string    `json:"maskedValue"`
	Type        pii.Type  `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
	UsageCount  int       `json:"usageCount"`
	ValueLength int       `json:"valueLength"`
}

// FormatError reports a corrupt import payload. The import is rejected as a
// whole and the existing cache is left untouched.
type FormatError struct {
	Index int
	Field string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cache record %d: missing or invalid %s", e.Index, e.Field)
}

// Match is one recognized repeat of a cached redaction in a text.
type Match struct {
	Span        pii.Span `json:"span"`
	MaskedValue string   `json:"maskedValue"`
	Type        pii.Type `json:"type"`
	EntryID     string   `json:"entryId"`
}

// Cache is a bounded, hash-indexed store of maskings produced during one
// client session. It is best-effort: the hash is not collision-free, and
// concurrent writers follow last-writer-wins.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*CachedRedaction // keyed by ValueHash
	maxEntries int
}

// NewCache creates a cache bounded to maxEntries; 0 applies the default.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]*CachedRedaction),
		maxEntries: maxEntries,
	}
}

// HashValue computes the one-way composite signature of a value: a folding
// hash over its character codes concatenated with the first character, last
// character, and length. Equal hashes are treated as equal values; no raw
// value is retained to disambiguate collisions.
func HashValue(value string) string {
	if value == "" {
		return ""
	}
	var h uint32
	for _, c := range value {
		h = h*31 + uint32(c)
	}
	runes := []rune(value)
	return fmt.Sprintf("%08x.%c.%c.%d", h, runes[0], runes[len(runes)-1], len(value))
}

// Add records a masking. An existing entry with an equal hash has its
// UsageCount incremented and MaskedValue overwritten; otherwise a new entry
// is inserted. The bound is enforced after insertion.
func (c *Cache) Add(value, maskedValue string, t pii.Type) *CachedRedaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(value, maskedValue, t)
}

// Redaction is one input to AddMany.
type Redaction struct {
	Value       string   `json:"value"`
	MaskedValue string   `json:"maskedValue"`
	Type        pii.Type `json:"type"`
}

// AddMany records a batch of maskings.
func (c *Cache) AddMany(redactions []Redaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range redactions {
		c.addLocked(r.Value, r.MaskedValue, r.Type)
	}
}

func (c *Cache) addLocked(value, maskedValue string, t pii.Type) *CachedRedaction {
	hash := HashValue(value)
	if hash == "" {
		return nil
	}
	if entry, ok := c.entries[hash]; ok {
		entry.UsageCount++
		entry.MaskedValue = maskedValue
		return entry
	}
	entry := &CachedRedaction{
		ID:          uuid.NewString(),
		ValueHash:   hash,
		MaskedValue: maskedValue,
		Type:        t,
		CreatedAt:   time.Now(),
		UsageCount:  1,
		ValueLength: len(value),
	}
	c.entries[hash] = entry
	c.evictLocked()
	return entry
}

// evictLocked sorts by (UsageCount desc, CreatedAt desc) and keeps only the
// top maxEntries; least-used/oldest entries are dropped silently.
func (c *Cache) evictLocked() {
	if len(c.entries) <= c.maxEntries {
		return
	}
	ranked := make([]*CachedRedaction, 0, len(c.entries))
	for _, e := range c.entries {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].UsageCount != ranked[j].UsageCount {
			return ranked[i].UsageCount > ranked[j].UsageCount
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	for _, e := range ranked[c.maxEntries:] {
		delete(c.entries, e.ValueHash)
	}
}

// FindMatches scans text for substrings whose composite hash equals a
// cached entry. For every entry, each window of the entry's stored value
// length is hashed the same way; equal hashes are treated as a match.
// Overlapping matches are resolved left-to-right, first match wins.
// Cost is O(text length x cache size x average value length), acceptable
// only because the cache is small and bounded.
func (c *Cache) FindMatches(text string) []Match {
	c.mu.Lock()
	defer c.mu.Unlock()

	var candidates []Match
	for _, entry := range c.entries {
		l := entry.ValueLength
		if l <= 0 || l > len(text) {
			continue
		}
		for i := 0; i+l <= len(text); i++ {
			if HashValue(text[i:i+l]) == entry.ValueHash {
				candidates = append(candidates, Match{
					Span:        pii.Span{Start: i, End: i + l},
					MaskedValue: entry.MaskedValue,
					Type:        entry.Type,
					EntryID:     entry.ID,
				})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Span.Start < candidates[j].Span.Start
	})

	var out []Match
	lastEnd := 0
	matched := make(map[string]int)
	for _, m := range candidates {
		if m.Span.Start < lastEnd {
			continue
		}
		out = append(out, m)
		lastEnd = m.Span.End
		matched[m.EntryID]++
	}

	// Repeat sightings bump usage.
	for _, entry := range c.entries {
		if n := matched[entry.ID]; n > 0 {
			entry.UsageCount += n
		}
	}
	return out
}

// Remove deletes the entry with the given ID. Returns false when absent.
func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for hash, entry := range c.entries {
		if entry.ID == id {
			delete(c.entries, hash)
			return true
		}
	}
	return false
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CachedRedaction)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Export returns a copy of every entry, sorted by (UsageCount desc,
// CreatedAt desc). The payload is hash-only and safe to persist.
func (c *Cache) Export() []CachedRedaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CachedRedaction, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Import loads records exported by Export. Every record is validated first;
// any invalid record rejects the whole import and leaves the existing cache
// untouched. With merge false the cache is replaced; with merge true
// imported records are folded into existing entries by hash.
func (c *Cache) Import(records []CachedRedaction, merge bool) error {
	for i, r := range records {
		switch {
		case r.ID == "":
			return &FormatError{Index: i, Field: "id"}
		case r.ValueHash == "":
			return &FormatError{Index: i, Field: "valueHash"}
		case r.MaskedValue == "":
			return &FormatError{Index: i, Field: "maskedValue"}
		case !r.Type.Valid():
			return &FormatError{Index: i, Field: "type"}
		case r.ValueLength <= 0:
			return &FormatError{Index: i, Field: "valueLength"}
		case r.CreatedAt.IsZero():
			return &FormatError{Index: i, Field: "createdAt"}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !merge {
		c.entries = make(map[string]*CachedRedaction, len(records))
	}
	for _, r := range records {
		r := r
		if existing, ok := c.entries[r.ValueHash]; ok {
			existing.UsageCount += r.UsageCount
			continue
		}
		if r.UsageCount <= 0 {
			r.UsageCount = 1
		}
		c.entries[r.ValueHash] = &r
	}
	c.evictLocked()
	return nil
}
