package detect

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/veil-sh/veil/internal/pii"
)

// Summary provides an overview of a detection run.
type Summary struct {
	Total    int              `json:"total"`
	Redacted int              `json:"redacted"`
	ByType   map[pii.Type]int `json:"byType"`
}

// Timing contains performance metrics.
type Timing struct {
	LLMMs   int64 `json:"llmMs"`
	TotalMs int64 `json:"totalMs"`
}

// Report is the top-level redaction plan emitted to consumers.
type Report struct {
	Tool       string       `json:"tool"`
	Version    string       `json:"version"`
	RunID      string       `json:"runId"`
	DocumentID string       `json:"documentId,omitempty"`
	Summary    Summary      `json:"summary"`
	Entities   []pii.Entity `json:"entities"`
	Timing     Timing       `json:"timing"`
}

// BuildReport assembles a report from a final entity set.
func BuildReport(entities []pii.Entity, documentID string, llmMs, totalMs int64) *Report {
	if entities == nil {
		entities = []pii.Entity{}
	}
	return &Report{
		Tool:       "veil",
		Version:    "1.0",
		RunID:      generateRunID(),
		DocumentID: documentID,
		Summary:    ComputeSummary(entities),
		Entities:   entities,
		Timing:     Timing{LLMMs: llmMs, TotalMs: totalMs},
	}
}

// ComputeSummary calculates the summary from an entity set.
func ComputeSummary(entities []pii.Entity) Summary {
	s := Summary{ByType: make(map[pii.Type]int)}
	for _, ent := range entities {
		s.Total++
		s.ByType[ent.Type]++
		if ent.ShouldRedact {
			s.Redacted++
		}
	}
	return s
}

func generateRunID() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	return fmt.Sprintf("%x", h[:16])
}
