package detect

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/veil-sh/veil/internal/pii"
)

func TestBuildReport(t *testing.T) {
	entities := []pii.Entity{
		{Type: pii.TypeSSN, ShouldRedact: true},
		{Type: pii.TypeSSN, ShouldRedact: true},
		{Type: pii.TypeEmail, ShouldRedact: false},
	}

	r := BuildReport(entities, "doc-9", 120, 340)

	if r.Tool != "veil" || r.Version != "1.0" {
		t.Errorf("Tool/Version = %s/%s", r.Tool, r.Version)
	}
	if r.RunID == "" {
		t.Error("RunID is empty")
	}
	if r.DocumentID != "doc-9" {
		t.Errorf("DocumentID = %q", r.DocumentID)
	}
	if r.Summary.Total != 3 || r.Summary.Redacted != 2 {
		t.Errorf("Summary = %+v", r.Summary)
	}
	if r.Summary.ByType[pii.TypeSSN] != 2 || r.Summary.ByType[pii.TypeEmail] != 1 {
		t.Errorf("ByType = %v", r.Summary.ByType)
	}
	if r.Timing.LLMMs != 120 || r.Timing.TotalMs != 340 {
		t.Errorf("Timing = %+v", r.Timing)
	}
}

func TestBuildReportEmptyEntitiesMarshalsAsArray(t *testing.T) {
	r := BuildReport(nil, "", 0, 0)

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"entities":[]`) {
		t.Errorf("entities did not marshal as an empty array: %s", data)
	}
}

func TestGenerateRunIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id := generateRunID()
		if len(id) != 32 {
			t.Fatalf("len(RunID) = %d, want 32", len(id))
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Error("run ids do not vary")
	}
}
