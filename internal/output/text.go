package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/veil-sh/veil/internal/detect"
	"github.com/veil-sh/veil/internal/pii"
)

// TextWriter outputs a human-readable redaction plan.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *detect.Report) error {
	ew := &errWriter{w: w}

	ew.printf("Veil Redaction Plan (run %s)\n", report.RunID)
	if report.DocumentID != "" {
		ew.printf("Document: %s\n", report.DocumentID)
	}
	ew.println(strings.Repeat("─", 60))
	ew.printf("Entities: %d total, %d marked for redaction\n",
		report.Summary.Total, report.Summary.Redacted)

	if report.Summary.Total == 0 {
		ew.println("\nNo sensitive values found.")
		return ew.err
	}

	// Per-type counts in stable order
	for _, typ := range pii.AllTypes() {
		if n := report.Summary.ByType[typ]; n > 0 {
			ew.printf("  %-16s %d\n", typ, n)
		}
	}
	ew.println(strings.Repeat("─", 60))

	grouped := groupByType(report.Entities)
	for _, typ := range pii.AllTypes() {
		entities := grouped[typ]
		if len(entities) == 0 {
			continue
		}

		ew.printf("\n%s\n", typ)
		ew.println(strings.Repeat("─", 40))

		sort.Slice(entities, func(i, j int) bool {
			return entities[i].Span.Start < entities[j].Span.Start
		})

		for _, ent := range entities {
			marker := ""
			if !ent.ShouldRedact {
				marker = "  [skipped]"
			}
			ew.printf("\n  [%d:%d] %s -> %s  (%.0f%%, %s)%s\n",
				ent.Span.Start, ent.Span.End, ent.Value, ent.MaskedValue,
				ent.Confidence*100, ent.Method, marker)
			if ent.Context != "" {
				ew.printf("    %s\n", ent.Context)
			}
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Completed in %dms (model: %dms)\n",
		report.Timing.TotalMs, report.Timing.LLMMs)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func groupByType(entities []pii.Entity) map[pii.Type][]pii.Entity {
	m := make(map[pii.Type][]pii.Entity)
	for _, ent := range entities {
		m[ent.Type] = append(m[ent.Type], ent)
	}
	return m
}
