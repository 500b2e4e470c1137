package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/veil-sh/veil/internal/detect"
)

// JSONWriter outputs the full redaction plan as JSON. Detected values may
// contain < or &, so HTML escaping is disabled to keep them byte-exact.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, report *detect.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}
