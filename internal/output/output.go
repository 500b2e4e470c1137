package output

import (
	"fmt"
	"io"
	"os"

	"github.com/veil-sh/veil/internal/detect"
)

// Writer writes a redaction plan in a specific format.
type Writer interface {
	Write(w io.Writer, report *detect.Report) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (valid: text, json)", format)
	}
}

// WriteReport writes the report to the specified output (file path or stdout).
func WriteReport(report *detect.Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	} else {
		w = os.Stdout
	}

	return writer.Write(w, report)
}
