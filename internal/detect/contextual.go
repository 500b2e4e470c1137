package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/veil-sh/veil/internal/pii"
	"github.com/veil-sh/veil/internal/providers"
)

// Fixed confidence priors for the generative passes.
const (
	contextualConfidence          = 0.75
	defaultUnstructuredConfidence = 0.85
)

const detectionMaxTokens = 4096

// modelFinding is the JSON structure expected from the generative service.
// Parsing is tolerant: optional fields default safely.
type modelFinding struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
	VariantOf  string  `json:"variantOf"`
}

// parseModelFindings strips markdown fences and parses the response as a
// JSON array of findings. Any malformed payload yields a ParseError; the
// caller degrades the pass to an empty result.
func parseModelFindings(content string) ([]modelFinding, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) >= 2 {
			start := 1
			end := len(lines)
			if strings.TrimSpace(lines[end-1]) == "```" {
				end = end - 1
			}
			content = strings.Join(lines[start:end], "\n")
		}
	}

	var raw []modelFinding
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("invalid JSON array: %w", err)}
	}
	return raw, nil
}

// ContextualDetector finds non-standard representations of structured PII
// types (spelled-out digits, obfuscated separators, label/value phrasing in
// either order) with one blocking call to the generative service.
type ContextualDetector struct {
	completer providers.Completer
}

// NewContextualDetector creates a detector backed by the given completer.
func NewContextualDetector(c providers.Completer) *ContextualDetector {
	return &ContextualDetector{completer: c}
}

// Detect issues the contextual pass. alreadyFound values are embedded in the
// prompt as do-not-re-report; returned values are re-anchored by exact
// substring search and dropped when absent from the text.
func (d *ContextualDetector) Detect(ctx context.Context, text string, alreadyFound []pii.Entity, types []pii.Type) ([]pii.Entity, error) {
	requested := structuredTypes(types)
	if len(requested) == 0 {
		return nil, nil
	}

	resp, err := d.completer.Complete(ctx, providers.CompletionRequest{
		SystemPrompt: contextualSystemPrompt,
		UserPrompt:   buildDetectionPrompt(text, alreadyFound, requested),
		MaxTokens:    detectionMaxTokens,
	})
	if err != nil {
		return nil, &ExternalServiceError{Service: d.completer.Name(), Err: err}
	}

	findings, err := parseModelFindings(resp.Content)
	if err != nil {
		return nil, err
	}

	var entities []pii.Entity
	known := alreadyFound
	for _, f := range findings {
		t := pii.Type(f.Type)
		if !t.Valid() || t == pii.TypeName || t == pii.TypeAddress {
			continue
		}
		span, ok := anchorSpan(text, f.Value, known)
		if !ok {
			continue
		}
		ent := pii.Entity{
			ID:           pii.NewID(),
			Type:         t,
			Value:        f.Value,
			MaskedValue:  pii.Mask(t, f.Value),
			Span:         span,
			Confidence:   contextualConfidence,
			Method:       pii.MethodContextual,
			Context:      f.Context,
			ShouldRedact: true,
		}
		entities = append(entities, ent)
		known = append(known, ent)
	}
	return entities, nil
}

// UnstructuredDetector finds person names and physical addresses, the types
// with no reliable pattern form, with one blocking call to the generative
// service.
type UnstructuredDetector struct {
	completer providers.Completer
}

// NewUnstructuredDetector creates a detector backed by the given completer.
func NewUnstructuredDetector(c providers.Completer) *UnstructuredDetector {
	return &UnstructuredDetector{completer: c}
}

// Detect issues the unstructured pass. Findings carry the model-reported
// confidence, defaulting when absent or out of range.
func (d *UnstructuredDetector) Detect(ctx context.Context, text string, alreadyFound []pii.Entity, types []pii.Type) ([]pii.Entity, error) {
	if !wantsUnstructured(types) {
		return nil, nil
	}

	resp, err := d.completer.Complete(ctx, providers.CompletionRequest{
		SystemPrompt: unstructuredSystemPrompt,
		UserPrompt:   buildDetectionPrompt(text, alreadyFound, []pii.Type{pii.TypeName, pii.TypeAddress}),
		MaxTokens:    detectionMaxTokens,
	})
	if err != nil {
		return nil, &ExternalServiceError{Service: d.completer.Name(), Err: err}
	}

	findings, err := parseModelFindings(resp.Content)
	if err != nil {
		return nil, err
	}

	var entities []pii.Entity
	known := alreadyFound
	for _, f := range findings {
		t := pii.Type(f.Type)
		if t != pii.TypeName && t != pii.TypeAddress {
			continue
		}
		span, ok := anchorSpan(text, f.Value, known)
		if !ok {
			continue
		}
		conf := f.Confidence
		if conf <= 0 || conf > 1 {
			conf = defaultUnstructuredConfidence
		}
		ent := pii.Entity{
			ID:           pii.NewID(),
			Type:         t,
			Value:        f.Value,
			MaskedValue:  pii.Mask(t, f.Value),
			Span:         span,
			Confidence:   conf,
			Method:       pii.MethodUnstructured,
			Context:      f.Context,
			ShouldRedact: true,
		}
		entities = append(entities, ent)
		known = append(known, ent)
	}
	return entities, nil
}

// structuredTypes filters the requested types down to those the contextual
// pass handles. Nil means all structured types.
func structuredTypes(types []pii.Type) []pii.Type {
	all := []pii.Type{
		pii.TypeSSN, pii.TypeAccountNumber, pii.TypeCreditCard,
		pii.TypePhone, pii.TypeEmail, pii.TypeDOB,
	}
	if len(types) == 0 {
		return all
	}
	wanted := typeSet(types)
	var out []pii.Type
	for _, t := range all {
		if wanted[t] {
			out = append(out, t)
		}
	}
	return out
}

func wantsUnstructured(types []pii.Type) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == pii.TypeName || t == pii.TypeAddress {
			return true
		}
	}
	return false
}
