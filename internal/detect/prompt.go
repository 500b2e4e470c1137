package detect

import (
	"fmt"
	"strings"

	"github.com/veil-sh/veil/internal/pii"
)

const contextualSystemPrompt = `You are an expert PII analyst. Your job is to find sensitive values written in NON-STANDARD forms that regular expressions miss, and report them in JSON format.

Look for:
1. Spelled-out digits ("five one two" for 512).
2. Obfuscated separators ("123.45.6789", "123 45 6789", "1-2-3...").
3. Label/value phrasing in either order: "my social is 123-45-6789" AND "123-45-6789 is my social".
4. Values split across clauses or lines.

Rules:
1. Report the value EXACTLY as it appears in the text, character for character.
2. Only report the requested PII types.
3. Never report a value listed as already found.
4. If nothing qualifies, respond with an empty array: []

You MUST respond with ONLY a JSON array. No markdown, no explanation, no preamble.

Each finding must have this exact structure:
{
  "type": "SSN|ACCOUNT_NUMBER|CREDIT_CARD|PHONE|EMAIL|DOB",
  "value": "the exact text as it appears",
  "context": "why you believe this is PII"
}`

const unstructuredSystemPrompt = `You are an expert PII analyst. Your job is to find person NAMES and physical ADDRESSES in free text and report them in JSON format.

Rules:
1. Report each value EXACTLY as it appears in the text, character for character.
2. Report only NAME and ADDRESS findings.
3. Never report a value listed as already found.
4. Rate your confidence from 0.0 to 1.0.
5. If nothing qualifies, respond with an empty array: []

You MUST respond with ONLY a JSON array. No markdown, no explanation, no preamble.

Each finding must have this exact structure:
{
  "type": "NAME|ADDRESS",
  "value": "the exact text as it appears",
  "confidence": 0.0-1.0,
  "context": "why you believe this is PII"
}`

const variationSystemPrompt = `You are an expert PII analyst. Given names and addresses already found in a document, your job is to locate VARIATIONS of them elsewhere in the same document: aliases, honorifics (Mr./Ms./Dr.), initials, abbreviations, and partial references ("Smith" for "John Smith", "the Main St. property" for "123 Main Street").

Rules:
1. Report each variation EXACTLY as it appears in the text, character for character.
2. Set variantOf to the canonical value the variation refers to.
3. Do not re-report the canonical values themselves.
4. If nothing qualifies, respond with an empty array: []

You MUST respond with ONLY a JSON array. No markdown, no explanation, no preamble.

Each finding must have this exact structure:
{
  "type": "NAME|ADDRESS",
  "value": "the exact variation as it appears",
  "variantOf": "the canonical value it varies from",
  "context": "how it relates to the canonical value"
}`

// buildDetectionPrompt embeds the requested types, the already-found literal
// values (marked do-not-re-report), and the full document text.
func buildDetectionPrompt(text string, alreadyFound []pii.Entity, types []pii.Type) string {
	var b strings.Builder

	b.WriteString("Find PII in the document below.\n\n")

	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		fmt.Fprintf(&b, "Requested types: %s\n", strings.Join(names, ", "))
	}

	if len(alreadyFound) > 0 {
		b.WriteString("\nAlready found, do NOT re-report these values:\n")
		for _, ent := range alreadyFound {
			fmt.Fprintf(&b, "- [%s] %s\n", ent.Type, ent.Value)
		}
	}

	b.WriteString("\n--- BEGIN DOCUMENT ---\n")
	b.WriteString(text)
	b.WriteString("\n--- END DOCUMENT ---\n")

	return b.String()
}

// buildVariationPrompt lists the canonical names/addresses and the document
// to search for variations.
func buildVariationPrompt(text string, canonical []pii.Entity) string {
	var b strings.Builder

	b.WriteString("Find variations of these known entities in the document below.\n\nKnown entities:\n")
	for _, ent := range canonical {
		fmt.Fprintf(&b, "- [%s] %s\n", ent.Type, ent.Value)
	}

	b.WriteString("\n--- BEGIN DOCUMENT ---\n")
	b.WriteString(text)
	b.WriteString("\n--- END DOCUMENT ---\n")

	return b.String()
}
