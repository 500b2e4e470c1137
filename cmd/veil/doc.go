// Veil is a CLI for detecting personally identifiable information in text
// and planning its redaction.
//
// It combines deterministic pattern matching with LLM-backed contextual
// detection, expands every confirmed value to all of its occurrences, and
// emits a redaction plan with deterministic exit codes suitable for
// pipeline gating.
//
// Usage:
//
//	veil detect report.txt            # scan a file
//	cat report.txt | veil detect      # scan stdin
//	veil mask report.txt              # print the masked document
//	veil cache find session.json doc.txt  # reuse prior maskings
//	veil serve                        # run the HTTP server
package main
