// Package pii defines the shared PII domain types (type set, spans,
// detected entities) and the deterministic masking rules applied to
// sensitive values.
package pii
