// Package output renders redaction plans in text and JSON formats.
package output
