// Package api exposes the detection engine and per-session redaction
// caches over HTTP.
package api
