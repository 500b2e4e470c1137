// Package session holds the per-client-session state: the hash-indexed
// redaction cache that recognizes previously masked values without ever
// retaining raw sensitive data, and the request rate-limit counters.
package session
