// Package semantic provides the client for an external semantic search
// index, used by the optional semantic extraction pass.
package semantic
