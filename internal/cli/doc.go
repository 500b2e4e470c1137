// Package cli implements the veil command-line interface.
package cli
