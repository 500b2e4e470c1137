// Package providers implements clients for generative text-completion
// services (Anthropic, OpenAI, Gemini, Ollama) behind a common Completer
// interface with bounded timeouts and retry on transient failures.
package providers
