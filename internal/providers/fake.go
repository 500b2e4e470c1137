package providers

import (
	"context"
	"sync"
)

// Fake is an in-memory Completer for tests. It records every request and
// returns canned responses in order, repeating the last one when exhausted.
type Fake struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Requests  []CompletionRequest
}

// NewFake creates a Fake returning the given responses in sequence.
func NewFake(responses ...string) *Fake {
	return &Fake{Responses: responses}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if f.Err != nil {
		return CompletionResponse{}, f.Err
	}
	if len(f.Responses) == 0 {
		return CompletionResponse{Content: "[]"}, nil
	}
	idx := len(f.Requests) - 1
	if idx >= len(f.Responses) {
		idx = len(f.Responses) - 1
	}
	return CompletionResponse{Content: f.Responses[idx], TokensUsed: 1}, nil
}

// CallCount returns the number of Complete calls recorded.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Requests)
}
