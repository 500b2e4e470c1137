package detect

import "fmt"

// InputError reports missing or invalid input text. It fails fast and is
// never retried.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}

// IsInputError checks if an error is an InputError.
func IsInputError(err error) bool {
	_, ok := err.(*InputError)
	return ok
}

// ExternalServiceError reports a network or service failure in a generative
// or semantic call. It is caught at the pass boundary: the pass degrades to
// an empty result and the pipeline continues.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s service error: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// ParseError reports malformed model output. Same degrade-to-empty policy
// as ExternalServiceError.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
