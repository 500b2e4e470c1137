package pii

import "github.com/google/uuid"

// Type identifies a category of personally identifiable information.
type Type string

const (
	TypeSSN           Type = "SSN"
	TypeAccountNumber Type = "ACCOUNT_NUMBER"
	TypeCreditCard    Type = "CREDIT_CARD"
	TypeName          Type = "NAME"
	TypeAddress       Type = "ADDRESS"
	TypePhone         Type = "PHONE"
	TypeEmail         Type = "EMAIL"
	TypeDOB           Type = "DOB"
	TypeCustom        Type = "CUSTOM"
)

// AllTypes returns every supported PII type in a stable order.
func AllTypes() []Type {
	return []Type{
		TypeSSN,
		TypeAccountNumber,
		TypeCreditCard,
		TypeName,
		TypeAddress,
		TypePhone,
		TypeEmail,
		TypeDOB,
		TypeCustom,
	}
}

// Valid reports whether t is a member of the closed type set.
func (t Type) Valid() bool {
	switch t {
	case TypeSSN, TypeAccountNumber, TypeCreditCard, TypeName,
		TypeAddress, TypePhone, TypeEmail, TypeDOB, TypeCustom:
		return true
	}
	return false
}

// Method identifies the detection pass that produced an entity.
type Method string

const (
	MethodPattern       Method = "pattern"
	MethodContextual    Method = "contextual"
	MethodUnstructured  Method = "unstructured"
	MethodRetrospective Method = "retrospective"
	MethodSemantic      Method = "semantic"
)

// Span is a half-open character-offset interval [Start, End) into one
// immutable text buffer.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether two spans intersect. The general interval test
// covers partial overlap, containment in either direction, and equality.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// ValidFor reports whether the span is well-formed for a text of the given length.
func (s Span) ValidFor(textLen int) bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= textLen
}

// Entity is a single detected PII candidate. Value is the verbatim
// substring of the source text at Span. ShouldRedact and MaskedValue may be
// mutated by a reviewer after detection without re-running the pipeline.
type Entity struct {
	ID              string  `json:"id"`
	Type            Type    `json:"type"`
	Value           string  `json:"value"`
	NormalizedValue string  `json:"normalizedValue,omitempty"`
	MaskedValue     string  `json:"maskedValue"`
	Span            Span    `json:"span"`
	Confidence      float64 `json:"confidence"`
	Method          Method  `json:"detectionMethod"`
	Context         string  `json:"context,omitempty"`
	ShouldRedact    bool    `json:"shouldRedact"`
	PageNumber      int     `json:"pageNumber,omitempty"`
	VariantOf       string  `json:"variantOf,omitempty"`
}

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}
