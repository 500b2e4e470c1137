package pii

import "strings"

// Replacement tokens for types where a partial reveal is never safe.
const (
	nameToken     = "[NAME]"
	addressToken  = "[ADDRESS]"
	dobToken      = "[DOB]"
	redactedToken = "[REDACTED]"
)

// Mask returns the deterministic display-safe replacement for a value of
// the given type. It is pure: identical inputs always produce identical
// output.
func Mask(t Type, value string) string {
	switch t {
	case TypeSSN:
		return "***-**-" + lastN(value, 4)
	case TypeCreditCard:
		return "****-****-****-" + lastN(value, 4)
	case TypeAccountNumber:
		return "****" + lastN(value, 4)
	case TypePhone:
		return "***-***-" + lastN(value, 4)
	case TypeEmail:
		return maskEmail(value)
	case TypeName:
		return nameToken
	case TypeAddress:
		return addressToken
	case TypeDOB:
		return dobToken
	default:
		return redactedToken
	}
}

// lastN returns the final n characters of value with separators stripped,
// so "123-45-6789" and "123456789" mask identically.
func lastN(value string, n int) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '(', ')', '.', '+':
			return -1
		}
		return r
	}, value)
	if len(clean) <= n {
		return clean
	}
	return clean[len(clean)-n:]
}

func maskEmail(value string) string {
	at := strings.LastIndex(value, "@")
	if at <= 0 {
		return redactedToken
	}
	return value[:1] + "***@" + value[at+1:]
}
