package detect

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/veil-sh/veil/internal/pii"
)

// Pattern is one compiled expression contributing matches to a rule. Group
// selects the submatch holding the sensitive value; 0 means the whole match.
type Pattern struct {
	RE    *regexp.Regexp
	Group int
}

// Rule describes how one PII type is detected: expressions, an optional
// validator, and the fixed confidence prior for the pattern family.
type Rule struct {
	Name       string
	Type       pii.Type
	Confidence float64
	Patterns   []Pattern
	Validate   func(string) bool
	MaskWith   string // literal mask override, used by custom rules
}

// DefaultRules returns the built-in detection rules. Confidence values are
// fixed priors reflecting each family's historical precision, used only for
// merge tie-breaking.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "ssn",
			Type:       pii.TypeSSN,
			Confidence: 0.95,
			Patterns: []Pattern{
				{RE: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
				{RE: regexp.MustCompile(`\b\d{3} \d{2} \d{4}\b`)},
				{RE: regexp.MustCompile(`\b\d{9}\b`)},
			},
			Validate: validSSN,
		},
		{
			Name:       "credit-card",
			Type:       pii.TypeCreditCard,
			Confidence: 0.95,
			Patterns: []Pattern{
				{RE: regexp.MustCompile(`\b4\d{3}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
				{RE: regexp.MustCompile(`\b5[1-5]\d{2}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
				{RE: regexp.MustCompile(`\b(?:2[2-6]\d{2}|270[0-4])[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
				{RE: regexp.MustCompile(`\b3[47]\d{2}[-\s]?\d{6}[-\s]?\d{5}\b`)},
				{RE: regexp.MustCompile(`\b6(?:011|5\d{2}|4[4-9]\d)[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`)},
			},
			Validate: luhnValid,
		},
		{
			Name:       "account-number",
			Type:       pii.TypeAccountNumber,
			Confidence: 0.80,
			Patterns: []Pattern{
				{RE: regexp.MustCompile(`(?i)\b(?:account|acct)\.?\s*(?:number|no\.?|#)?\s*[:#]?\s*(\d{8,17})\b`), Group: 1},
				{RE: regexp.MustCompile(`\b\d{8,17}\b`)},
			},
			Validate: validAccountNumber,
		},
		{
			Name:       "phone",
			Type:       pii.TypePhone,
			Confidence: 0.85,
			Patterns: []Pattern{
				{RE: regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.\s]?\d{4}\b`)},
				{RE: regexp.MustCompile(`\b1[-.\s]\d{3}[-.\s]\d{3}[-.\s]\d{4}\b`)},
				{RE: regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)},
			},
			Validate: validPhone,
		},
		{
			Name:       "email",
			Type:       pii.TypeEmail,
			Confidence: 0.95,
			Patterns: []Pattern{
				{RE: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
			},
		},
		{
			Name:       "dob",
			Type:       pii.TypeDOB,
			Confidence: 0.70,
			Patterns: []Pattern{
				{RE: regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])[/-](?:0?[1-9]|[12]\d|3[01])[/-](?:19|20)\d{2}\b`)},
				{RE: regexp.MustCompile(`\b(?:19|20)\d{2}-(?:0?[1-9]|1[0-2])-(?:0?[1-9]|[12]\d|3[01])\b`)},
				{RE: regexp.MustCompile(`(?i)\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+(?:0?[1-9]|[12]\d|3[01])(?:st|nd|rd|th)?,?\s+(?:19|20)\d{2}\b`)},
			},
		},
	}
}

func validSSN(value string) bool {
	clean := strings.ReplaceAll(strings.ReplaceAll(value, "-", ""), " ", "")
	if len(clean) != 9 {
		return false
	}
	for _, c := range clean {
		if !unicode.IsDigit(c) {
			return false
		}
	}

	area := int(clean[0]-'0')*100 + int(clean[1]-'0')*10 + int(clean[2]-'0')
	if area == 0 || area == 666 || area >= 900 {
		return false
	}

	group := int(clean[3]-'0')*10 + int(clean[4]-'0')
	if group == 0 {
		return false
	}

	serial := 0
	for i := 5; i < 9; i++ {
		serial = serial*10 + int(clean[i]-'0')
	}
	return serial != 0
}

func luhnValid(value string) bool {
	var clean strings.Builder
	for _, c := range value {
		if unicode.IsDigit(c) {
			clean.WriteRune(c)
		}
	}
	digits := clean.String()

	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	alternate := false
	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if alternate {
			n *= 2
			if n > 9 {
				n = n%10 + 1
			}
		}
		sum += n
		alternate = !alternate
	}
	return sum%10 == 0
}

func validAccountNumber(value string) bool {
	if len(value) < 8 || len(value) > 17 {
		return false
	}
	// A run of one repeated digit is a filler value, not an account number.
	first := value[0]
	for i := 1; i < len(value); i++ {
		if value[i] != first {
			return true
		}
	}
	return false
}

func validPhone(value string) bool {
	digits := 0
	for _, c := range value {
		if unicode.IsDigit(c) {
			digits++
		}
	}
	return digits == 10 || digits == 11
}

// customRulesFile is the YAML shape of a user-supplied rules file.
type customRulesFile struct {
	Rules []customRule `yaml:"rules"`
}

type customRule struct {
	Name       string  `yaml:"name"`
	Pattern    string  `yaml:"pattern"`
	Confidence float64 `yaml:"confidence"`
	Mask       string  `yaml:"mask"`
}

// LoadRulesFile reads custom CUSTOM-type rules from a YAML file. Returns nil
// rules and nil error when path is empty.
func LoadRulesFile(path string) ([]Rule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses custom rule definitions from YAML.
func ParseRules(data []byte) ([]Rule, error) {
	var file customRulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	rules := make([]Rule, 0, len(file.Rules))
	for i, cr := range file.Rules {
		if cr.Name == "" {
			return nil, fmt.Errorf("rule %d: name is required", i)
		}
		if cr.Pattern == "" {
			return nil, fmt.Errorf("rule %q: pattern is required", cr.Name)
		}
		re, err := regexp.Compile(cr.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", cr.Name, err)
		}
		conf := cr.Confidence
		if conf <= 0 || conf > 1 {
			conf = 0.5
		}
		rules = append(rules, Rule{
			Name:       cr.Name,
			Type:       pii.TypeCustom,
			Confidence: conf,
			Patterns:   []Pattern{{RE: re}},
			MaskWith:   cr.Mask,
		})
	}
	return rules, nil
}
