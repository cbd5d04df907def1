package ncm

import (
	"fmt"
	"strings"
)

// CodeLength is the number of digits in a well-formed NCM.
const CodeLength = 8

// Failure classifies why a code did not validate.
type Failure string

const (
	FailureNone           Failure = ""
	FailureInvalidFormat  Failure = "INVALID_FORMAT"
	FailureNotInReference Failure = "NOT_IN_REFERENCE"
)

// Reasons reported in ValidationResult.Reason.
const (
	ReasonValid          = "valid NCM for the sector reference table"
	ReasonNotInReference = "not found in sector reference table"
)

// ValidationResult is the outcome of validating a single code. It is built per lookup and never persisted by this package.
type ValidationResult struct {
	InputCode      string  `json:"inputCode" firestore:"inputCode"`
	NormalizedCode string  `json:"normalizedCode" firestore:"normalizedCode"`
	IsValid        bool    `json:"isValid" firestore:"isValid"`
	Category       string  `json:"category,omitempty" firestore:"category,omitempty"`
	Description    string  `json:"description,omitempty" firestore:"description,omitempty"`
	Notes          string  `json:"notes,omitempty" firestore:"notes,omitempty"`
	Reason         string  `json:"reason" firestore:"reason"`
	Failure        Failure `json:"failure,omitempty" firestore:"failure,omitempty"`
}

// Normalize strips surrounding whitespace and every '.' and '-' from raw.
// It never fails; garbage in yields garbage out.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.TrimSpace(s)
}

// Validate checks raw structurally and then against ref. Separator characters in raw never
// affect the outcome: two inputs with the same normalized form produce the same result
// apart from InputCode.
func Validate(raw string, ref *Reference) ValidationResult {
	normalized := Normalize(raw)
	res := ValidationResult{
		InputCode:      raw,
		NormalizedCode: normalized,
	}

	if reason, ok := checkFormat(normalized); !ok {
		res.Reason = reason
		res.Failure = FailureInvalidFormat
		return res
	}

	entry, ok := ref.Lookup(normalized)
	if !ok {
		res.Reason = ReasonNotInReference
		res.Failure = FailureNotInReference
		return res
	}

	res.IsValid = true
	res.Category = entry.Category
	res.Description = entry.ExampleDescription
	res.Notes = entry.Notes
	res.Reason = ReasonValid
	return res
}

// IsWellFormed reports whether code normalizes to exactly eight digits.
func IsWellFormed(code string) bool {
	_, ok := checkFormat(Normalize(code))
	return ok
}

func checkFormat(normalized string) (string, bool) {
	if n := len([]rune(normalized)); n != CodeLength {
		return fmt.Sprintf("invalid format: NCM must have exactly %d digits, got %d characters", CodeLength, n), false
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return fmt.Sprintf("invalid format: NCM must contain only digits, found %q", r), false
		}
	}
	return "", true
}
