package llm

import (
	"errors"
	"strings"
)

// ErrRefusal is returned when the model declined to answer.
var ErrRefusal = errors.New("model response indicates refusal")

var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"as a large language model",
	"não posso ajudar",
	"não consigo responder",
	"como um modelo de linguagem",
}

// CleanResponse trims whitespace and a single surrounding code fence.
func CleanResponse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DetectRefusal returns ErrRefusal if s contains a known refusal phrase.
func DetectRefusal(s string) error {
	lower := strings.ToLower(s)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return ErrRefusal
		}
	}
	return nil
}
