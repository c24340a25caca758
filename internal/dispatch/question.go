package dispatch

import "strings"

// DefaultMinQuestionLength is the minimum trimmed length for a transcript to
// be considered a question at all.
const DefaultMinQuestionLength = 10

// interrogativeStarters are the leading words that mark a sentence as a
// question even without a trailing question mark. Multi-word entries are
// matched as prefixes.
var interrogativeStarters = []string{
	"who", "what", "where", "when", "why", "how",
	"can", "could", "would", "should",
	"is", "are", "do", "does", "did",
	"have", "has", "will", "which", "shall", "may", "might",
	"tell me",
	"won't", "wouldn't", "isn't", "aren't", "don't", "doesn't", "didn't",
	"can't", "couldn't", "shouldn't", "haven't", "hasn't",
}

// Detector is a pure heuristic question classifier. The zero value uses
// [DefaultMinQuestionLength].
type Detector struct {
	// MinLength rejects any trimmed text shorter than this many characters.
	MinLength int
}

// IsQuestion reports whether text reads as a question: long enough, and
// either ending in a question mark or starting with an interrogative word.
// The predicate is pure; the same input always yields the same answer.
func (d Detector) IsQuestion(text string) bool {
	minLen := d.MinLength
	if minLen <= 0 {
		minLen = DefaultMinQuestionLength
	}

	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minLen {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}

	lower := strings.ToLower(trimmed)
	for _, starter := range interrogativeStarters {
		if !strings.HasPrefix(lower, starter) {
			continue
		}
		// Word boundary: "who" must not match "whoever is here".
		rest := lower[len(starter):]
		if rest == "" || rest[0] == ' ' || rest[0] == ',' {
			return true
		}
	}
	return false
}
