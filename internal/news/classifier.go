package news

import (
	"strings"
	"unicode"
)

// maxClassifyRunes bounds the text considered by a classifier.
const maxClassifyRunes = 512

// Classifier assigns a severity to article text.
type Classifier interface {
	Classify(text string) Severity
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(text string) Severity

// Classify calls f.
func (f ClassifierFunc) Classify(text string) Severity {
	return f(text)
}

// KeywordClassifier scores text against weighted term lists. The highest
// matching tier wins; text with no match is low, empty text is unknown.
type KeywordClassifier struct {
	high   []string
	medium []string
}

// DefaultHighTerms mark incidents with casualties or large-scale damage.
var DefaultHighTerms = []string{
	"dead", "death", "deaths", "killed", "fatal", "fatalities", "casualties",
	"evacuate", "evacuation", "evacuated", "collapse", "collapsed", "emergency",
	"red alert", "severe", "hazardous", "toxic", "explosion", "drowned",
}

// DefaultMediumTerms mark disruptions without casualties.
var DefaultMediumTerms = []string{
	"injured", "injuries", "hospitalised", "hospitalized", "closed", "closure",
	"blocked", "diverted", "waterlogging", "waterlogged", "flooded", "overflow",
	"jam", "congestion", "delay", "delays", "warning", "orange alert", "unhealthy",
	"collision", "crash",
}

// NewKeywordClassifier creates a KeywordClassifier. Nil term lists use the defaults.
func NewKeywordClassifier(high, medium []string) *KeywordClassifier {
	if high == nil {
		high = DefaultHighTerms
	}
	if medium == nil {
		medium = DefaultMediumTerms
	}
	return &KeywordClassifier{high: normalizeTerms(high), medium: normalizeTerms(medium)}
}

// Classify returns the severity of text.
func (c *KeywordClassifier) Classify(text string) Severity {
	text = truncateRunes(strings.TrimSpace(text), maxClassifyRunes)
	if text == "" {
		return SeverityUnknown
	}

	words := " " + strings.Join(strings.FieldsFunc(strings.ToLower(text), isSeparator), " ") + " "
	switch {
	case containsAny(words, c.high):
		return SeverityHigh
	case containsAny(words, c.medium):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		fields := strings.FieldsFunc(strings.ToLower(t), isSeparator)
		if len(fields) > 0 {
			out = append(out, " "+strings.Join(fields, " ")+" ")
		}
	}
	return out
}

// containsAny matches whole words; words and terms are space padded.
func containsAny(words string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(words, t) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
