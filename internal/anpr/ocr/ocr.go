// Package ocr turns conditioned plate crops into canonical plate text.
package ocr

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"gonum.org/v1/gonum/stat"
)

// Span is one contiguous text fragment from the recognizer, with its
// confidence on a 0..1 scale.
type Span struct {
	Text       string
	Confidence float64
}

// Reading is the canonical form of one plate: trimmed, single-spaced,
// uppercase text plus the mean confidence across every span the recognizer
// returned.
type Reading struct {
	Text       string
	Confidence float64
}

// Normalize folds raw recognizer spans into a Reading. Non-empty trimmed
// spans join with single spaces, since inter-group spacing is meaningful in
// some regional plate formats. Empty spans contribute nothing to the text
// but still count toward the confidence mean. Normalizing already canonical
// text returns it unchanged.
func Normalize(spans []Span) Reading {
	if len(spans) == 0 {
		return Reading{}
	}

	var parts []string
	confidences := make([]float64, len(spans))
	for i, span := range spans {
		confidences[i] = span.Confidence
		if text := strings.TrimSpace(span.Text); text != "" {
			parts = append(parts, text)
		}
	}

	text := strings.ToUpper(strings.Join(strings.Fields(strings.Join(parts, " ")), " "))
	return Reading{Text: text, Confidence: stat.Mean(confidences, nil)}
}

var separatorStripper = strings.NewReplacer("-", "", " ", "")

// ValidatePlate reports whether text is shaped like a license plate: 4 to 10
// characters once hyphens and spaces are stripped, containing at least one
// letter and at least one digit. That accepts the common regional formats
// (ABC1234, AB-12-CD, 34 TBT 77) without a per-country grammar.
func ValidatePlate(text string) bool {
	cleaned := separatorStripper.Replace(text)

	if n := utf8.RuneCountInString(cleaned); n < 4 || n > 10 {
		return false
	}

	var hasLetter, hasDigit bool
	for _, r := range cleaned {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
