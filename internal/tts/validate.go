package tts

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Text length limits in characters (runes)
const (
	MaxTextLength  = 4096
	WarnTextLength = 3000
)

// Validation is the result of checking a piece of input text.
// It never carries an error across the boundary; callers inspect IsValid.
type Validation struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ValidateText checks text against the synthesis input contract: present,
// non-blank after trimming, and at most MaxTextLength characters. Texts above
// WarnTextLength get a warning but remain valid. Pure and deterministic.
func ValidateText(text string) Validation {
	v := Validation{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
	}

	if text == "" {
		v.IsValid = false
		v.Errors = append(v.Errors, "Text is required")
		return v
	}

	length := utf8.RuneCountInString(text)

	if length > MaxTextLength {
		v.IsValid = false
		v.Errors = append(v.Errors, fmt.Sprintf("Text too long (%d/%d characters)", length, MaxTextLength))
	}

	if strings.TrimSpace(text) == "" {
		v.IsValid = false
		v.Errors = append(v.Errors, "Text cannot be empty")
	}

	if length > WarnTextLength {
		v.Warnings = append(v.Warnings, "Long text may take longer to generate")
	}

	return v
}

// TextLength returns the length of text in characters, matching the unit used
// by ValidateText and the TEXT_TOO_LONG error payload
func TextLength(text string) int {
	return utf8.RuneCountInString(text)
}
