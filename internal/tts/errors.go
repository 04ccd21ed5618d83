package tts

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a synthesis failure so callers can map it to a response
// code without inspecting provider message text
type ErrorKind int

const (
	// KindProvider is a generic synthesis failure
	KindProvider ErrorKind = iota
	// KindCredential means the provider rejected or is missing the API key
	KindCredential
	// KindQuota means the provider reported quota or rate-limit exhaustion
	KindQuota
)

// ErrMissingAPIKey is returned by NewClient when no credential is configured
var ErrMissingAPIKey = errors.New("openai api key is not configured")

// SynthesisError wraps a provider failure with its classification
type SynthesisError struct {
	Kind ErrorKind
	Err  error
}

func (e *SynthesisError) Error() string {
	switch e.Kind {
	case KindCredential:
		return fmt.Sprintf("synthesis credential error: %v", e.Err)
	case KindQuota:
		return fmt.Sprintf("synthesis quota exceeded: %v", e.Err)
	default:
		return fmt.Sprintf("synthesis failed: %v", e.Err)
	}
}

func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, or KindProvider when err is not a
// SynthesisError
func KindOf(err error) ErrorKind {
	var synthErr *SynthesisError
	if errors.As(err, &synthErr) {
		return synthErr.Kind
	}
	return KindProvider
}
