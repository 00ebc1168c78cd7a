package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrSourceUnavailable is returned when the trending page cannot be fetched or parsed
	ErrSourceUnavailable = errors.New("trending source unavailable")
	// ErrGenerationFailure is returned when the generative backend fails
	ErrGenerationFailure = errors.New("generation failure")
	// ErrConfiguration is returned when a component is missing required configuration.
	// It aborts runs instead of being recorded per item.
	ErrConfiguration = errors.New("configuration error")
)

// ValidationError describes a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// SourceUnavailableError wraps a failed trending fetch for one language filter
type SourceUnavailableError struct {
	Language string
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	label := e.Language
	if label == "" {
		label = "all"
	}
	return fmt.Sprintf("trending source unavailable for %s: %v", label, e.Err)
}

func (e *SourceUnavailableError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// Generation failure categories
const (
	GenerationTimeout           = "timeout"
	GenerationRateLimited       = "rate_limited"
	GenerationMalformedResponse = "malformed_response"
	GenerationBackendError      = "backend_error"
)

// GenerationError is a categorised generation failure
type GenerationError struct {
	Category string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Category, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrGenerationFailure, e.Err}
}
