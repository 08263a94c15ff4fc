package service

import (
	"context"
	"errors"
	"fmt"

	"studyrag/internal/extract"
	"studyrag/internal/generator"
	"studyrag/internal/indexer"
	"studyrag/internal/llm"
	"studyrag/internal/rag"
	"studyrag/internal/retry"
	"studyrag/internal/storage"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrExternalService is returned when an external service call fails.
	ErrExternalService = errors.New("external service error")
	// ErrInsufficientMaterial is returned when a scope holds nothing to ground on.
	ErrInsufficientMaterial = errors.New("insufficient material")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// classify maps errors from the lower layers onto the service taxonomy. The
// original error stays in the chain and in the message.
func classify(err error, msg string) error {
	var validationErr *ValidationError
	var statusErr *llm.StatusError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &validationErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, retry.ErrExhausted):
		return WrapError(err, msg)
	case errors.Is(err, indexer.ErrInvalidRequest),
		errors.Is(err, extract.ErrEmptyFile),
		errors.Is(err, extract.ErrUnsupportedFormat),
		errors.Is(err, extract.ErrTranscriptionUnavailable),
		errors.Is(err, rag.ErrInvalidQuery),
		errors.Is(err, generator.ErrInvalidRequest):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, generator.ErrInsufficientMaterial):
		return fmt.Errorf("%w: %w", ErrInsufficientMaterial, err)
	case errors.Is(err, retry.ErrExhausted),
		errors.Is(err, generator.ErrMalformedOutput),
		errors.As(err, &statusErr),
		retry.IsRetryable(err):
		return fmt.Errorf("%w: %s: %w", ErrExternalService, msg, err)
	default:
		return WrapError(err, msg)
	}
}
