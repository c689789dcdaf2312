package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrTemporary    = errors.New("temporary failure")

	// Pipeline kinds. None of them aborts a whole analysis.
	ErrInvalidClassIndex     = errors.New("invalid class index")
	ErrInsufficientData      = errors.New("insufficient data")
	ErrStoreUnavailable      = errors.New("history store unavailable")
	ErrClassificationFailure = errors.New("classification failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
