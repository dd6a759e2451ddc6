package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
	ErrUnavailable      = errors.New("service unavailable")
)

// Error kinds reported to API clients and in logs.
const (
	KindInvalidInput = "invalid_input"
	KindNotFound     = "not_found"
	KindTemporary    = "temporary"
	KindUnavailable  = "unavailable"
	KindInternal     = "internal"
)

// WrapError keeps kind reachable through errors.Is and prefixes the
// operation that failed.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// Kind returns the first matching kind for err, KindInternal when none
// applies and "" for nil. Invalid input wins over temporary so a bad
// request is never reported as retryable.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrDocumentNotFound):
		return KindNotFound
	case errors.Is(err, ErrTemporary):
		return KindTemporary
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}
