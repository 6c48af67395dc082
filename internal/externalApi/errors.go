package externalApi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("error not found")
	ErrUnauthorized = errors.New("error unauthorized")
	// any other 4xx answer: duplicate code, validation failure on the provider side
	ErrRejected = errors.New("error rejected by remote")
)

// ErrFromStatus maps a non-2xx status to one of the sentinel errors above.
func ErrFromStatus(statusCode int, detail string) error {
	switch {
	case statusCode < 400:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, statusCode)
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, statusCode)
	case statusCode < 500:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, statusCode, detail)
	default:
		return fmt.Errorf("unexpected status %d: %s", statusCode, detail)
	}
}
