package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound is returned when a product is not present in the current snapshot
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrTimeout is returned when a catalog API request exceeds its deadline
	ErrTimeout = errors.New("catalog API request timed out")

	// ErrAPIFailure is returned when the catalog API request fails
	ErrAPIFailure = errors.New("catalog API request failed")

	// ErrParse is returned when a catalog API response body is not valid JSON
	ErrParse = errors.New("failed to decode response")

	// ErrPartialFailure marks a single record's sentiment fetch failing during a bulk load
	ErrPartialFailure = errors.New("partial load failure")
)

// APIError is returned for any non-2xx response from the catalog API
type APIError struct {
	StatusCode int
	Status     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Status)
}

// Unwrap lets errors.Is(err, ErrAPIFailure) match any status error
func (e *APIError) Unwrap() error {
	return ErrAPIFailure
}
