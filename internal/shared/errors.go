package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Storage errors. Any I/O failure inside a store scope wraps ErrStorage
	// and the enclosing operation is rolled back.
	ErrStorage = fmt.Errorf("storage failure")

	// Authentication errors
	ErrAuthExpired    = fmt.Errorf("authorization expired")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// Upstream API outcomes. NotFound is control flow, not a fault.
	ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")
	ErrRateLimited         = fmt.Errorf("rate limited")
	ErrForbidden           = fmt.Errorf("forbidden")
	ErrNotFound            = fmt.Errorf("not found")

	// Domain validation outcomes, surfaced to the user with a specific
	// message and never logged as errors.
	ErrAlreadyTracked = fmt.Errorf("playlist already tracked")
	ErrNotTracked     = fmt.Errorf("playlist not tracked")
	ErrLimitReached   = fmt.Errorf("tracking limit reached")

	// Input validation errors
	ErrInvalidInput = fmt.Errorf("invalid input")
)
