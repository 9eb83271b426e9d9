package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed   = fmt.Errorf("authentication failed")
	ErrTokenExpired = fmt.Errorf("access token expired")
	ErrTimeout      = fmt.Errorf("operation timed out")

	// API and fetch errors
	ErrAPIRequest     = fmt.Errorf("API request failed")
	ErrFetchExhausted = fmt.Errorf("fetch retries exhausted")

	// Cache errors
	ErrCacheCorrupt = fmt.Errorf("cache record corrupt")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
