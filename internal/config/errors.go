package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDelay is returned when the fetch delay is negative.
	// Use 0 to disable pacing.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidRetries is returned when the retry count is negative.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidMaxAge is returned when the freshness window is negative.
	ErrInvalidMaxAge = errors.New("invalid max age: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidConcurrency is returned when the replay concurrency is negative.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be non-negative")

	// ErrInvalidMaxDepth is returned when the nesting limit is below 1.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be at least 1")

	// ErrEmptyCacheDir is returned when no cache root is set.
	ErrEmptyCacheDir = errors.New("cache directory must not be empty")

	// ErrInvalidEndpoint is returned when a catalog or story URL is not an
	// absolute http(s) URL.
	ErrInvalidEndpoint = errors.New("invalid endpoint: must be an absolute http or https URL")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are given to history.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
