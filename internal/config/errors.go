package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and File.Validate() so
// callers can use errors.Is() while still getting a readable message.
var (
	// ErrInvalidDelay is returned when the delay window is negative or inverted.
	ErrInvalidDelay = errors.New("invalid delay window: min and max must be non-negative and min <= max")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRequestRate is returned when the per-minute request ceiling is negative.
	ErrInvalidRequestRate = errors.New("invalid requests per minute: must be non-negative")

	// ErrInvalidRetryPolicy is returned when the retry settings cannot produce a schedule.
	ErrInvalidRetryPolicy = errors.New("invalid retry policy: attempts must be positive and backoffs non-negative")

	// ErrInvalidCheckpointInterval is returned when the checkpoint interval is not positive.
	ErrInvalidCheckpointInterval = errors.New("invalid checkpoint interval: must be positive")

	// ErrInvalidCheckpointBackend is returned for an unknown checkpoint backend name.
	ErrInvalidCheckpointBackend = errors.New("invalid checkpoint backend: must be \"file\" or \"badger\"")

	// ErrInvalidBatchSize is returned when the export batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid export batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrNoOutputDir is returned when no artifact directory is configured.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrNoBaseURL is returned when the site file does not name the catalog host.
	ErrNoBaseURL = errors.New("site file: base_url is required")

	// ErrNoMakes is returned when the site file lists no makes to walk.
	ErrNoMakes = errors.New("site file: at least one make is required")

	// ErrMissingEndpoint is returned when an endpoint template is empty.
	ErrMissingEndpoint = errors.New("site file: endpoint template is required")
)
