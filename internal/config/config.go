package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// Delay and retry defaults reflect what the catalog host tolerates; lowering
// them gets the crawler throttled with 429 responses.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "carpart"

	// DefaultMinDelay is the lower bound of the random pause before every request.
	DefaultMinDelay = 1 * time.Second

	// DefaultMaxDelay is the upper bound of the random pause before every request.
	DefaultMaxDelay = 3 * time.Second

	// DefaultRequestsPerMinute caps bursts on top of the random delay.
	// 30 per minute matches the mean of the default delay window.
	DefaultRequestsPerMinute = 30

	// DefaultTimeout bounds a single plain HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultRenderTimeout bounds a single browser-rendered page load.
	// Application pages build their panels with client-side scripts.
	DefaultRenderTimeout = 60 * time.Second

	// DefaultMaxAttempts is the total attempt count for transient failures.
	// With the default backoff the waits are 4s, 8s and 16s.
	DefaultMaxAttempts = 4

	// DefaultInitialBackoff is the wait after the first transient failure.
	DefaultInitialBackoff = 4 * time.Second

	// DefaultBackoffMultiplier grows the wait after each further failure.
	DefaultBackoffMultiplier = 2.0

	// DefaultMaxBackoff caps a single backoff wait.
	DefaultMaxBackoff = 60 * time.Second

	// DefaultRateLimitCooldown is slept after a 429 without a Retry-After header.
	DefaultRateLimitCooldown = 60 * time.Second

	// DefaultMaxRetryAfter caps an honoured Retry-After value so a broken
	// header cannot stall the run for hours.
	DefaultMaxRetryAfter = 10 * time.Minute

	// DefaultCheckpointInterval saves the checkpoint after every unit of work.
	DefaultCheckpointInterval = 1

	// DefaultCheckpointBackend stores the checkpoint as a JSON file.
	DefaultCheckpointBackend = BackendFile

	// DefaultExportBatchSize is the number of records encoded per batch in
	// incremental export mode.
	DefaultExportBatchSize = 500

	// DefaultOutputDir is where parts.json and compatibility.json are written.
	DefaultOutputDir = "data/exports"

	// DefaultUserAgent identifies the scraper in HTTP requests.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

// Checkpoint backend names.
const (
	// BackendFile stores the checkpoint in checkpoint.json.
	BackendFile = "file"
	// BackendBadger stores the checkpoint in an embedded Badger database.
	BackendBadger = "badger"
)

// Config holds all configuration options for a scrape run.
// It is populated from defaults, the site file, and CLI flags, in that
// order, and passed explicitly to every component that needs it.
type Config struct {
	// ConfigFilePath is the path to the site file.
	// If empty, FindConfigFile searches the usual locations.
	ConfigFilePath string

	// Site holds the site description loaded from the site file.
	Site *File

	// MinDelay and MaxDelay bound the uniform random pause before every
	// request attempt.
	MinDelay time.Duration
	MaxDelay time.Duration

	// RequestsPerMinute is a hard ceiling enforced with a token bucket.
	// Zero disables the ceiling; the random delay still applies.
	RequestsPerMinute int

	// Timeout bounds each plain HTTP request.
	Timeout time.Duration

	// RenderTimeout bounds each browser-rendered page load.
	RenderTimeout time.Duration

	// UserAgent is sent with plain HTTP requests.
	UserAgent string

	// Retry policy for transient failures and 429 responses.
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	RateLimitCooldown time.Duration
	MaxRetryAfter     time.Duration

	// NoBrowser disables the headless browser. Rendered fetches then fall
	// back to plain HTTP, which only works against hosts that serve
	// application pages without client-side rendering.
	NoBrowser bool

	// BrowserBin is an optional path to a Chromium binary.
	// When empty the browser launcher downloads or finds one itself.
	BrowserBin string

	// CheckChanges skips the page crawl when the hierarchy fingerprint
	// matches the previous completed run.
	CheckChanges bool

	// FetchDetailsNewOnly limits the detail phase to SKUs whose record has
	// not been enriched from a detail page yet.
	FetchDetailsNewOnly bool

	// SkipDetails disables the detail phase entirely.
	SkipDetails bool

	// PreserveDetail stops a listing-page sighting from overwriting a record
	// that was already enriched from its detail page.
	PreserveDetail bool

	// CheckpointInterval is the number of completed units between
	// checkpoint saves. Phase transitions always save.
	CheckpointInterval int

	// CheckpointBackend selects the checkpoint store: "file" or "badger".
	CheckpointBackend string

	// DataDir holds the checkpoint, the catalog database, and the Badger
	// directory. Defaults to the XDG data directory.
	DataDir string

	// OutputDir is where the JSON artifacts are written.
	OutputDir string

	// Incremental writes artifacts in batches of ExportBatchSize records.
	Incremental     bool
	ExportBatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// JSONLog switches log output to JSON lines.
	JSONLog bool

	// JSONReport and MarkdownReport select the run summary format.
	// They are mutually exclusive; neither means plain text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile is the output path for the run summary. Empty means stdout.
	ReportFile string

	// MetricsFile, when set, receives the Prometheus text exposition of the
	// run's counters on exit.
	MetricsFile string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MinDelay:           DefaultMinDelay,
		MaxDelay:           DefaultMaxDelay,
		RequestsPerMinute:  DefaultRequestsPerMinute,
		Timeout:            DefaultTimeout,
		RenderTimeout:      DefaultRenderTimeout,
		UserAgent:          DefaultUserAgent,
		MaxAttempts:        DefaultMaxAttempts,
		InitialBackoff:     DefaultInitialBackoff,
		BackoffMultiplier:  DefaultBackoffMultiplier,
		MaxBackoff:         DefaultMaxBackoff,
		RateLimitCooldown:  DefaultRateLimitCooldown,
		MaxRetryAfter:      DefaultMaxRetryAfter,
		PreserveDetail:     true,
		CheckpointInterval: DefaultCheckpointInterval,
		CheckpointBackend:  DefaultCheckpointBackend,
		DataDir:            XDGDataDir(),
		OutputDir:          DefaultOutputDir,
		ExportBatchSize:    DefaultExportBatchSize,
	}
}

// XDGDataDir returns the XDG data directory for carpart.
// On Linux: ~/.local/share/carpart
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for carpart.
// On Linux: ~/.config/carpart
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// CheckpointPath returns the JSON checkpoint file location.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.DataDir, "checkpoint.json")
}

// BadgerDir returns the Badger checkpoint directory.
func (c *Config) BadgerDir() string {
	return filepath.Join(c.DataDir, "checkpoint.badger")
}

// PartsPath returns the parts.json artifact location.
func (c *Config) PartsPath() string {
	return filepath.Join(c.OutputDir, "parts.json")
}

// CompatibilityPath returns the compatibility.json artifact location.
func (c *Config) CompatibilityPath() string {
	return filepath.Join(c.OutputDir, "compatibility.json")
}

// ApplyFile overlays the crawl overrides from the site file. Values that
// were set explicitly on the command line are applied afterwards by the
// caller and take precedence.
func (c *Config) ApplyFile(f *File) {
	c.Site = f
	if f == nil {
		return
	}
	o := f.Crawl
	if o.MinDelay != nil {
		c.MinDelay = *o.MinDelay
	}
	if o.MaxDelay != nil {
		c.MaxDelay = *o.MaxDelay
	}
	if o.RequestsPerMinute != nil {
		c.RequestsPerMinute = *o.RequestsPerMinute
	}
	if o.Timeout != nil {
		c.Timeout = *o.Timeout
	}
	if o.MaxAttempts != nil {
		c.MaxAttempts = *o.MaxAttempts
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if c.MinDelay < 0 || c.MaxDelay < 0 || c.MinDelay > c.MaxDelay {
		return ErrInvalidDelay
	}

	if c.Timeout <= 0 || c.RenderTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.RequestsPerMinute < 0 {
		return ErrInvalidRequestRate
	}

	if c.MaxAttempts <= 0 || c.InitialBackoff < 0 || c.MaxBackoff < 0 ||
		c.BackoffMultiplier < 1 || c.RateLimitCooldown < 0 {
		return ErrInvalidRetryPolicy
	}

	if c.CheckpointInterval <= 0 {
		return ErrInvalidCheckpointInterval
	}

	if c.CheckpointBackend != BackendFile && c.CheckpointBackend != BackendBadger {
		return ErrInvalidCheckpointBackend
	}

	if c.ExportBatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.OutputDir == "" {
		return ErrNoOutputDir
	}

	if c.Site != nil {
		return c.Site.Validate()
	}

	return nil
}
