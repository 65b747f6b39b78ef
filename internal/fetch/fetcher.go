package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/config"
	"github.com/zachatkinson/carpart-scraper-sub000/internal/log"
)

// Request kinds reported to the Observer.
const (
	KindHTTP   = "http"
	KindRender = "render"
)

// Retry reasons reported to the Observer.
const (
	ReasonRateLimited = "rate_limited"
	ReasonServerError = "server_error"
	ReasonTransport   = "transport"
)

// Document is a fetched page.
type Document struct {
	// URL is the requested URL.
	URL string

	// StatusCode is the final HTTP status.
	StatusCode int

	// Body is the raw response body, or the serialized DOM for rendered fetches.
	Body []byte

	// NotFound is set for 404 responses. Body is empty in that case.
	NotFound bool
}

// RenderedPage is the result of a browser-rendered navigation.
type RenderedPage struct {
	StatusCode int
	HTML       []byte
	RetryAfter string
}

// Renderer loads a page in a real browser so client-side scripts run.
type Renderer interface {
	Render(ctx context.Context, url string) (*RenderedPage, error)
	Close() error
}

// Observer receives request and retry events, typically for metrics.
type Observer interface {
	ObserveRequest(kind string, status int)
	ObserveRetry(reason string)
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RateLimitedFetcher fetches pages one at a time with randomized politeness
// delays and explicit retry handling.
type RateLimitedFetcher struct {
	// mu is held for the whole Fetch call, retries and sleeps included,
	// so there is never more than one request in flight.
	mu sync.Mutex

	client   *resty.Client
	renderer Renderer
	policy   RetryPolicy
	limiter  *rate.Limiter
	minDelay time.Duration
	maxDelay time.Duration

	sleep    SleepFunc
	random   func() float64
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
}

// Option configures a RateLimitedFetcher.
type Option func(*RateLimitedFetcher)

// WithRenderer sets the browser renderer used for rendered fetches.
func WithRenderer(r Renderer) Option {
	return func(f *RateLimitedFetcher) { f.renderer = r }
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(f *RateLimitedFetcher) { f.policy = p }
}

// WithDelay sets the random pre-request delay window.
func WithDelay(minDelay, maxDelay time.Duration) Option {
	return func(f *RateLimitedFetcher) {
		f.minDelay = minDelay
		f.maxDelay = maxDelay
	}
}

// WithRequestsPerMinute sets the token bucket ceiling. Zero disables it.
func WithRequestsPerMinute(n int) Option {
	return func(f *RateLimitedFetcher) {
		if n <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(float64(n)/60.0), 1)
	}
}

// WithClient replaces the resty client, e.g. to set a transport in tests.
func WithClient(c *resty.Client) Option {
	return func(f *RateLimitedFetcher) { f.client = c }
}

// WithSleeper replaces the sleep function. Tests use it to record waits
// instead of blocking.
func WithSleeper(s SleepFunc) Option {
	return func(f *RateLimitedFetcher) { f.sleep = s }
}

// WithRandom replaces the [0,1) random source used for the delay window.
func WithRandom(r func() float64) Option {
	return func(f *RateLimitedFetcher) { f.random = r }
}

// WithClock replaces the clock used to interpret Retry-After dates.
func WithClock(now func() time.Time) Option {
	return func(f *RateLimitedFetcher) { f.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *RateLimitedFetcher) { f.logger = l }
}

// WithObserver sets the request observer.
func WithObserver(o Observer) Option {
	return func(f *RateLimitedFetcher) { f.observer = o }
}

// New creates a fetcher with the default politeness settings.
func New(opts ...Option) *RateLimitedFetcher {
	client := resty.New().
		SetTimeout(config.DefaultTimeout).
		SetHeader("User-Agent", config.DefaultUserAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	f := &RateLimitedFetcher{
		client:   client,
		policy:   DefaultRetryPolicy(),
		minDelay: config.DefaultMinDelay,
		maxDelay: config.DefaultMaxDelay,
		sleep:    sleepContext,
		random:   rand.Float64,
		now:      time.Now,
		logger:   log.Discard(),
	}
	WithRequestsPerMinute(config.DefaultRequestsPerMinute)(f)

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewFromConfig creates a fetcher from the run configuration.
func NewFromConfig(cfg *config.Config, opts ...Option) *RateLimitedFetcher {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	base := []Option{
		WithClient(client),
		WithRetryPolicy(RetryPolicyFromConfig(cfg)),
		WithDelay(cfg.MinDelay, cfg.MaxDelay),
		WithRequestsPerMinute(cfg.RequestsPerMinute),
	}
	return New(append(base, opts...)...)
}

// Close releases the renderer, if any.
func (f *RateLimitedFetcher) Close() error {
	if f.renderer == nil {
		return nil
	}
	return f.renderer.Close()
}

// response is one attempt's outcome, independent of the transport used.
type response struct {
	status     int
	body       []byte
	retryAfter string
}

// Fetch retrieves url. When render is true and a renderer is configured the
// page is loaded in the browser; otherwise a plain GET is issued.
func (f *RateLimitedFetcher) Fetch(ctx context.Context, url string, render bool) (*Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kind := KindHTTP
	if render && f.renderer != nil {
		kind = KindRender
	}

	attempts := 0
	failures := 0
	rateLimited := false

	for {
		if err := f.pause(ctx); err != nil {
			return nil, err
		}

		attempts++
		resp, err := f.do(ctx, url, kind)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var cause error
		reason := ""
		switch {
		case err != nil:
			f.observe(kind, 0)
			cause = err
			reason = ReasonTransport
		case resp.status == http.StatusTooManyRequests:
			f.observe(kind, resp.status)
			if rateLimited {
				return nil, &FetchError{URL: url, Attempts: attempts, Err: ErrRateLimited}
			}
			rateLimited = true
			wait := f.policy.RateLimitWait(resp.retryAfter, f.now())
			f.logger.Warn("rate limited, backing off",
				"url", url,
				"retry_after", resp.retryAfter,
				"wait", wait,
			)
			f.retry(ReasonRateLimited)
			if err := f.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		case resp.status == http.StatusNotFound:
			f.observe(kind, resp.status)
			return &Document{URL: url, StatusCode: resp.status, NotFound: true}, nil
		case resp.status >= 500:
			f.observe(kind, resp.status)
			cause = &StatusError{Code: resp.status}
			reason = ReasonServerError
		case resp.status >= 400:
			f.observe(kind, resp.status)
			return nil, &FetchError{URL: url, Attempts: attempts, Err: &StatusError{Code: resp.status}}
		default:
			f.observe(kind, resp.status)
			return &Document{URL: url, StatusCode: resp.status, Body: resp.body}, nil
		}

		failures++
		// A rate-limited URL gets its one retry and nothing more.
		if rateLimited || failures >= f.policy.MaxAttempts {
			return nil, &FetchError{
				URL:      url,
				Attempts: attempts,
				Err:      fmt.Errorf("%w: %w", ErrTransient, cause),
			}
		}

		wait := f.policy.Backoff(failures)
		f.logger.Debug("transient failure, retrying",
			"url", url,
			"attempt", attempts,
			"error", cause,
			"backoff", wait,
		)
		f.retry(reason)
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// pause waits for the token bucket and then sleeps the random politeness delay.
func (f *RateLimitedFetcher) pause(ctx context.Context) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
	return f.sleep(ctx, f.jitter())
}

func (f *RateLimitedFetcher) jitter() time.Duration {
	span := f.maxDelay - f.minDelay
	if span <= 0 {
		return f.minDelay
	}
	return f.minDelay + time.Duration(f.random()*float64(span))
}

func (f *RateLimitedFetcher) do(ctx context.Context, url, kind string) (*response, error) {
	if kind == KindRender {
		page, err := f.renderer.Render(ctx, url)
		if err != nil {
			return nil, err
		}
		return &response{status: page.StatusCode, body: page.HTML, retryAfter: page.RetryAfter}, nil
	}

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	return &response{
		status:     resp.StatusCode(),
		body:       resp.Body(),
		retryAfter: resp.Header().Get("Retry-After"),
	}, nil
}

func (f *RateLimitedFetcher) observe(kind string, status int) {
	if f.observer != nil {
		f.observer.ObserveRequest(kind, status)
	}
}

func (f *RateLimitedFetcher) retry(reason string) {
	if f.observer != nil {
		f.observer.ObserveRetry(reason)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
