// Package fetch implements the politeness-bound page fetcher.
//
// RateLimitedFetcher issues strictly one request at a time. Before every
// attempt it sleeps a uniformly random duration inside the configured delay
// window, and a token bucket caps the request rate on top of that. Failures
// are classified as follows:
//
//   - 404 is not an error: the Document comes back with NotFound set.
//   - 429 is honoured through Retry-After (or a fixed cooldown) and the same
//     URL is retried exactly once. A second 429 yields ErrRateLimited; any
//     other failure on that retry yields ErrTransient without further attempts.
//   - 5xx responses and transport errors are retried with the exponential
//     backoff described by RetryPolicy, then yield ErrTransient.
//   - Any other 4xx yields a *StatusError.
//
// Rendered requests go through a Renderer (a headless Chromium driven by
// go-rod); without one they fall back to plain HTTP via resty.
package fetch
