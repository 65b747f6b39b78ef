package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransient is wrapped by errors for requests that kept failing with
	// 5xx responses, timeouts, or transport errors after every retry.
	ErrTransient = errors.New("transient network error")

	// ErrRateLimited is wrapped when the server answered 429 again after the
	// single honoured retry.
	ErrRateLimited = errors.New("rate limited")
)

// StatusError is an unexpected HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// FetchError describes a request that could not be completed.
// Use errors.Is with ErrTransient or ErrRateLimited, or errors.As with
// *StatusError, to classify it.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
