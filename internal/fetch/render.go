package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodRenderer renders pages in a headless Chromium controlled through the
// DevTools protocol. One browser is shared for the whole run; each Render
// opens and closes its own tab.
type RodRenderer struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	timeout  time.Duration
}

// NewRodRenderer launches a headless browser. bin may point at a specific
// Chromium binary; when empty the launcher finds or downloads one.
func NewRodRenderer(bin string, timeout time.Duration) (*RodRenderer, error) {
	l := launcher.New().Headless(true)
	if bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodRenderer{
		browser:  browser,
		launcher: l,
		timeout:  timeout,
	}, nil
}

// Render navigates to url, waits for the load event, and returns the
// serialized DOM together with the main document's HTTP status.
func (r *RodRenderer) Render(ctx context.Context, url string) (*RenderedPage, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	page, err := r.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	defer func() { _ = page.Close() }()

	result := &RenderedPage{}
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		result.StatusCode = e.Response.Status
		for name, value := range e.Response.Headers {
			if strings.EqualFold(name, "Retry-After") {
				result.RetryAfter = value.Str()
			}
		}
		return true
	})

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	wait()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed waiting for load: %w", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read DOM: %w", err)
	}
	result.HTML = []byte(html)

	return result, nil
}

// Close shuts the browser down.
func (r *RodRenderer) Close() error {
	err := r.browser.Close()
	r.launcher.Kill()
	return err
}
