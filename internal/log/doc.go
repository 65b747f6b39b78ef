// Package log provides the application's slog setup.
//
// NewLogger builds a text or JSON logger whose handler masks sensitive
// attributes before they reach the output:
//   - header-like keys (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - values that look like bearer tokens, JWTs, or cookie strings
//   - credential query parameters inside logged URLs
//
// Loggers are passed explicitly to every component; nothing in the module
// relies on slog.Default.
//
//	logger := log.NewLogger(os.Stderr, verbose, false)
//	logger.Info("fetching", "url", "https://catalog.example.com/items/3951?token=abc")
//	// url=https://catalog.example.com/items/3951?token=%2A%2A%2AREDACTED%2A%2A%2A
package log
