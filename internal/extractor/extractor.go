// Package extractor wraps the external media extraction tool behind a narrow
// interface so the HTTP layer never deals with process spawning directly.
package extractor

import (
	"context"
	"time"
)

// Extractor downloads the media behind a URL and writes it as MP3 to OutputPath.
type Extractor interface {
	Extract(ctx context.Context, req Request) (*Output, error)
}

// Request describes a single extraction.
type Request struct {
	URL        string
	OutputPath string
	// CookiesPath is optional. When set it is handed to the tool for authenticated sources.
	CookiesPath string
}

// Output holds the tool's captured streams.
type Output struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}
